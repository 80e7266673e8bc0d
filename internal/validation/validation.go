// Package validation provides the shared validator instance used to check
// request payloads after they are decoded.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var actionTypeRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

var instance = newInstance()

func newInstance() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so messages match what the caller sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Cannot error: tags are non-empty and functions are non-nil.
	_ = v.RegisterValidation("action_type", func(fl validator.FieldLevel) bool {
		return actionTypeRe.MatchString(fl.Field().String())
	})
	// max counts runes; max_bytes limits the encoded size.
	_ = v.RegisterValidation("max_bytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= limit
	})
	return v
}

// Struct validates v and returns a human readable message and false when invalid.
func Struct(v any) (string, bool) {
	if err := instance.Struct(v); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err.Error(), false
		}
		return formatErrors(verrs), false
	}
	return "", true
}

func formatErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, describe(fe))
	}
	return strings.Join(msgs, "; ")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "max_bytes":
		return fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param())
	case "action_type":
		return fmt.Sprintf("%s must be an upper-case identifier like DOCUMENT_APPROVED, got %q", fe.Field(), fe.Value())
	default:
		return fe.Error()
	}
}
