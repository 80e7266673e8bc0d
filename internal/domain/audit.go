package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xela07ax/evco-audit/internal/validation"
)

type ActionType string

// Known action types. The set is open: any upper-case identifier is accepted.
const (
	ActionDocumentApproved    ActionType = "DOCUMENT_APPROVED"
	ActionDocumentRejected    ActionType = "DOCUMENT_REJECTED"
	ActionDocumentReview      ActionType = "DOCUMENT_REVIEW"
	ActionTaskCreated         ActionType = "TASK_CREATED"
	ActionTaskCompleted       ActionType = "TASK_COMPLETED"
	ActionInspectionReviewed  ActionType = "INSPECTION_REVIEWED"
	ActionVehicleReportReview ActionType = "VEHICLE_REPORT_REVIEW"
	ActionMaintenanceRequest  ActionType = "MAINTENANCE_REQUEST"
	ActionMaintenanceComplete ActionType = "MAINTENANCE_COMPLETE"
)

var ErrInvalidPayload = errors.New("invalid payload")

// PayloadError describes why a request body could not be bound.
type PayloadError struct {
	Reason string
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid payload: %s: %v", e.Reason, e.Err)
	}
	return "invalid payload: " + e.Reason
}

func (e *PayloadError) Unwrap() error { return e.Err }

func (e *PayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// EntityID accepts both JSON strings and numbers; the frontend sends either.
type EntityID string

func (id *EntityID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*id = ""
		return nil
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = EntityID(strings.TrimSpace(v))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("entity id must be a string or a number")
		}
		*id = EntityID(n.String())
		return nil
	}
}

// AuditLogRequest is the body of POST /api/audit/logs. It lives only for the
// duration of one call.
type AuditLogRequest struct {
	ActorID          string         `json:"actorId" validate:"max=128"`
	ActorRole        Role           `json:"actorRole" validate:"omitempty,oneof=ADMIN STAFF TECHNICIAN"`
	ActionType       ActionType     `json:"actionType" validate:"required,max=64,action_type"`
	TargetEntityID   EntityID       `json:"targetEntityId" validate:"required,max=128"`
	TargetEntityType string         `json:"targetEntityType" validate:"max=64"`
	Timestamp        *time.Time     `json:"timestamp"`
	Details          string         `json:"details" validate:"max_bytes=4096"`
	Metadata         map[string]any `json:"metadata"`
}

// UnmarshalJSON also understands the field names used by the web client
// (type, entityId, entityType, message). Canonical names win.
func (r *AuditLogRequest) UnmarshalJSON(data []byte) error {
	type canonical AuditLogRequest
	var aux struct {
		canonical
		Type       ActionType `json:"type"`
		EntityID   EntityID   `json:"entityId"`
		EntityType string     `json:"entityType"`
		Message    string     `json:"message"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = AuditLogRequest(aux.canonical)
	if r.ActionType == "" {
		r.ActionType = aux.Type
	}
	if r.TargetEntityID == "" {
		r.TargetEntityID = aux.EntityID
	}
	if r.TargetEntityType == "" {
		r.TargetEntityType = aux.EntityType
	}
	if r.Details == "" {
		r.Details = aux.Message
	}
	if r.ActorRole != "" {
		r.ActorRole = ParseRole(string(r.ActorRole))
	}
	r.ActionType = ActionType(strings.TrimSpace(string(r.ActionType)))
	return nil
}

// DecodeAuditLogRequest reads exactly one JSON object from body and validates it.
func DecodeAuditLogRequest(body io.Reader) (*AuditLogRequest, error) {
	dec := json.NewDecoder(body)

	var req AuditLogRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &PayloadError{Reason: "request body is empty"}
		}
		return nil, &PayloadError{Reason: "malformed JSON", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &PayloadError{Reason: "unexpected data after JSON object"}
	}

	if msg, ok := validation.Struct(&req); !ok {
		return nil, &PayloadError{Reason: msg}
	}
	return &req, nil
}

// AuditEvent is what gets handed to a log sink.
type AuditEvent struct {
	ID               string         `json:"id"`
	TraceID          string         `json:"traceId"`
	ActorID          string         `json:"actorId"`
	ActorRole        Role           `json:"actorRole"`
	ActionType       ActionType     `json:"actionType"`
	TargetEntityID   string         `json:"targetEntityId"`
	TargetEntityType string         `json:"targetEntityType,omitempty"`
	Details          string         `json:"details,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	OccurredAt       time.Time      `json:"occurredAt"`
	ReceivedAt       time.Time      `json:"receivedAt"`
	SubmittedBy      string         `json:"submittedBy"`
	SubmitterRole    Role           `json:"submitterRole"`
}
