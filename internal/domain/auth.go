package domain

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleStaff      Role = "STAFF"
	RoleTechnician Role = "TECHNICIAN"
)

// AuditWriterRoles may submit audit log entries.
var AuditWriterRoles = []Role{RoleAdmin, RoleStaff, RoleTechnician}

// ParseRole normalizes "ROLE_staff", " staff " and "STAFF" to the same Role.
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	return Role(strings.TrimPrefix(s, "ROLE_"))
}

// CustomClaims are issued by the co-ownership platform's auth service.
// Either Role or Roles (or both) may be present.
type CustomClaims struct {
	UserID string   `json:"user_id,omitempty"`
	Role   string   `json:"role,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller resolved from a token.
type Principal struct {
	Subject string
	Roles   []Role
}

// NewPrincipal folds the role claims into a de-duplicated, ordered role list.
func NewPrincipal(c *CustomClaims) Principal {
	p := Principal{Subject: c.Subject}
	if p.Subject == "" {
		p.Subject = c.UserID
	}

	seen := make(map[Role]struct{})
	add := func(raw string) {
		r := ParseRole(raw)
		if r == "" {
			return
		}
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		p.Roles = append(p.Roles, r)
	}

	add(c.Role)
	for _, r := range c.Roles {
		add(r)
	}
	return p
}

// FirstOf returns the first role the principal holds that is in allowed.
func (p Principal) FirstOf(allowed []Role) (Role, bool) {
	for _, have := range p.Roles {
		for _, want := range allowed {
			if have == want {
				return have, true
			}
		}
	}
	return "", false
}

// HasAnyRole reports whether the principal holds at least one of allowed.
func (p Principal) HasAnyRole(allowed []Role) bool {
	_, ok := p.FirstOf(allowed)
	return ok
}
