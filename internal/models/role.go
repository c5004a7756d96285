package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is an ordered membership level. Comparison is numeric: a capability
// gated at some level is granted to every role at or above it.
type Role int

const (
	RoleViewer Role = 0
	RoleMember Role = 10
	RoleOwner  Role = 20
)

// Level returns the numeric level of the role.
func (r Role) Level() int {
	return int(r)
}

// MeetsOrExceeds reports whether r is at least threshold.
func (r Role) MeetsOrExceeds(threshold Role) bool {
	return r.Level() >= threshold.Level()
}

// Valid reports whether r is one of the defined levels.
func (r Role) Valid() bool {
	switch r {
	case RoleViewer, RoleMember, RoleOwner:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleMember:
		return "member"
	case RoleOwner:
		return "owner"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole converts a role name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return RoleViewer, nil
	case "member":
		return RoleMember, nil
	case "owner":
		return RoleOwner, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// MarshalText renders the role by name in API payloads.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role level %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText accepts a role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores the role as its numeric level.
func (r Role) Value() (driver.Value, error) {
	return int64(r), nil
}

// Scan reads a numeric level from the database.
func (r *Role) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*r = Role(v)
	case int32:
		*r = Role(v)
	case int:
		*r = Role(v)
	case []byte:
		var level int
		if _, err := fmt.Sscan(string(v), &level); err != nil {
			return fmt.Errorf("scan role level: %w", err)
		}
		*r = Role(level)
	default:
		return fmt.Errorf("scan role level: unsupported type %T", value)
	}
	return nil
}

// InviteStatus tracks the lifecycle of an invitation into an organization.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
)
