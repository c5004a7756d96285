package constants

// Context and session keys
const (
	ContextKeyUserID      = "user_id"
	ContextKeyIsSuperuser = "is_superuser"
	ContextKeyGrant       = "authz_grant"
	ContextKeyRequestID   = "request_id"

	SessionCookieName = "orgperms_session"
)

// Request header names
const (
	HeaderRequestID = "X-Request-ID"
)

// Validation limits
const (
	MinPasswordLength = 8
	MaxOrgNameLength  = 100
)

// Pagination defaults
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)
