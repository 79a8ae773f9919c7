package authsdk

import (
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
)

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the body of every non-2xx response.
//
// For login refusals Error is one of the stable failure codes
// (see ParseFailureCode); elsewhere it is a generic code such as
// "invalid_request".
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ============================================================================
// Login / Session Types
// ============================================================================

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	// Role selects the identity namespace: "staff" (default), "parent" or
	// "student".
	Role string `json:"role,omitempty" validate:"omitempty,oneof=staff parent student STAFF PARENT STUDENT"`

	// Identifier is an email address, a parent's phone number or a student
	// number depending on Role.
	Identifier string `json:"identifier" validate:"required,max=254"`

	Password string `json:"password" validate:"required,max=1024"`
}

// SchoolInfo is the tenant summary carried in a session.
type SchoolInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

// SessionInfo is the claim set of a session token.
type SessionInfo struct {
	AccountID          string      `json:"account_id"`
	Role               string      `json:"role"`
	SchoolID           *string     `json:"school_id"`
	School             *SchoolInfo `json:"school"`
	MustChangePassword bool        `json:"must_change_password"`
}

// SessionResponse is returned by login and refresh.
type SessionResponse struct {
	// Token is the signed session token; send it as "Authorization: Bearer".
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Session   SessionInfo `json:"session"`
}

// ============================================================================
// Password Reset Types
// ============================================================================

// ForgotPasswordRequest is the body of POST /v1/password/forgot. The
// response is 202 whether or not the identifier matched an account.
type ForgotPasswordRequest struct {
	Role       string `json:"role,omitempty" validate:"omitempty,oneof=staff parent student STAFF PARENT STUDENT"`
	Identifier string `json:"identifier" validate:"required,max=254"`
}

// ResetPasswordRequest is the body of POST /v1/password/reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required,nospaces,max=128"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is the per-dependency status reported by /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`

	// Redis is omitted when no reset throttle is configured.
	Redis string `json:"redis,omitempty"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the public keys that verify session tokens.
type JWKSResponse jwtx.JWKS
