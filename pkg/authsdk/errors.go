package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// FailureCode is a stable login refusal code.
type FailureCode string

const (
	FailureInvalidCredentials FailureCode = "invalid_credentials"
	FailureInactiveAccount    FailureCode = "inactive_account"
	FailureAccountLocked      FailureCode = "account_locked"
	FailurePendingApproval    FailureCode = "pending_approval"
	FailureNoLinkedStudent    FailureCode = "no_linked_student"
	FailureUsePortalLogin     FailureCode = "use_portal_login"
)

// Reset and generic error codes.
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidToken           = "invalid_token"
	ErrorCodeExpiredToken           = "expired_token"
	ErrorCodeTokenAlreadyUsed       = "token_already_used"
	ErrorCodeWeakPassword           = "weak_password"
	ErrorCodeRateLimited            = "rate_limit_exceeded"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
	ErrorCodeServerError            = "server_error"
)

// ParseFailureCode splits a wire code such as "account_locked:12" into the
// code and the minutes remaining. ok is false for codes that are not login
// failures.
func ParseFailureCode(s string) (code FailureCode, minutes int, ok bool) {
	name, arg, hasArg := strings.Cut(s, ":")
	code = FailureCode(name)

	switch code {
	case FailureAccountLocked:
		if !hasArg {
			return "", 0, false
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return "", 0, false
		}
		return code, n, true
	case FailureInvalidCredentials, FailureInactiveAccount, FailurePendingApproval,
		FailureNoLinkedStudent, FailureUsePortalLogin:
		if hasArg {
			return "", 0, false
		}
		return code, 0, true
	}
	return "", 0, false
}

// LoginError is a login refused with one of the stable failure codes.
type LoginError struct {
	StatusCode int
	Code       FailureCode

	// MinutesRemaining is set for FailureAccountLocked.
	MinutesRemaining int
}

func (e *LoginError) Error() string {
	if e.Code == FailureAccountLocked {
		return fmt.Sprintf("login refused: %s:%d", e.Code, e.MinutesRemaining)
	}
	return "login refused: " + string(e.Code)
}

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// parseErrorResponse turns an error body into *LoginError when it carries a
// failure code and *APIError otherwise.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if code, minutes, ok := ParseFailureCode(errResp.Error); ok {
			return &LoginError{StatusCode: resp.StatusCode, Code: code, MinutesRemaining: minutes}
		}
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
