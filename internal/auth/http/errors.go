package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
	"github.com/aussiebroadwan/schoolgate/pkg/slogx"
)

// writeServiceError maps login failures and service errors onto status
// codes. The body's error field is the failure code verbatim.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if f, ok := service.AsFailure(err); ok {
		status := failureStatus(f)
		if f.Kind == service.KindAccountLocked {
			w.Header().Set("Retry-After", strconv.Itoa(f.MinutesRemaining*60))
		}
		httpx.WriteJSON(w, status, authsdk.ErrorResponse{Error: f.Code()})
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidSurface):
		httpx.WriteJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{
			Error:            authsdk.ErrorCodeInvalidRequest,
			ErrorDescription: "role must be staff, parent or student",
		})
	case errors.Is(err, service.ErrUnavailable):
		slogx.FromContext(r.Context()).Error("dependency unavailable", "err", err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, authsdk.ErrorResponse{
			Error:            authsdk.ErrorCodeTemporarilyUnavailable,
			ErrorDescription: "please try again shortly",
		})
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, authsdk.ErrorResponse{
			Error:            authsdk.ErrorCodeServerError,
			ErrorDescription: "internal server error",
		})
	}
}

func failureStatus(f *service.Failure) int {
	switch f.Kind {
	case service.KindAccountLocked:
		return http.StatusLocked
	case service.KindInactiveAccount, service.KindPendingApproval,
		service.KindNoLinkedStudent, service.KindUsePortalLogin:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func sessionInfo(s domain.Session) authsdk.SessionInfo {
	info := authsdk.SessionInfo{
		AccountID:          s.AccountID,
		Role:               string(s.Role),
		SchoolID:           s.SchoolID,
		MustChangePassword: s.MustChangePassword,
	}
	if s.School != nil {
		info.School = &authsdk.SchoolInfo{ID: s.School.ID, Name: s.School.Name, Subdomain: s.School.Subdomain}
	}
	return info
}

func sessionResponse(s service.IssuedSession) authsdk.SessionResponse {
	return authsdk.SessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		Session:   sessionInfo(s.Session),
	}
}
