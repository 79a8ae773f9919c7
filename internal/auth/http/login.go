package http

import (
	"net/http"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
)

type LoginHandler struct {
	Credentials *service.CredentialVerifier
	Sessions    *service.SessionIssuer
}

// ServeHTTP godoc
//
//	@Summary		Login
//	@Description	Authenticate a staff member, parent or student and issue a session token.
//	@Description	Refusals carry a stable code in the error field, e.g. account_locked:12.
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"role, identifier, password"
//	@Success		200		{object}	authsdk.SessionResponse	"token, expires_at, session"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		403		{object}	authsdk.ErrorResponse	"inactive_account, pending_approval, no_linked_student, use_portal_login"
//	@Failure		423		{object}	authsdk.ErrorResponse	"account_locked:<minutes>"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Failure		503		{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !httpx.BindJSON(w, r, &req) {
		return
	}

	surface, err := domain.ParseLoginSurface(req.Role)
	if err != nil {
		writeServiceError(w, r, service.ErrInvalidSurface)
		return
	}

	ctx := r.Context()
	res, err := h.Credentials.Authenticate(ctx, service.LoginRequest{
		Surface:    surface,
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	issued, err := h.Sessions.Issue(ctx, res.Account, res.MustChangePassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(issued))
}
