package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
	"github.com/aussiebroadwan/schoolgate/pkg/slogx"
)

type PasswordHandler struct {
	Resets *service.ResetTokenService
}

// HandleForgot godoc
//
//	@Summary		Forgot password
//	@Description	Emails a one-hour reset link if the identifier matches an account.
//	@Description	Always answers 202 so the endpoint cannot be used to discover accounts.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.ForgotPasswordRequest	true	"role, identifier"
//	@Success		202		"accepted"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		429		{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Router			/v1/password/forgot [post].
func (h *PasswordHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if !httpx.BindJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	surface, err := domain.ParseLoginSurface(req.Role)
	if err == nil {
		err = h.Resets.RequestSelfService(ctx, surface, req.Identifier, httpx.IPKeyExtractor(r))
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("reset request not served", "err", err)
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusAccepted)
}

// HandleReset godoc
//
//	@Summary		Reset password
//	@Description	Redeems a single-use reset token and sets a new password. Clears any lockout.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.ResetPasswordRequest	true	"token, new_password"
//	@Success		204		"password changed"
//	@Failure		400		{object}	authsdk.ErrorResponse	"invalid_token, expired_token, token_already_used, weak_password"
//	@Failure		503		{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/password/reset [post].
func (h *PasswordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !httpx.BindJSON(w, r, &req) {
		return
	}

	err := h.Resets.Redeem(r.Context(), req.Token, req.NewPassword)
	switch {
	case err == nil:
		httpx.NoCache(w)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrResetTokenNotFound):
		httpx.WriteJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: authsdk.ErrorCodeInvalidToken})
	case errors.Is(err, service.ErrResetTokenExpired):
		httpx.WriteJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: authsdk.ErrorCodeExpiredToken})
	case errors.Is(err, service.ErrResetTokenUsed):
		httpx.WriteJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: authsdk.ErrorCodeTokenAlreadyUsed})
	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{
			Error:            authsdk.ErrorCodeWeakPassword,
			ErrorDescription: "password must be 8 to 128 characters",
		})
	default:
		writeServiceError(w, r, err)
	}
}
