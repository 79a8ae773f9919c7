package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
)

type ActivationHandler struct {
	Resets *service.ResetTokenService
}

// ServeHTTP godoc
//
//	@Summary		Approve account
//	@Description	Marks the account ACTIVE and sends the welcome message with a 24 hour password link.
//	@Tags			Accounts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Account ID"
//	@Success		202	"welcome message queued"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"insufficient_role"
//	@Failure		404	{object}	authsdk.ErrorResponse	"not_found"
//	@Failure		503	{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/accounts/{id}/activation [post].
func (h *ActivationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{Error: authsdk.ErrorCodeInvalidRequest})
		return
	}

	err := h.Resets.Approve(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteJSON(w, http.StatusNotFound, authsdk.ErrorResponse{Error: "not_found"})
	default:
		writeServiceError(w, r, err)
	}
}
