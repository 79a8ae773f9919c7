package http

import (
	"net/http"

	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
)

type SessionHandler struct {
	Sessions *service.SessionIssuer
}

// HandleGet godoc
//
//	@Summary		Current session
//	@Description	Returns the claim set carried by the bearer session token. Claims are as of issue time.
//	@Tags			Sessions
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.SessionInfo		"claim set"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/session [get].
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "no session")
		return
	}

	sess, err := service.SessionFromClaims(claims)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "session claims are invalid")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionInfo(sess))
}

// HandleRefresh godoc
//
//	@Summary		Refresh session
//	@Description	Re-reads the account and school and issues a new session token.
//	@Tags			Sessions
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.SessionResponse	"token, expires_at, session"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token, invalid_credentials"
//	@Failure		403	{object}	authsdk.ErrorResponse	"inactive_account"
//	@Failure		503	{object}	authsdk.ErrorResponse	"temporarily_unavailable"
//	@Router			/v1/session/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := httpx.AccountIDFromContext(ctx)
	if accountID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "no session")
		return
	}

	issued, err := h.Sessions.Refresh(ctx, accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(issued))
}
