package httpx

import (
	"context"

	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyAccountID ctxKey = "account_id"
	CtxKeyRole      ctxKey = "role"
	CtxKeyClaims    ctxKey = "claims" // full jwtx.SessionClaims
)

// AccountIDFromContext returns the authenticated account id, or "".
func AccountIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyAccountID).(string)
	return id
}

// ClaimsFromContext returns the verified session claims set by AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) (jwtx.SessionClaims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.SessionClaims)
	return c, ok
}

func roleFromCtx(ctx context.Context) string {
	r, _ := ctx.Value(CtxKeyRole).(string)
	return r
}
