package http

import (
	"net/http"

	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
)

// Resource servers cache the key set; a short max-age lets rotated keys
// propagate well inside the grace period.
const jwksMaxAge = "public, max-age=300"

// JWKSHandler serves the public session-signing keys, active and retiring.
//
//	@Summary		Get JWKS
//	@Description	Returns the public keys resource servers use to verify session tokens offline.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteCacheableJSON(w, http.StatusOK, jwksMaxAge, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
