package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
)

// LivezHandler reports that the process is up. It never touches the
// database or Redis; readiness is /readyz.
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process is serving; includes uptime and build version.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).Truncate(time.Second).String(),
			Version: version,
		})
	}
}
