package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()

	cfg := LoadConfig()
	cfg.Env = "test"
	cfg.LogLevel = "error"
	cfg.DatabaseDSN = "file:" + filepath.Join(dir, "auth.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.AdminToken = "secret"
	return cfg
}

func TestNewWiresRouter(t *testing.T) {
	for _, mode := range []string{"ephemeral", "persistent"} {
		t.Run(mode, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.KeyStorageMode = mode

			application, err := New(cfg)
			require.NoError(t, err)
			require.Equal(t, mode == "persistent", application.rotator != nil)
			require.Nil(t, application.throttle)

			for _, path := range []string{"/livez", "/readyz", "/.well-known/jwks.json", "/metrics"} {
				rec := httptest.NewRecorder()
				application.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				require.Equal(t, http.StatusOK, rec.Code, path)
			}

			require.NoError(t, application.Shutdown())
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.HousekeepingSchedule = "every now and then"

	_, err := New(cfg)
	require.Error(t, err)
}
