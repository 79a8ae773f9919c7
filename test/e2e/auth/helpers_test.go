package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/app"
	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/cryptox"
	"github.com/aussiebroadwan/schoolgate/pkg/idx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * End-to-end helpers: a throwaway postgres container, the fully wired
 * application served by httptest, and seeding straight into the database.
 */

const (
	issuer     = "schoolgate-e2e"
	adminToken = "e2e-admin-token"
)

type stack struct {
	t       *testing.T
	baseURL string
	client  *authsdk.Client
	store   *postgres.Store
	mail    *mailbox
}

// setupStack starts postgres and the application. Tests skip when Docker
// is unavailable or under -short.
func setupStack(t *testing.T) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "schoolgate",
			"POSTGRES_PASSWORD": "schoolgate",
			"POSTGRES_DB":       "schoolgate",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://schoolgate:schoolgate@%s:%s/schoolgate?sslmode=disable", host, port.Port())

	cfg := app.LoadConfig()
	cfg.Issuer = issuer
	cfg.Env = "test"
	cfg.LogLevel = "error"
	cfg.DBDriver = "postgres"
	cfg.DatabaseDSN = dsn
	cfg.KeyStorageMode = "persistent"
	cfg.PepperFile = filepath.Join(t.TempDir(), "pepper")
	cfg.AdminToken = adminToken
	cfg.ResetBaseURL = "https://portal.example"

	mail := &mailbox{}
	application, err := app.New(cfg, app.WithNotifier(mail))
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = application.Shutdown()
	})

	st, err := postgres.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	client := authsdk.NewClient(srv.URL)
	client.HTTPClient = &http.Client{Transport: &spreadIPs{next: http.DefaultTransport}}

	return &stack{t: t, baseURL: srv.URL, client: client, store: st, mail: mail}
}

// spreadIPs gives every request its own X-Forwarded-For so the per-IP
// limiters never interfere with a scenario.
type spreadIPs struct {
	next http.RoundTripper
	n    atomic.Uint32
}

func (s *spreadIPs) RoundTrip(req *http.Request) (*http.Response, error) {
	n := s.n.Add(1)
	req = req.Clone(req.Context())
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.%d.%d.%d", n>>16&0xff, n>>8&0xff, n&0xff))
	return s.next.RoundTrip(req)
}

type mailbox struct {
	mu   sync.Mutex
	sent []sent
}

type sent struct {
	Kind    service.NotificationKind
	Account string
	Payload map[string]any
}

func (m *mailbox) Send(_ context.Context, kind service.NotificationKind, acc domain.Account, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sent{Kind: kind, Account: acc.ID, Payload: payload})
	return nil
}

// waitFor blocks until a notification of kind reaches accountID.
func (m *mailbox) waitFor(t *testing.T, kind service.NotificationKind, accountID string) sent {
	t.Helper()
	var got sent
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, s := range m.sent {
			if s.Kind == kind && s.Account == accountID {
				got = s
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond, "no %s notification for %s", kind, accountID)
	return got
}

func resetToken(t *testing.T, s sent) string {
	t.Helper()
	link, _ := s.Payload["reset_link"].(string)
	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "portal.example", u.Host)
	return u.Query().Get("token")
}

func (s *stack) account(role domain.Role, email, phone, password string, status domain.AccountStatus) domain.Account {
	s.t.Helper()
	hash, err := cryptox.Hasher{}.Hash(password)
	require.NoError(s.t, err)

	a := domain.Account{
		ID:           idx.New().String(),
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	if email != "" {
		a.Email = &email
	}
	if phone != "" {
		a.Phone = &phone
	}
	require.NoError(s.t, s.store.Accounts().CreateAccount(context.Background(), a))
	return a
}

func (s *stack) student(number, password string) (domain.Account, domain.StudentProfile) {
	s.t.Helper()
	acc := s.account(domain.RoleStudent, "", "", password, domain.StatusActive)
	p := domain.StudentProfile{
		ID:            idx.New().String(),
		AccountID:     &acc.ID,
		StudentNumber: number,
		Status:        domain.StatusActive,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(s.t, s.store.Students().CreateStudent(context.Background(), p))
	return acc, p
}

func (s *stack) parent(email, phone, password string, status domain.AccountStatus, kids ...domain.StudentProfile) domain.Account {
	s.t.Helper()
	acc := s.account(domain.RoleParent, email, phone, password, status)
	p := domain.ParentProfile{ID: idx.New().String(), AccountID: acc.ID, CreatedAt: time.Now().UTC()}
	require.NoError(s.t, s.store.Parents().CreateParent(context.Background(), p))
	for _, k := range kids {
		require.NoError(s.t, s.store.Parents().LinkStudent(context.Background(), domain.ParentStudentLink{
			ParentID: p.ID, StudentID: k.ID, Relation: "guardian", CreatedAt: time.Now().UTC(),
		}))
	}
	return acc
}

// activate calls the internal activation endpoint.
func (s *stack) activate(accountID, token string) int {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/v1/internal/accounts/"+accountID+"/activation", nil)
	require.NoError(s.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.HTTPClient.Do(req)
	require.NoError(s.t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func requireLoginError(t *testing.T, err error, code authsdk.FailureCode) *authsdk.LoginError {
	t.Helper()
	var le *authsdk.LoginError
	require.ErrorAs(t, err, &le)
	require.Equal(t, code, le.Code)
	return le
}
