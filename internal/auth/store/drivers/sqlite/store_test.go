package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/pkg/idx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newFileStore opens an on-disk database through a bare "file:" DSN, the
// same shape as the default AUTH_DATABASE_DSN, so writes race across
// pooled connections.
func newFileStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore("file:" + filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func seedAccount(t *testing.T, s store.Store, role domain.Role, email string) domain.Account {
	t.Helper()

	a := domain.Account{
		ID:           idx.New().String(),
		Role:         role,
		Email:        ptr(email),
		PasswordHash: "hash",
		IsActive:     true,
		Status:       domain.StatusActive,
	}
	require.NoError(t, s.Accounts().CreateAccount(context.Background(), a))
	return a
}

func TestAccountsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	school := domain.School{ID: idx.New().String(), Name: "Hillside", Subdomain: "hillside"}
	require.NoError(t, s.Schools().CreateSchool(ctx, school))

	acc := domain.Account{
		ID:                 idx.New().String(),
		Role:               domain.RoleParent,
		Email:              ptr("mum@example.com"),
		Phone:              ptr("+61400000000"),
		PasswordHash:       "hash",
		IsActive:           true,
		Status:             domain.StatusPending,
		SchoolID:           ptr(school.ID),
		MustChangePassword: true,
	}
	require.NoError(t, s.Accounts().CreateAccount(ctx, acc))

	byEmail, err := s.Accounts().GetAccountByEmail(ctx, "mum@example.com")
	require.NoError(t, err)
	require.Equal(t, acc.ID, byEmail.ID)
	require.Equal(t, domain.RoleParent, byEmail.Role)
	require.Equal(t, domain.StatusPending, byEmail.Status)
	require.True(t, byEmail.IsActive)
	require.True(t, byEmail.MustChangePassword)
	require.Equal(t, school.ID, *byEmail.SchoolID)
	require.Nil(t, byEmail.AccountLockedUntil)

	byPhone, err := s.Accounts().GetParentAccountByPhone(ctx, "+61400000000")
	require.NoError(t, err)
	require.Equal(t, acc.ID, byPhone.ID)

	_, err = s.Accounts().GetAccountByEmail(ctx, "MUM@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.Accounts().CreateAccount(ctx, domain.Account{
		ID: idx.New().String(), Role: domain.RoleTeacher, Email: ptr("mum@example.com"),
		PasswordHash: "x", IsActive: true, Status: domain.StatusActive,
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestPhoneLookupIsParentOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	teacher := domain.Account{
		ID: idx.New().String(), Role: domain.RoleTeacher, Email: ptr("t@example.com"),
		Phone: ptr("+61411111111"), PasswordHash: "x", IsActive: true, Status: domain.StatusActive,
	}
	require.NoError(t, s.Accounts().CreateAccount(ctx, teacher))

	_, err := s.Accounts().GetParentAccountByPhone(ctx, "+61411111111")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordFailedLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, domain.RoleTeacher, "teacher@example.com")

	now := time.UnixMilli(1_700_000_000_000).UTC()
	window := 15 * time.Minute

	t.Run("locks only on the threshold crossing", func(t *testing.T) {
		for i := 1; i <= 4; i++ {
			res, err := s.Accounts().RecordFailedLogin(ctx, acc.ID, now, 5, window)
			require.NoError(t, err)
			require.Equal(t, i, res.Attempts)
			require.False(t, res.Locked)
			require.Nil(t, res.LockedUntil)
		}

		res, err := s.Accounts().RecordFailedLogin(ctx, acc.ID, now, 5, window)
		require.NoError(t, err)
		require.Equal(t, 5, res.Attempts)
		require.True(t, res.Locked)
		require.Equal(t, now.Add(window), *res.LockedUntil)

		// A later failure inside the window does not move the lock.
		later := now.Add(time.Minute)
		res, err = s.Accounts().RecordFailedLogin(ctx, acc.ID, later, 5, window)
		require.NoError(t, err)
		require.Equal(t, 6, res.Attempts)
		require.False(t, res.Locked)
		require.Equal(t, now.Add(window), *res.LockedUntil)

		got, err := s.Accounts().GetAccountByID(ctx, acc.ID)
		require.NoError(t, err)
		require.Equal(t, later, *got.LastFailedLoginAt)
	})

	t.Run("restarts the count once the lock has elapsed", func(t *testing.T) {
		after := now.Add(window)
		res, err := s.Accounts().RecordFailedLogin(ctx, acc.ID, after, 5, window)
		require.NoError(t, err)
		require.Equal(t, 1, res.Attempts)
		require.False(t, res.Locked)
		require.Nil(t, res.LockedUntil)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := s.Accounts().RecordFailedLogin(ctx, "missing", now, 5, window)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestRecordFailedLoginConcurrentIncrements(t *testing.T) {
	stores := map[string]func(*testing.T) *Store{
		"memory": newTestStore,
		"file":   newFileStore,
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			acc := seedAccount(t, s, domain.RoleTeacher, "busy@example.com")
			now := time.Now()

			const workers = 20
			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				locked int
			)
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := s.Accounts().RecordFailedLogin(ctx, acc.ID, now, 5, time.Hour)
					assert.NoError(t, err)
					if res.Locked {
						mu.Lock()
						locked++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			got, err := s.Accounts().GetAccountByID(ctx, acc.ID)
			require.NoError(t, err)
			require.Equal(t, workers, got.FailedLoginAttempts)
			require.Equal(t, 1, locked)
		})
	}
}

func TestRecordFailedLoginLoweredThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()
	window := 15 * time.Minute

	// Seven failures counted under a threshold of ten, never locked.
	acc := domain.Account{
		ID: idx.New().String(), Role: domain.RoleTeacher, Email: ptr("stale@example.com"),
		PasswordHash: "hash", IsActive: true, Status: domain.StatusActive, FailedLoginAttempts: 7,
	}
	require.NoError(t, s.Accounts().CreateAccount(ctx, acc))

	res, err := s.Accounts().RecordFailedLogin(ctx, acc.ID, now, 5, window)
	require.NoError(t, err)
	require.Equal(t, 8, res.Attempts)
	require.True(t, res.Locked)
	require.NotNil(t, res.LockedUntil)
	require.Equal(t, now.Add(window), *res.LockedUntil)

	res, err = s.Accounts().RecordFailedLogin(ctx, acc.ID, now.Add(time.Minute), 5, window)
	require.NoError(t, err)
	require.False(t, res.Locked)
	require.Equal(t, now.Add(window), *res.LockedUntil)
}

func TestFileDSNPragmas(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"bare file", "file:auth.db", FileDSN("auth.db")},
		{"plain path", "/var/lib/auth.db", FileDSN("/var/lib/auth.db")},
		{"keeps extra params", "file:auth.db?cache=shared", FileDSN("auth.db") + "&cache=shared"},
		{"memory untouched", ":memory:", ":memory:"},
		{"shared memory untouched", "file:x?mode=memory&cache=shared", "file:x?mode=memory&cache=shared"},
		{"tuned untouched", "file:auth.db?_pragma=busy_timeout(100)", "file:auth.db?_pragma=busy_timeout(100)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, withFilePragmas(tt.dsn))
		})
	}

	s := newFileStore(t)
	var mode string
	require.NoError(t, s.db.QueryRowContext(context.Background(), `PRAGMA journal_mode`).Scan(&mode))
	require.Equal(t, "wal", mode)
}

func TestRecordSuccessfulLogin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()

	acc := domain.Account{
		ID: idx.New().String(), Role: domain.RoleSchoolAdmin, Email: ptr("admin@example.com"),
		PasswordHash: "x", IsActive: true, Status: domain.StatusActive, MustChangePassword: true,
	}
	require.NoError(t, s.Accounts().CreateAccount(ctx, acc))

	t.Run("refused while locked", func(t *testing.T) {
		for range 5 {
			_, err := s.Accounts().RecordFailedLogin(ctx, acc.ID, now, 5, 15*time.Minute)
			require.NoError(t, err)
		}
		_, err := s.Accounts().RecordSuccessfulLogin(ctx, acc.ID, now.Add(time.Minute), true)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("keeps must_change_password unless asked", func(t *testing.T) {
		after := now.Add(15 * time.Minute)
		mustChange, err := s.Accounts().RecordSuccessfulLogin(ctx, acc.ID, after, false)
		require.NoError(t, err)
		require.True(t, mustChange)

		got, err := s.Accounts().GetAccountByID(ctx, acc.ID)
		require.NoError(t, err)
		require.Zero(t, got.FailedLoginAttempts)
		require.Nil(t, got.LastFailedLoginAt)
		require.Nil(t, got.AccountLockedUntil)
		require.Equal(t, after, *got.LastLoginAt)
	})

	t.Run("clears must_change_password", func(t *testing.T) {
		mustChange, err := s.Accounts().RecordSuccessfulLogin(ctx, acc.ID, now.Add(time.Hour), true)
		require.NoError(t, err)
		require.False(t, mustChange)
	})
}

func TestParentLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parentAcc := seedAccount(t, s, domain.RoleParent, "dad@example.com")
	parent := domain.ParentProfile{ID: idx.New().String(), AccountID: parentAcc.ID}
	require.NoError(t, s.Parents().CreateParent(ctx, parent))

	pending := domain.StudentProfile{ID: idx.New().String(), StudentNumber: "S-001", Status: domain.StatusPending}
	active := domain.StudentProfile{ID: idx.New().String(), StudentNumber: "S-002", Status: domain.StatusActive}
	require.NoError(t, s.Students().CreateStudent(ctx, pending))
	require.NoError(t, s.Students().CreateStudent(ctx, active))

	n, err := s.Parents().CountActiveLinkedStudents(ctx, parent.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.Parents().LinkStudent(ctx, domain.ParentStudentLink{ParentID: parent.ID, StudentID: pending.ID}))
	n, err = s.Parents().CountActiveLinkedStudents(ctx, parent.ID)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.Parents().LinkStudent(ctx, domain.ParentStudentLink{ParentID: parent.ID, StudentID: active.ID, Relation: "father"}))
	n, err = s.Parents().CountActiveLinkedStudents(ctx, parent.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := s.Parents().GetParentByAccountID(ctx, parentAcc.ID)
	require.NoError(t, err)
	require.Equal(t, parent.ID, got.ID)

	st, err := s.Students().GetStudentByNumber(ctx, "S-002")
	require.NoError(t, err)
	require.Nil(t, st.AccountID)
	require.Equal(t, domain.StatusActive, st.Status)
}

func TestResetTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, domain.RoleTeacher, "reset@example.com")
	issued := time.UnixMilli(1_700_000_000_000).UTC()

	tok := domain.ResetToken{
		ID: idx.New().String(), AccountID: acc.ID, TokenHash: "h1",
		Purpose: domain.ResetPurposeSelfService, IssuedAt: issued, ExpiresAt: issued.Add(time.Hour),
	}
	require.NoError(t, s.ResetTokens().CreateResetToken(ctx, tok))

	t.Run("refuses at the expiry instant", func(t *testing.T) {
		_, err := s.ResetTokens().ConsumeResetToken(ctx, "h1", tok.ExpiresAt)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("consumes exactly once", func(t *testing.T) {
		accountID, err := s.ResetTokens().ConsumeResetToken(ctx, "h1", tok.ExpiresAt.Add(-time.Millisecond))
		require.NoError(t, err)
		require.Equal(t, acc.ID, accountID)

		_, err = s.ResetTokens().ConsumeResetToken(ctx, "h1", issued)
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.ResetTokens().GetResetTokenByHash(ctx, "h1")
		require.NoError(t, err)
		require.True(t, got.Consumed())
	})

	t.Run("invalidate marks all open tokens consumed", func(t *testing.T) {
		for _, h := range []string{"h2", "h3"} {
			require.NoError(t, s.ResetTokens().CreateResetToken(ctx, domain.ResetToken{
				ID: idx.New().String(), AccountID: acc.ID, TokenHash: h,
				Purpose: domain.ResetPurposeApproval, IssuedAt: issued, ExpiresAt: issued.Add(24 * time.Hour),
			}))
		}
		require.NoError(t, s.ResetTokens().InvalidateResetTokensForAccount(ctx, acc.ID, issued))

		for _, h := range []string{"h2", "h3"} {
			_, err := s.ResetTokens().ConsumeResetToken(ctx, h, issued)
			require.ErrorIs(t, err, store.ErrNotFound)
		}
	})

	t.Run("housekeeping deletes expired and consumed tokens", func(t *testing.T) {
		n, err := s.ResetTokens().DeleteExpiredResetTokens(ctx, issued.Add(48*time.Hour), issued.Add(24*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
	})
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := seedAccount(t, s, domain.RoleTeacher, "tx@example.com")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().UpdatePassword(ctx, acc.ID, "new-hash", time.Now()); err != nil {
			return err
		}
		return store.ErrNotFound
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Accounts().GetAccountByID(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, "hash", got.PasswordHash)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		return tx.WithTx(ctx, func(store.Tx) error { return nil })
	})
	require.Error(t, err)
}

func TestSigningKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()

	for i, kid := range []string{"k1", "k2"} {
		require.NoError(t, s.SigningKeys().CreateSigningKey(ctx, domain.SigningKey{
			ID: idx.New().String(), Kid: kid, Algorithm: "EdDSA",
			PrivateKeyEncrypted: []byte{1, 2, 3},
			CreatedAt:           now.Add(time.Duration(i) * time.Second),
			ExpiresAt:           now.Add(time.Hour),
		}))
	}

	require.NoError(t, s.SigningKeys().RetireSigningKey(ctx, "k1", now, now.Add(time.Minute)))

	active, err := s.SigningKeys().ListActiveSigningKeys(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "k2", active[0].Kid)
	require.Equal(t, []byte{1, 2, 3}, active[0].PrivateKeyEncrypted)

	all, err := s.SigningKeys().ListAllSigningKeys(ctx, now)
	require.NoError(t, err)
	require.Len(t, all, 2)

	n, err := s.SigningKeys().DeleteExpiredSigningKeys(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
