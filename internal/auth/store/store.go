package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are reached through methods so a Tx-scoped
// Store hands out repos bound to the same transaction, and nested
// transactions are refused instead of silently opened.
type Store interface {
	Accounts() Accounts
	Students() Students
	Parents() Parents
	Schools() Schools
	ResetTokens() ResetTokens
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// FailedLoginResult is what RecordFailedLogin observed after its write.
type FailedLoginResult struct {
	Attempts    int
	LockedUntil *time.Time

	// Locked is true only for the write that crossed the threshold.
	Locked bool
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail is an exact, case-sensitive match.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// GetParentAccountByPhone only considers PARENT accounts.
	GetParentAccountByPhone(ctx context.Context, phone string) (domain.Account, error)

	CreateAccount(ctx context.Context, a domain.Account) error

	// RecordFailedLogin increments the failure counter in a single conditional
	// write and sets account_locked_until = now+window on the write whose
	// new count equals threshold. An unlocked account already past threshold
	// is locked by the next failure. An elapsed lock restarts the count at 1.
	RecordFailedLogin(ctx context.Context, id string, now time.Time, threshold int, window time.Duration) (FailedLoginResult, error)

	// RecordSuccessfulLogin clears the lockout fields and stamps last_login_at.
	// It applies only while the account is not locked at now, otherwise it
	// returns ErrNotFound. The returned bool is the stored must_change_password
	// after the write.
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time, clearMustChange bool) (bool, error)

	// UpdatePassword replaces the password hash and clears the lockout fields
	// and must_change_password.
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error

	SetActive(ctx context.Context, id string, active bool) error
	SetStatus(ctx context.Context, id string, status domain.AccountStatus) error
}

type Students interface {
	GetStudentByNumber(ctx context.Context, studentNumber string) (domain.StudentProfile, error)
	CreateStudent(ctx context.Context, s domain.StudentProfile) error
	SetStudentStatus(ctx context.Context, id string, status domain.AccountStatus) error
}

type Parents interface {
	GetParentByAccountID(ctx context.Context, accountID string) (domain.ParentProfile, error)
	CreateParent(ctx context.Context, p domain.ParentProfile) error
	LinkStudent(ctx context.Context, link domain.ParentStudentLink) error

	// CountActiveLinkedStudents counts linked students whose profile status is ACTIVE.
	CountActiveLinkedStudents(ctx context.Context, parentID string) (int, error)
}

type Schools interface {
	GetSchoolByID(ctx context.Context, id string) (domain.School, error)
	CreateSchool(ctx context.Context, s domain.School) error
}

type ResetTokens interface {
	CreateResetToken(ctx context.Context, t domain.ResetToken) error

	// GetResetTokenByHash returns the token regardless of state.
	GetResetTokenByHash(ctx context.Context, hash string) (domain.ResetToken, error)

	// InvalidateResetTokensForAccount marks every unconsumed token for the
	// account as consumed at now.
	InvalidateResetTokensForAccount(ctx context.Context, accountID string, now time.Time) error

	// ConsumeResetToken marks the token consumed iff it is unconsumed and
	// now < expires_at, returning its account id. Any other state yields
	// ErrNotFound.
	ConsumeResetToken(ctx context.Context, hash string, now time.Time) (string, error)

	// DeleteExpiredResetTokens removes expired tokens and tokens consumed
	// before consumedBefore.
	DeleteExpiredResetTokens(ctx context.Context, now, consumedBefore time.Time) (int64, error)
}

type SigningKeys interface {
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// ListActiveSigningKeys returns non-retired, non-expired keys, newest first.
	ListActiveSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// ListAllSigningKeys returns every non-expired key for verification.
	ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// RetireSigningKey stops a key from signing; it keeps verifying until
	// expiresAt.
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error

	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
