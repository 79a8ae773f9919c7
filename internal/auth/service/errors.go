package service

import (
	"errors"
	"fmt"
	"strconv"
)

// FailureKind enumerates why a login or resolution was refused.
type FailureKind int

const (
	KindInvalidCredentials FailureKind = iota + 1
	KindNotFound
	KindInactiveAccount
	KindAccountLocked
	KindPendingApproval
	KindNoLinkedStudent
	KindUsePortalLogin
)

// Failure is a typed login refusal. MinutesRemaining is only meaningful for
// KindAccountLocked.
type Failure struct {
	Kind             FailureKind
	MinutesRemaining int
}

// Code is the stable wire string the UI parses. NotFound is coarsened to
// invalid_credentials so callers cannot probe which identifiers exist.
func (f *Failure) Code() string {
	switch f.Kind {
	case KindInactiveAccount:
		return "inactive_account"
	case KindAccountLocked:
		return "account_locked:" + strconv.Itoa(f.MinutesRemaining)
	case KindPendingApproval:
		return "pending_approval"
	case KindNoLinkedStudent:
		return "no_linked_student"
	case KindUsePortalLogin:
		return "use_portal_login"
	default:
		return "invalid_credentials"
	}
}

// Outcome is Code without the lock minutes, for metrics labels.
func (f *Failure) Outcome() string {
	if f.Kind == KindAccountLocked {
		return "account_locked"
	}
	if f.Kind == KindNotFound {
		return "not_found"
	}
	return f.Code()
}

func (f *Failure) Error() string { return "service: " + f.Code() }

// Is matches on Kind so errors.Is(err, ErrAccountLocked) holds whatever the
// minutes.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

// Locked builds an AccountLocked failure.
func Locked(minutes int) *Failure {
	return &Failure{Kind: KindAccountLocked, MinutesRemaining: minutes}
}

var (
	ErrInvalidCredentials = &Failure{Kind: KindInvalidCredentials}
	ErrNotFound           = &Failure{Kind: KindNotFound}
	ErrInactiveAccount    = &Failure{Kind: KindInactiveAccount}
	ErrAccountLocked      = &Failure{Kind: KindAccountLocked}
	ErrPendingApproval    = &Failure{Kind: KindPendingApproval}
	ErrNoLinkedStudent    = &Failure{Kind: KindNoLinkedStudent}
	ErrUsePortalLogin     = &Failure{Kind: KindUsePortalLogin}
)

// AsFailure extracts the *Failure from err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

var (
	// ErrUnavailable marks store or dependency failures. No state change
	// should be assumed when it is returned.
	ErrUnavailable = errors.New("service: temporarily unavailable")

	ErrResetTokenNotFound = errors.New("service: reset token not found")
	ErrResetTokenUsed     = errors.New("service: reset token already used")
	ErrResetTokenExpired  = errors.New("service: reset token expired")
	ErrWeakPassword       = errors.New("service: password does not meet policy")
	ErrInvalidSurface     = errors.New("service: unknown login surface")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
