package service

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
)

// Resolver maps a login identifier to an account within one identity
// namespace. It only looks up and gates on eligibility; it never reads the
// password or lockout fields.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (domain.Account, error)
}

// IdentityResolver selects the Resolver for a login surface.
type IdentityResolver struct {
	Store store.Store
}

// For is the single dispatch point from surface to namespace.
func (r *IdentityResolver) For(surface domain.LoginSurface) (Resolver, error) {
	switch surface {
	case domain.SurfaceStudent:
		return &StudentResolver{Store: r.Store}, nil
	case domain.SurfaceParent:
		return &ParentResolver{Store: r.Store}, nil
	case domain.SurfaceStaff, "":
		return &StaffResolver{Store: r.Store}, nil
	default:
		return nil, ErrInvalidSurface
	}
}

// Resolve is For followed by Resolve.
func (r *IdentityResolver) Resolve(ctx context.Context, surface domain.LoginSurface, identifier string) (domain.Account, error) {
	res, err := r.For(surface)
	if err != nil {
		return domain.Account{}, err
	}
	return res.Resolve(ctx, identifier)
}

// StudentResolver resolves a student number.
type StudentResolver struct {
	Store store.Store
}

func (r *StudentResolver) Resolve(ctx context.Context, studentNumber string) (domain.Account, error) {
	studentNumber = strings.TrimSpace(studentNumber)
	if studentNumber == "" {
		return domain.Account{}, ErrNotFound
	}

	profile, err := r.Store.Students().GetStudentByNumber(ctx, studentNumber)
	if err != nil {
		return domain.Account{}, lookupErr("get student", err)
	}
	if profile.AccountID == nil {
		return domain.Account{}, ErrNotFound
	}

	acc, err := r.Store.Accounts().GetAccountByID(ctx, *profile.AccountID)
	if err != nil {
		return domain.Account{}, lookupErr("get student account", err)
	}
	if acc.Role != domain.RoleStudent {
		return domain.Account{}, ErrNotFound
	}
	if profile.Status != domain.StatusActive {
		return domain.Account{}, ErrInactiveAccount
	}
	return acc, nil
}

// ParentResolver resolves an email address or, failing an "@", a phone
// number registered to a PARENT account.
type ParentResolver struct {
	Store store.Store
}

func (r *ParentResolver) Resolve(ctx context.Context, identifier string) (domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return domain.Account{}, ErrNotFound
	}

	var (
		acc domain.Account
		err error
	)
	if strings.Contains(identifier, "@") {
		acc, err = r.Store.Accounts().GetAccountByEmail(ctx, identifier)
	} else {
		acc, err = r.Store.Accounts().GetParentAccountByPhone(ctx, identifier)
	}
	if err != nil {
		return domain.Account{}, lookupErr("get parent account", err)
	}

	// A staff or student email typed into the parent portal must look like
	// any other bad login.
	if acc.Role != domain.RoleParent {
		return domain.Account{}, ErrInvalidCredentials
	}
	if acc.Status == domain.StatusPending {
		return domain.Account{}, ErrPendingApproval
	}

	profile, err := r.Store.Parents().GetParentByAccountID(ctx, acc.ID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrNoLinkedStudent
	}
	if err != nil {
		return domain.Account{}, unavailable("get parent profile", err)
	}

	n, err := r.Store.Parents().CountActiveLinkedStudents(ctx, profile.ID)
	if err != nil {
		return domain.Account{}, unavailable("count linked students", err)
	}
	if n == 0 {
		return domain.Account{}, ErrNoLinkedStudent
	}
	return acc, nil
}

// StaffResolver resolves an email address and turns portal-only roles away.
type StaffResolver struct {
	Store store.Store
}

func (r *StaffResolver) Resolve(ctx context.Context, email string) (domain.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Account{}, ErrNotFound
	}

	acc, err := r.Store.Accounts().GetAccountByEmail(ctx, email)
	if err != nil {
		return domain.Account{}, lookupErr("get staff account", err)
	}
	if acc.Role.IsPortalOnly() {
		return domain.Account{}, ErrUsePortalLogin
	}
	return acc, nil
}

func lookupErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return unavailable(op, err)
}
