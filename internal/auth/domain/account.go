package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles known to the school app.
type Role string

const (
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleSchoolAdmin   Role = "SCHOOL_ADMIN"
	RoleTeacher       Role = "TEACHER"
	RoleAccountant    Role = "ACCOUNTANT"
	RoleRegistrar     Role = "REGISTRAR"
	RoleHostelManager Role = "HOSTEL_MANAGER"
	RoleParent        Role = "PARENT"
	RoleStudent       Role = "STUDENT"
)

var allRoles = []Role{
	RoleSuperAdmin,
	RoleSchoolAdmin,
	RoleTeacher,
	RoleAccountant,
	RoleRegistrar,
	RoleHostelManager,
	RoleParent,
	RoleStudent,
}

// ParseRole maps a stored role string onto the enum.
func ParseRole(s string) (Role, error) {
	for _, r := range allRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("domain: unknown role %q", s)
}

// IsPortalOnly reports whether the role signs in through the parent or
// student portal instead of the staff login.
func (r Role) IsPortalOnly() bool {
	return r == RoleParent || r == RoleStudent
}

// IsAdministrative reports the SUPER_ADMIN and SCHOOL_ADMIN roles.
func (r Role) IsAdministrative() bool {
	return r == RoleSuperAdmin || r == RoleSchoolAdmin
}

// AccountStatus is the approval/workflow state of an account or profile.
// It is independent of Account.IsActive.
type AccountStatus string

const (
	StatusPending   AccountStatus = "PENDING"
	StatusActive    AccountStatus = "ACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
	StatusRejected  AccountStatus = "REJECTED"
	StatusGraduated AccountStatus = "GRADUATED"
)

// LoginSurface is the role tag carried by a login request. It selects the
// identity namespace used to resolve the identifier.
type LoginSurface string

const (
	SurfaceStaff   LoginSurface = "staff"
	SurfaceParent  LoginSurface = "parent"
	SurfaceStudent LoginSurface = "student"
)

// ParseLoginSurface accepts the request role tag. An empty tag means the
// staff surface.
func ParseLoginSurface(s string) (LoginSurface, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SurfaceStaff):
		return SurfaceStaff, nil
	case string(SurfaceParent):
		return SurfaceParent, nil
	case string(SurfaceStudent):
		return SurfaceStudent, nil
	default:
		return "", fmt.Errorf("domain: unknown login surface %q", s)
	}
}

// Account holds identity, credential and security state for one login.
type Account struct {
	ID           string
	Role         Role
	Email        *string // optional for students
	Phone        *string
	PasswordHash string // argon2id PHC string, or bcrypt for imported accounts
	IsActive     bool   // administrative kill switch
	Status       AccountStatus
	SchoolID     *string

	FailedLoginAttempts int
	LastFailedLoginAt   *time.Time
	AccountLockedUntil  *time.Time
	LastLoginAt         *time.Time
	MustChangePassword  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LockedAt reports whether the materialized lock is still in force.
func (a *Account) LockedAt(now time.Time) bool {
	return a.AccountLockedUntil != nil && now.Before(*a.AccountLockedUntil)
}
