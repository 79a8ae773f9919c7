package domain

import "time"

// StudentProfile is 1:1 with a STUDENT account. The student number is the
// login identifier in place of an email address.
type StudentProfile struct {
	ID            string
	AccountID     *string // nil until an account is provisioned
	StudentNumber string
	Status        AccountStatus
	SchoolID      *string
	CreatedAt     time.Time
}

// ParentProfile is 1:1 with a PARENT account.
type ParentProfile struct {
	ID        string
	AccountID string
	CreatedAt time.Time
}

// ParentStudentLink relates a parent to one of their students.
type ParentStudentLink struct {
	ParentID  string
	StudentID string
	Relation  string // "mother", "guardian", ...
	CreatedAt time.Time
}

// School is the tenant an account belongs to.
type School struct {
	ID        string
	Name      string
	Subdomain string
	CreatedAt time.Time
}
