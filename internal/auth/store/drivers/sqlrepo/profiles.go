package sqlrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
)

type studentsRepo struct {
	q *Queries
}

func (r *studentsRepo) GetStudentByNumber(ctx context.Context, studentNumber string) (domain.StudentProfile, error) {
	var (
		s                   domain.StudentProfile
		accountID, schoolID sql.NullString
		status              string
		createdAt           int64
	)
	err := r.q.queryRow(ctx, `
		SELECT id, account_id, student_number, status, school_id, created_at
		FROM student_profiles
		WHERE student_number = ?`,
		studentNumber,
	).Scan(&s.ID, &accountID, &s.StudentNumber, &status, &schoolID, &createdAt)
	if err != nil {
		return domain.StudentProfile{}, mapNotFound(err)
	}

	s.AccountID = mapNullStringPtr(accountID)
	s.SchoolID = mapNullStringPtr(schoolID)
	s.Status = domain.AccountStatus(status)
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *studentsRepo) CreateStudent(ctx context.Context, s domain.StudentProfile) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO student_profiles (id, account_id, student_number, status, school_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, mapOptionalString(s.AccountID), s.StudentNumber, string(s.Status),
		mapOptionalString(s.SchoolID), toMillis(stamp(s.CreatedAt)),
	)
	return err
}

func (r *studentsRepo) SetStudentStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	res, err := r.q.exec(ctx,
		`UPDATE student_profiles SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type parentsRepo struct {
	q *Queries
}

func (r *parentsRepo) GetParentByAccountID(ctx context.Context, accountID string) (domain.ParentProfile, error) {
	var (
		p         domain.ParentProfile
		createdAt int64
	)
	err := r.q.queryRow(ctx,
		`SELECT id, account_id, created_at FROM parent_profiles WHERE account_id = ?`,
		accountID,
	).Scan(&p.ID, &p.AccountID, &createdAt)
	if err != nil {
		return domain.ParentProfile{}, mapNotFound(err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

func (r *parentsRepo) CreateParent(ctx context.Context, p domain.ParentProfile) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO parent_profiles (id, account_id, created_at) VALUES (?, ?, ?)`,
		p.ID, p.AccountID, toMillis(stamp(p.CreatedAt)),
	)
	return err
}

func (r *parentsRepo) LinkStudent(ctx context.Context, link domain.ParentStudentLink) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO parent_students (parent_id, student_id, relation, created_at)
		VALUES (?, ?, ?, ?)`,
		link.ParentID, link.StudentID, link.Relation, toMillis(stamp(link.CreatedAt)),
	)
	return err
}

func (r *parentsRepo) CountActiveLinkedStudents(ctx context.Context, parentID string) (int, error) {
	var n int
	err := r.q.queryRow(ctx, `
		SELECT COUNT(*)
		FROM parent_students ps
		JOIN student_profiles sp ON sp.id = ps.student_id
		WHERE ps.parent_id = ? AND sp.status = ?`,
		parentID, string(domain.StatusActive),
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

type schoolsRepo struct {
	q *Queries
}

func (r *schoolsRepo) GetSchoolByID(ctx context.Context, id string) (domain.School, error) {
	var (
		s         domain.School
		createdAt int64
	)
	err := r.q.queryRow(ctx,
		`SELECT id, name, subdomain, created_at FROM schools WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.Name, &s.Subdomain, &createdAt)
	if err != nil {
		return domain.School{}, mapNotFound(err)
	}
	s.CreatedAt = fromMillis(createdAt)
	return s, nil
}

func (r *schoolsRepo) CreateSchool(ctx context.Context, s domain.School) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO schools (id, name, subdomain, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Name, s.Subdomain, toMillis(stamp(s.CreatedAt)),
	)
	return err
}

// stamp defaults a zero creation time to now.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
