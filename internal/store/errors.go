package store

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by the repositories. Uniqueness sentinels are
// produced from constraint violations, so they hold under concurrent writes
// where a pre-check has already passed.
var (
	ErrNotFound                = errors.New("not found")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrDuplicateStudentNumber  = errors.New("student number already in use")
	ErrDuplicateEmployeeNumber = errors.New("employee number already in use")
	ErrDuplicateDepartmentCode = errors.New("department code already in use")
	ErrDepartmentMissing       = errors.New("department does not exist")
	ErrDepartmentInUse         = errors.New("department is referenced by profiles")
)

// Constraint names from the schema; the error mapping below depends on them.
const (
	constraintUserEmail      = "users_email_key"
	constraintStudentNumber  = "student_profiles_student_number_key"
	constraintEmployeeNumber = "faculty_profiles_employee_number_key"
	constraintDepartmentCode = "departments_code_key"
)

const (
	pqUniqueViolation     = "unique_violation"
	pqForeignKeyViolation = "foreign_key_violation"
)

// mapUniqueViolation translates pq unique violations into sentinels.
// Other errors pass through unchanged.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Name() != pqUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case constraintUserEmail:
		return ErrDuplicateEmail
	case constraintStudentNumber:
		return ErrDuplicateStudentNumber
	case constraintEmployeeNumber:
		return ErrDuplicateEmployeeNumber
	case constraintDepartmentCode:
		return ErrDuplicateDepartmentCode
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == pqForeignKeyViolation
}
