package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

func TestMapUniqueViolation(t *testing.T) {
	cases := []struct {
		constraint string
		want       error
	}{
		{"users_email_key", ErrDuplicateEmail},
		{"student_profiles_student_number_key", ErrDuplicateStudentNumber},
		{"faculty_profiles_employee_number_key", ErrDuplicateEmployeeNumber},
		{"departments_code_key", ErrDuplicateDepartmentCode},
	}

	for _, tc := range cases {
		if got := mapUniqueViolation(uniqueViolation(tc.constraint)); !errors.Is(got, tc.want) {
			t.Fatalf("constraint %s mapped to %v, want %v", tc.constraint, got, tc.want)
		}
	}
}

func TestMapUniqueViolationPassesThroughUnknown(t *testing.T) {
	unknown := uniqueViolation("some_other_key")
	if got := mapUniqueViolation(unknown); got != unknown {
		t.Fatalf("unknown constraint should pass through, got %v", got)
	}

	plain := errors.New("connection reset")
	if got := mapUniqueViolation(plain); got != plain {
		t.Fatalf("non-pq error should pass through, got %v", got)
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !isForeignKeyViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("expected foreign key violation to be detected")
	}
	if isForeignKeyViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("unique violation misdetected as foreign key violation")
	}
	if isForeignKeyViolation(errors.New("plain")) {
		t.Fatalf("plain error misdetected as foreign key violation")
	}
}
