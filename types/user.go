package types

import "time"

// Roles assignable to an account.
const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
	RoleAdmin   = "admin"
)

// User represents an account in the system.
// It contains identity, role, and session metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's email address, stored lowercased and globally unique.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level within the system
	// ("student", "faculty", or "admin").
	Role string `json:"role" db:"role"`

	// FirstName and LastName hold the user's legal name.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// Phone is an optional contact number.
	Phone *string `json:"phone,omitempty" db:"phone"`

	// ProfilePicture is the object-storage key of the user's avatar, if any.
	ProfilePicture *string `json:"profile_picture,omitempty" db:"profile_picture"`

	// Active is false until the user redeems their email verification token,
	// unless the account was provisioned through the administrative seed path.
	Active bool `json:"active" db:"active"`

	// VerificationToken and VerificationExpires gate email verification.
	// Cleared once the token is redeemed. Never exposed in API responses.
	VerificationToken   *string    `json:"-" db:"verification_token"`
	VerificationExpires *time.Time `json:"-" db:"verification_expires"`

	// ResetToken and ResetExpires gate password reset. Cleared on redemption.
	// Never exposed in API responses.
	ResetToken   *string    `json:"-" db:"reset_token"`
	ResetExpires *time.Time `json:"-" db:"reset_expires"`

	// RefreshToken is the single live refresh token for this account. A new
	// login or refresh overwrites it; logout and password reset clear it.
	// Never exposed in API responses.
	RefreshToken *string `json:"-" db:"refresh_token"`

	// StudentProfile and FacultyProfile are populated on fetch when present.
	// At most one of the two exists, determined by Role at creation time.
	StudentProfile *StudentProfile `json:"student_profile,omitempty" db:"-"`
	FacultyProfile *FacultyProfile `json:"faculty_profile,omitempty" db:"-"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StudentProfile holds the student-specific half of an account.
type StudentProfile struct {
	ID             int     `json:"id" db:"id"`
	UserID         int     `json:"user_id" db:"user_id"`
	DepartmentID   int     `json:"department_id" db:"department_id"`
	StudentNumber  string  `json:"student_number" db:"student_number"`
	EnrollmentYear int     `json:"enrollment_year" db:"enrollment_year"`
	GPA            float64 `json:"gpa" db:"gpa"`
}

// FacultyProfile holds the faculty-specific half of an account.
type FacultyProfile struct {
	ID             int     `json:"id" db:"id"`
	UserID         int     `json:"user_id" db:"user_id"`
	DepartmentID   int     `json:"department_id" db:"department_id"`
	EmployeeNumber string  `json:"employee_number" db:"employee_number"`
	Title          string  `json:"title" db:"title"`
	Office         *string `json:"office,omitempty" db:"office"`
}
