package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campushub/apiserver/types"
)

const userColumns = `
	id, email, password_hash, role, first_name, last_name, phone, profile_picture,
	active, verification_token, verification_expires, reset_token, reset_expires,
	refresh_token, created_at, updated_at`

// UserRepository handles persistence for users and their role profiles.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userScanner interface {
	Scan(dest ...any) error
}

func scanUser(row userScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.ProfilePicture,
		&user.Active,
		&user.VerificationToken,
		&user.VerificationExpires,
		&user.ResetToken,
		&user.ResetExpires,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.User{}, err
	}
	return r.attachProfile(ctx, user)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return types.User{}, err
	}
	return r.attachProfile(ctx, user)
}

// GetByVerificationToken matches an unexpired verification token.
// An expired or already-redeemed token yields ErrNotFound.
func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (types.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users
		WHERE verification_token = $1 AND verification_expires > $2`
	return scanUser(r.db.QueryRowContext(ctx, query, token, time.Now()))
}

// GetByResetToken matches an unexpired password-reset token.
func (r *UserRepository) GetByResetToken(ctx context.Context, token string) (types.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users
		WHERE reset_token = $1 AND reset_expires > $2`
	return scanUser(r.db.QueryRowContext(ctx, query, token, time.Now()))
}

const insertUserQuery = `
	INSERT INTO users (
		email, password_hash, role, first_name, last_name, phone, active,
		verification_token, verification_expires, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id`

// Create inserts a bare account row without a role profile. Used by the
// administrative seed path.
func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := r.db.QueryRowContext(
		ctx,
		insertUserQuery,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Active,
		user.VerificationToken,
		user.VerificationExpires,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return types.User{}, mapUniqueViolation(err)
	}
	return user, nil
}

// CreateStudent inserts the account and its student profile in one
// transaction. Either both rows exist afterwards or neither does.
func (r *UserRepository) CreateStudent(ctx context.Context, user types.User, profile types.StudentProfile) (types.User, error) {
	created, err := r.createWithProfile(ctx, user, func(ctx context.Context, tx *sql.Tx, userID int) error {
		const query = `
			INSERT INTO student_profiles (user_id, department_id, student_number, enrollment_year, gpa)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		profile.UserID = userID
		return tx.QueryRowContext(ctx, query, userID, profile.DepartmentID, profile.StudentNumber, profile.EnrollmentYear, profile.GPA).Scan(&profile.ID)
	})
	if err != nil {
		return types.User{}, err
	}
	created.StudentProfile = &profile
	return created, nil
}

// CreateFaculty inserts the account and its faculty profile in one transaction.
func (r *UserRepository) CreateFaculty(ctx context.Context, user types.User, profile types.FacultyProfile) (types.User, error) {
	created, err := r.createWithProfile(ctx, user, func(ctx context.Context, tx *sql.Tx, userID int) error {
		const query = `
			INSERT INTO faculty_profiles (user_id, department_id, employee_number, title, office)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`
		profile.UserID = userID
		return tx.QueryRowContext(ctx, query, userID, profile.DepartmentID, profile.EmployeeNumber, profile.Title, profile.Office).Scan(&profile.ID)
	})
	if err != nil {
		return types.User{}, err
	}
	created.FacultyProfile = &profile
	return created, nil
}

func (r *UserRepository) createWithProfile(
	ctx context.Context,
	user types.User,
	insertProfile func(ctx context.Context, tx *sql.Tx, userID int) error,
) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.User{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	err = tx.QueryRowContext(
		ctx,
		insertUserQuery,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Active,
		user.VerificationToken,
		user.VerificationExpires,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return types.User{}, mapUniqueViolation(err)
	}

	if err := insertProfile(ctx, tx, user.ID); err != nil {
		if isForeignKeyViolation(err) {
			return types.User{}, ErrDepartmentMissing
		}
		return types.User{}, mapUniqueViolation(err)
	}

	if err := tx.Commit(); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// Activate flips the account active and clears the verification token,
// making the token single-use.
func (r *UserRepository) Activate(ctx context.Context, id int) error {
	const query = `
		UPDATE users
		SET active = TRUE,
			verification_token = NULL,
			verification_expires = NULL,
			updated_at = $1
		WHERE id = $2`
	return r.exec(ctx, query, time.Now(), id)
}

// SetRefreshToken overwrites the single stored refresh token. Pass nil to
// clear it (logout). Last write wins.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id int, token *string) error {
	const query = `UPDATE users SET refresh_token = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, token, time.Now(), id)
}

// SetResetToken stores a password-reset token, superseding any prior one.
func (r *UserRepository) SetResetToken(ctx context.Context, id int, token string, expires time.Time) error {
	const query = `
		UPDATE users
		SET reset_token = $1, reset_expires = $2, updated_at = $3
		WHERE id = $4`
	return r.exec(ctx, query, token, expires, time.Now(), id)
}

// UpdatePassword stores a new hash, consumes the reset token, and clears the
// stored refresh token so existing sessions are invalidated.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			reset_token = NULL,
			reset_expires = NULL,
			refresh_token = NULL,
			updated_at = $2
		WHERE id = $3`
	return r.exec(ctx, query, passwordHash, time.Now(), id)
}

// UpdateProfilePicture records the object-storage key of the user's avatar.
func (r *UserRepository) UpdateProfilePicture(ctx context.Context, id int, key string) error {
	const query = `UPDATE users SET profile_picture = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, key, time.Now(), id)
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) attachProfile(ctx context.Context, user types.User) (types.User, error) {
	switch user.Role {
	case types.RoleStudent:
		const query = `
			SELECT id, user_id, department_id, student_number, enrollment_year, gpa
			FROM student_profiles
			WHERE user_id = $1`
		var profile types.StudentProfile
		err := r.db.QueryRowContext(ctx, query, user.ID).Scan(
			&profile.ID,
			&profile.UserID,
			&profile.DepartmentID,
			&profile.StudentNumber,
			&profile.EnrollmentYear,
			&profile.GPA,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return user, nil
			}
			return types.User{}, err
		}
		user.StudentProfile = &profile
	case types.RoleFaculty:
		const query = `
			SELECT id, user_id, department_id, employee_number, title, office
			FROM faculty_profiles
			WHERE user_id = $1`
		var profile types.FacultyProfile
		err := r.db.QueryRowContext(ctx, query, user.ID).Scan(
			&profile.ID,
			&profile.UserID,
			&profile.DepartmentID,
			&profile.EmployeeNumber,
			&profile.Title,
			&profile.Office,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return user, nil
			}
			return types.User{}, err
		}
		user.FacultyProfile = &profile
	}
	return user, nil
}
