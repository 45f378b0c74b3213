package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campushub/apiserver/internal/apperr"
	"github.com/campushub/apiserver/internal/crypto"
	"github.com/campushub/apiserver/internal/mailer"
	"github.com/campushub/apiserver/internal/store"
	"github.com/campushub/apiserver/internal/token"
	"github.com/campushub/apiserver/types"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
)

// Messages deliberately shared between "no such account" and "wrong password"
// so login cannot be used to enumerate accounts. Forgot-password never
// reveals existence at all.
const (
	msgBadCredentials  = "invalid email or password"
	msgInactiveAccount = "please verify your email address before logging in"
	msgForgotPassword  = "if the address is registered, a reset link has been sent"
)

// UserRepository defines persistence operations for accounts and profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByVerificationToken(ctx context.Context, token string) (types.User, error)
	GetByResetToken(ctx context.Context, token string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	CreateStudent(ctx context.Context, user types.User, profile types.StudentProfile) (types.User, error)
	CreateFaculty(ctx context.Context, user types.User, profile types.FacultyProfile) (types.User, error)
	Activate(ctx context.Context, id int) error
	SetRefreshToken(ctx context.Context, id int, token *string) error
	SetResetToken(ctx context.Context, id int, token string, expires time.Time) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdateProfilePicture(ctx context.Context, id int, key string) error
}

// TokenIssuer issues and verifies the access/refresh token pair.
type TokenIssuer interface {
	IssueAccessToken(userID int, email, role string) (string, error)
	IssueRefreshToken(userID int, email, role string) (string, error)
	Verify(tokenString string) (*token.Claims, error)
}

// AuthService implements registration, verification, login, session refresh,
// logout, and password reset.
type AuthService struct {
	users       UserRepository
	departments DepartmentRepository
	tokens      TokenIssuer
	mail        mailer.Mailer
	frontendURL string
}

func NewAuthService(
	users UserRepository,
	departments DepartmentRepository,
	tokens TokenIssuer,
	mail mailer.Mailer,
	frontendURL string,
) *AuthService {
	return &AuthService{
		users:       users,
		departments: departments,
		tokens:      tokens,
		mail:        mail,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// RegisterInput carries the validated registration payload.
type RegisterInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	Phone          *string
	Role           string
	DepartmentID   int
	StudentNumber  string
	EmployeeNumber string
	Title          string
	Office         *string
}

// TokenPair is an access/refresh token couple.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is the successful login payload.
type LoginResult struct {
	User types.User
	TokenPair
}

// Register creates the account and its role profile atomically. The account
// starts inactive; a verification mail is attempted only after the commit and
// its failure does not fail the registration.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	email := NormalizeEmail(in.Email)

	if in.Role != types.RoleStudent && in.Role != types.RoleFaculty {
		return types.User{}, apperr.BadRequest("role must be student or faculty")
	}

	// Pre-checks narrow the common-case error; the unique constraints remain
	// the source of truth under concurrent registrations.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return types.User{}, apperr.Conflict("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	if _, err := s.departments.GetByID(ctx, in.DepartmentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.BadRequest("department does not exist")
		}
		return types.User{}, err
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	verificationToken, err := crypto.NewRandomToken()
	if err != nil {
		return types.User{}, err
	}
	expires := time.Now().Add(verificationTokenTTL)

	user := types.User{
		Email:               email,
		PasswordHash:        hash,
		Role:                in.Role,
		FirstName:           in.FirstName,
		LastName:            in.LastName,
		Phone:               in.Phone,
		Active:              false,
		VerificationToken:   &verificationToken,
		VerificationExpires: &expires,
	}

	var created types.User
	switch in.Role {
	case types.RoleStudent:
		created, err = s.users.CreateStudent(ctx, user, types.StudentProfile{
			DepartmentID:   in.DepartmentID,
			StudentNumber:  in.StudentNumber,
			EnrollmentYear: time.Now().Year(),
		})
	case types.RoleFaculty:
		created, err = s.users.CreateFaculty(ctx, user, types.FacultyProfile{
			DepartmentID:   in.DepartmentID,
			EmployeeNumber: in.EmployeeNumber,
			Title:          in.Title,
			Office:         in.Office,
		})
	}
	if err != nil {
		return types.User{}, translateRegistrationError(err)
	}

	s.sendMail(ctx, created.Email, "Verify your email address",
		fmt.Sprintf("Welcome to CampusHub, %s!\n\nPlease confirm your email address:\n%s/verify-email?token=%s\n\nThe link expires in 24 hours.",
			created.FirstName, s.frontendURL, verificationToken))

	return created, nil
}

func translateRegistrationError(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return apperr.Conflict("email already registered")
	case errors.Is(err, store.ErrDuplicateStudentNumber):
		return apperr.Conflict("this student number is already in use")
	case errors.Is(err, store.ErrDuplicateEmployeeNumber):
		return apperr.Conflict("this employee number is already in use")
	case errors.Is(err, store.ErrDepartmentMissing):
		return apperr.BadRequest("department does not exist")
	}
	return err
}

// VerifyEmail redeems a verification token. Redemption clears the token, so
// a second call with the same token fails.
func (s *AuthService) VerifyEmail(ctx context.Context, verificationToken string) error {
	user, err := s.users.GetByVerificationToken(ctx, verificationToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.BadRequest("invalid or expired verification link")
		}
		return err
	}
	return s.users.Activate(ctx, user.ID)
}

// Login checks credentials, requires a verified account, issues a token pair,
// and overwrites the stored refresh token (at most one live session).
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, apperr.Unauthorized(msgBadCredentials)
		}
		return LoginResult{}, err
	}

	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, apperr.Unauthorized(msgBadCredentials)
	}

	if !user.Active {
		return LoginResult{}, apperr.Unauthorized(msgInactiveAccount)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user, TokenPair: pair}, nil
}

// Refresh rotates the token pair. The presented refresh token must verify
// and equal the stored one; the stored value is what makes a self-contained
// refresh token revocable.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, apperr.Unauthorized("invalid or expired refresh token")
		}
		return TokenPair{}, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return TokenPair{}, apperr.Unauthorized("invalid or expired refresh token")
	}

	return s.issuePair(ctx, user)
}

// Logout clears the stored refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, userID int) error {
	err := s.users.SetRefreshToken(ctx, userID, nil)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// ForgotPassword issues a reset token when the account exists. The response
// is identical either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	resetToken, err := crypto.NewRandomToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, resetToken, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	s.sendMail(ctx, user.Email, "Reset your password",
		fmt.Sprintf("Hi %s,\n\nA password reset was requested for your account. Use the link below within one hour:\n%s/reset-password?token=%s\n\nIf you did not request this, you can ignore this message.",
			user.FirstName, s.frontendURL, resetToken))

	return nil
}

// ResetPassword redeems a reset token, stores the new hash, and clears the
// stored refresh token so every existing session is invalidated.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	user, err := s.users.GetByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.BadRequest("invalid or expired reset link")
		}
		return err
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

func (s *AuthService) issuePair(ctx context.Context, user types.User) (TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, &refresh); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// sendMail attempts delivery and swallows failures: mail is not part of the
// consistency boundary.
func (s *AuthService) sendMail(ctx context.Context, to, subject, body string) {
	if s.mail == nil {
		return
	}
	if err := s.mail.Send(ctx, to, subject, body); err != nil {
		log.Printf("failed to send mail to %s: %v", to, err)
	}
}

// NormalizeEmail lowercases and trims an address; emails are stored and
// compared in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
