package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campushub/apiserver/internal/apperr"
	"github.com/campushub/apiserver/internal/store"
	"github.com/campushub/apiserver/internal/token"
	"github.com/campushub/apiserver/types"
)

// memoryUserRepo mimics the SQL repository, including its uniqueness
// sentinels and all-or-nothing profile creation.
type memoryUserRepo struct {
	mu          sync.Mutex
	nextID      int
	users       map[int]*types.User
	departments map[int]bool
}

func newMemoryUserRepo(departmentIDs ...int) *memoryUserRepo {
	departments := make(map[int]bool)
	for _, id := range departmentIDs {
		departments[id] = true
	}
	return &memoryUserRepo{
		users:       make(map[int]*types.User),
		departments: departments,
	}
}

func (r *memoryUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return *user, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return *user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memoryUserRepo) GetByVerificationToken(_ context.Context, tokenString string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.VerificationToken != nil && *user.VerificationToken == tokenString &&
			user.VerificationExpires != nil && user.VerificationExpires.After(time.Now()) {
			return *user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memoryUserRepo) GetByResetToken(_ context.Context, tokenString string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ResetToken != nil && *user.ResetToken == tokenString &&
			user.ResetExpires != nil && user.ResetExpires.After(time.Now()) {
			return *user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memoryUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkEmail(user.Email); err != nil {
		return types.User{}, err
	}
	return *r.insert(user), nil
}

func (r *memoryUserRepo) CreateStudent(_ context.Context, user types.User, profile types.StudentProfile) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkEmail(user.Email); err != nil {
		return types.User{}, err
	}
	if !r.departments[profile.DepartmentID] {
		return types.User{}, store.ErrDepartmentMissing
	}
	for _, existing := range r.users {
		if existing.StudentProfile != nil && existing.StudentProfile.StudentNumber == profile.StudentNumber {
			return types.User{}, store.ErrDuplicateStudentNumber
		}
	}
	created := r.insert(user)
	profile.UserID = created.ID
	created.StudentProfile = &profile
	return *created, nil
}

func (r *memoryUserRepo) CreateFaculty(_ context.Context, user types.User, profile types.FacultyProfile) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkEmail(user.Email); err != nil {
		return types.User{}, err
	}
	if !r.departments[profile.DepartmentID] {
		return types.User{}, store.ErrDepartmentMissing
	}
	for _, existing := range r.users {
		if existing.FacultyProfile != nil && existing.FacultyProfile.EmployeeNumber == profile.EmployeeNumber {
			return types.User{}, store.ErrDuplicateEmployeeNumber
		}
	}
	created := r.insert(user)
	profile.UserID = created.ID
	created.FacultyProfile = &profile
	return *created, nil
}

func (r *memoryUserRepo) Activate(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Active = true
	user.VerificationToken = nil
	user.VerificationExpires = nil
	return nil
}

func (r *memoryUserRepo) SetRefreshToken(_ context.Context, id int, tokenString *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.RefreshToken = tokenString
	return nil
}

func (r *memoryUserRepo) SetResetToken(_ context.Context, id int, tokenString string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ResetToken = &tokenString
	user.ResetExpires = &expires
	return nil
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.ResetToken = nil
	user.ResetExpires = nil
	user.RefreshToken = nil
	return nil
}

func (r *memoryUserRepo) UpdateProfilePicture(_ context.Context, id int, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ProfilePicture = &key
	return nil
}

func (r *memoryUserRepo) checkEmail(email string) error {
	for _, existing := range r.users {
		if existing.Email == email {
			return store.ErrDuplicateEmail
		}
	}
	return nil
}

func (r *memoryUserRepo) insert(user types.User) *types.User {
	r.nextID++
	user.ID = r.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = &user
	return r.users[user.ID]
}

type memoryDepartmentRepo struct {
	departments map[int]types.Department
}

func newMemoryDepartmentRepo(ids ...int) *memoryDepartmentRepo {
	departments := make(map[int]types.Department)
	for _, id := range ids {
		departments[id] = types.Department{ID: id, Code: "DEP", Name: "Department", Faculty: "Science"}
	}
	return &memoryDepartmentRepo{departments: departments}
}

func (r *memoryDepartmentRepo) List(_ context.Context) ([]types.Department, error) {
	out := make([]types.Department, 0, len(r.departments))
	for _, dept := range r.departments {
		out = append(out, dept)
	}
	return out, nil
}

func (r *memoryDepartmentRepo) GetByID(_ context.Context, id int) (types.Department, error) {
	dept, ok := r.departments[id]
	if !ok {
		return types.Department{}, store.ErrNotFound
	}
	return dept, nil
}

func (r *memoryDepartmentRepo) Create(_ context.Context, dept types.Department) (types.Department, error) {
	dept.ID = len(r.departments) + 1
	r.departments[dept.ID] = dept
	return dept, nil
}

func (r *memoryDepartmentRepo) Update(_ context.Context, dept types.Department) (types.Department, error) {
	if _, ok := r.departments[dept.ID]; !ok {
		return types.Department{}, store.ErrNotFound
	}
	r.departments[dept.ID] = dept
	return dept, nil
}

func (r *memoryDepartmentRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.departments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.departments, id)
	return nil
}

type recordedMail struct {
	To      string
	Subject string
	Body    string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []recordedMail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, recordedMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) last(t *testing.T) recordedMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

func newTestAuthService(t *testing.T) (*AuthService, *memoryUserRepo, *recordingMailer) {
	t.Helper()
	users := newMemoryUserRepo(1)
	mail := &recordingMailer{}
	tokens := token.NewService("test-secret", time.Minute, time.Hour)
	svc := NewAuthService(users, newMemoryDepartmentRepo(1), tokens, mail, "http://localhost:3000")
	return svc, users, mail
}

func studentInput(email, number string) RegisterInput {
	return RegisterInput{
		Email:         email,
		Password:      "Aa1234567!",
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Role:          types.RoleStudent,
		DepartmentID:  1,
		StudentNumber: number,
	}
}

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected apperr, got %v", err)
	}
	if appErr.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, appErr.Status, appErr.Message)
	}
}

func TestRegisterStudent(t *testing.T) {
	svc, users, mail := newTestAuthService(t)

	created, err := svc.Register(context.Background(), studentInput("A@X.com", "S-100"))
	if err != nil {
		t.Fatalf("register error: %v", err)
	}

	if created.Email != "a@x.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.Active {
		t.Fatalf("account should start inactive")
	}
	if created.StudentProfile == nil || created.StudentProfile.StudentNumber != "S-100" {
		t.Fatalf("student profile missing: %+v", created.StudentProfile)
	}
	if created.StudentProfile.EnrollmentYear != time.Now().Year() {
		t.Fatalf("unexpected enrollment year %d", created.StudentProfile.EnrollmentYear)
	}

	stored, err := users.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("stored account missing: %v", err)
	}
	if stored.VerificationToken == nil || stored.VerificationExpires == nil {
		t.Fatalf("verification token not stored")
	}
	if stored.PasswordHash == "Aa1234567!" {
		t.Fatalf("password stored in plaintext")
	}

	sent := mail.last(t)
	if sent.To != "a@x.com" || !strings.Contains(sent.Body, *stored.VerificationToken) {
		t.Fatalf("verification mail does not carry the token")
	}
}

func TestRegisterFaculty(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	created, err := svc.Register(context.Background(), RegisterInput{
		Email:          "prof@x.com",
		Password:       "Aa1234567!",
		FirstName:      "Grace",
		LastName:       "Hopper",
		Role:           types.RoleFaculty,
		DepartmentID:   1,
		EmployeeNumber: "E-200",
		Title:          "Professor",
	})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if created.FacultyProfile == nil || created.FacultyProfile.EmployeeNumber != "E-200" {
		t.Fatalf("faculty profile missing: %+v", created.FacultyProfile)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), studentInput("a@x.com", "S-1")); err != nil {
		t.Fatalf("first register error: %v", err)
	}
	_, err := svc.Register(context.Background(), studentInput("A@x.com", "S-2"))
	wantStatus(t, err, 409)
}

func TestRegisterDuplicateStudentNumberLeavesNoPartialRows(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), studentInput("a@x.com", "S-1")); err != nil {
		t.Fatalf("first register error: %v", err)
	}
	_, err := svc.Register(context.Background(), studentInput("b@x.com", "S-1"))
	wantStatus(t, err, 409)

	if _, err := users.GetByEmail(context.Background(), "b@x.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("partial account left behind after failed registration")
	}
}

func TestRegisterUnknownDepartment(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	in := studentInput("a@x.com", "S-1")
	in.DepartmentID = 99
	_, err := svc.Register(context.Background(), in)
	wantStatus(t, err, 400)
}

func TestVerifyEmailSingleUse(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), studentInput("a@x.com", "S-1")); err != nil {
		t.Fatalf("register error: %v", err)
	}
	stored, _ := users.GetByEmail(context.Background(), "a@x.com")
	verificationToken := *stored.VerificationToken

	if err := svc.VerifyEmail(context.Background(), verificationToken); err != nil {
		t.Fatalf("verify error: %v", err)
	}
	stored, _ = users.GetByEmail(context.Background(), "a@x.com")
	if !stored.Active || stored.VerificationToken != nil {
		t.Fatalf("activation did not clear the token")
	}

	err := svc.VerifyEmail(context.Background(), verificationToken)
	wantStatus(t, err, 400)
}

func TestVerifyEmailExpired(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), studentInput("a@x.com", "S-1")); err != nil {
		t.Fatalf("register error: %v", err)
	}
	stored, _ := users.GetByEmail(context.Background(), "a@x.com")
	past := time.Now().Add(-time.Minute)
	users.users[stored.ID].VerificationExpires = &past

	err := svc.VerifyEmail(context.Background(), *stored.VerificationToken)
	wantStatus(t, err, 400)
}

func registerAndVerify(t *testing.T, svc *AuthService, users *memoryUserRepo, email, number string) {
	t.Helper()
	if _, err := svc.Register(context.Background(), studentInput(email, number)); err != nil {
		t.Fatalf("register error: %v", err)
	}
	stored, _ := users.GetByEmail(context.Background(), NormalizeEmail(email))
	if err := svc.VerifyEmail(context.Background(), *stored.VerificationToken); err != nil {
		t.Fatalf("verify error: %v", err)
	}
}

func TestLoginBeforeVerification(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	if _, err := svc.Register(context.Background(), studentInput("a@x.com", "S-1")); err != nil {
		t.Fatalf("register error: %v", err)
	}
	_, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!")
	wantStatus(t, err, 401)
}

func TestLoginDoesNotRevealAccountExistence(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	registerAndVerify(t, svc, users, "a@x.com", "S-1")

	_, badPassword := svc.Login(context.Background(), "a@x.com", "wrong-password")
	_, noAccount := svc.Login(context.Background(), "nobody@x.com", "wrong-password")
	if badPassword == nil || noAccount == nil {
		t.Fatalf("expected both logins to fail")
	}
	if badPassword.Error() != noAccount.Error() {
		t.Fatalf("messages differ: %q vs %q", badPassword, noAccount)
	}
}

func TestLoginPersistsRefreshToken(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	registerAndVerify(t, svc, users, "a@x.com", "S-1")

	result, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("token pair missing")
	}

	stored, _ := users.GetByEmail(context.Background(), "a@x.com")
	if stored.RefreshToken == nil || *stored.RefreshToken != result.RefreshToken {
		t.Fatalf("refresh token not persisted")
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	registerAndVerify(t, svc, users, "a@x.com", "S-1")

	result, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), result.RefreshToken)
	if err != nil {
		t.Fatalf("refresh error: %v", err)
	}

	// The consumed token is dead even though it has not expired.
	_, err = svc.Refresh(context.Background(), result.RefreshToken)
	wantStatus(t, err, 401)

	if _, err := svc.Refresh(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("rotated token should refresh: %v", err)
	}
}

func TestSecondLoginInvalidatesFirstSession(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	registerAndVerify(t, svc, users, "a@x.com", "S-1")

	first, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!"); err != nil {
		t.Fatalf("second login error: %v", err)
	}

	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	wantStatus(t, err, 401)
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	registerAndVerify(t, svc, users, "a@x.com", "S-1")

	result, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	stored, _ := users.GetByEmail(context.Background(), "a@x.com")
	if err := svc.Logout(context.Background(), stored.ID); err != nil {
		t.Fatalf("logout error: %v", err)
	}
	// Idempotent.
	if err := svc.Logout(context.Background(), stored.ID); err != nil {
		t.Fatalf("second logout error: %v", err)
	}

	_, err = svc.Refresh(context.Background(), result.RefreshToken)
	wantStatus(t, err, 401)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, mail := newTestAuthService(t)

	if err := svc.ForgotPassword(context.Background(), "nobody@x.com"); err != nil {
		t.Fatalf("forgot-password should not fail for unknown email: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatalf("no mail should be sent for unknown email")
	}
}

func TestResetPasswordInvalidatesSessions(t *testing.T) {
	svc, users, mail := newTestAuthService(t)
	registerAndVerify(t, svc, users, "a@x.com", "S-1")

	result, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	if err := svc.ForgotPassword(context.Background(), "a@x.com"); err != nil {
		t.Fatalf("forgot error: %v", err)
	}
	stored, _ := users.GetByEmail(context.Background(), "a@x.com")
	if stored.ResetToken == nil {
		t.Fatalf("reset token not stored")
	}
	if sent := mail.last(t); !strings.Contains(sent.Body, *stored.ResetToken) {
		t.Fatalf("reset mail does not carry the token")
	}

	if err := svc.ResetPassword(context.Background(), *stored.ResetToken, "NewPass123!"); err != nil {
		t.Fatalf("reset error: %v", err)
	}

	// Old sessions are dead, the reset token is consumed, the new password works.
	_, err = svc.Refresh(context.Background(), result.RefreshToken)
	wantStatus(t, err, 401)
	err = svc.ResetPassword(context.Background(), *stored.ResetToken, "OtherPass123!")
	wantStatus(t, err, 400)
	if _, err := svc.Login(context.Background(), "a@x.com", "NewPass123!"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "Aa1234567!"); err == nil {
		t.Fatalf("old password still accepted")
	}
}
