package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/apiserver/internal/apperr"
	"github.com/campushub/apiserver/internal/services"
	"github.com/campushub/apiserver/internal/store"
	"github.com/campushub/apiserver/internal/token"
	"github.com/campushub/apiserver/types"
)

// memoryUserRepo backs the handler tests with the same sentinel and
// atomicity behavior as the SQL repository.
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

// verificationTokenFor exposes the stored token so tests can follow the link
// a real user would receive by mail.
func (r *memoryUserRepo) verificationTokenFor(t *testing.T, email string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && user.VerificationToken != nil {
			return *user.VerificationToken
		}
	}
	t.Fatalf("no verification token stored for %s", email)
	return ""
}

func (r *memoryUserRepo) resetTokenFor(t *testing.T, email string) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email && user.ResetToken != nil {
			return *user.ResetToken
		}
	}
	t.Fatalf("no reset token stored for %s", email)
	return ""
}

type memoryDepartmentRepo struct {
	nextID      int
	departments map[int]types.Department
}

func newMemoryDepartmentRepo(ids ...int) *memoryDepartmentRepo {
	departments := make(map[int]types.Department)
	next := 0
	for _, id := range ids {
		departments[id] = types.Department{ID: id, Code: "DEP", Name: "Department", Faculty: "Science"}
		if id > next {
			next = id
		}
	}
	return &memoryDepartmentRepo{nextID: next, departments: departments}
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
	for _, existing := range r.departments {
		if existing.Code == dept.Code {
			return types.Department{}, store.ErrDuplicateDepartmentCode
		}
	}
	r.nextID++
	dept.ID = r.nextID
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

// testEnv wires real services and handlers over in-memory repositories.
type testEnv struct {
	router      *chi.Mux
	users       *memoryUserRepo
	departments *memoryDepartmentRepo
	tokens      *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemoryUserRepo(1)
	departments := newMemoryDepartmentRepo(1)
	tokens := token.NewService("test-secret", time.Minute, time.Hour)

	authService := services.NewAuthService(users, departments, tokens, nil, "http://localhost:3000")
	userService := services.NewUserService(users)
	departmentService := services.NewDepartmentService(departments)

	mw := NewMiddleware(tokens, userService)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authService, mw)
	})
	router.Route("/departments", func(r chi.Router) {
		DepartmentRouter(r, departmentService, mw)
	})

	return &testEnv{router: router, users: users, departments: departments, tokens: tokens}
}

// do issues a JSON request against the router and returns the recorder.
func (env *testEnv) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apperr.Error   `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) envelope {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, rec.Code, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v: %s", err, rec.Body.String())
	}
	if wantStatus < 400 && !env.Success {
		t.Fatalf("expected success envelope: %s", rec.Body.String())
	}
	if wantStatus >= 400 {
		if env.Success || env.Error == nil {
			t.Fatalf("expected error envelope: %s", rec.Body.String())
		}
	}
	return env
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v: %s", err, string(env.Data))
	}
}

// registerBody is a valid student registration payload tests mutate as needed.
func registerBody(email, number string) map[string]any {
	return map[string]any{
		"email":           email,
		"password":        "Aa1234567!",
		"confirmPassword": "Aa1234567!",
		"firstName":       "Ada",
		"lastName":        "Lovelace",
		"role":            types.RoleStudent,
		"departmentId":    1,
		"studentNumber":   number,
	}
}

func (env *testEnv) registerAndVerify(t *testing.T, email, number string) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth/register", registerBody(email, number), "")
	decodeEnvelope(t, rec, http.StatusCreated)

	verificationToken := env.users.verificationTokenFor(t, email)
	rec = env.do(t, http.MethodPost, "/auth/verify-email", map[string]string{"token": verificationToken}, "")
	decodeEnvelope(t, rec, http.StatusOK)
}

func (env *testEnv) login(t *testing.T, email, password string) LoginResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	payload := decodeEnvelope(t, rec, http.StatusOK)
	var result LoginResponse
	decodeData(t, payload, &result)
	return result
}

// seedAdmin provisions an active admin directly, the way the seed command does.
func (env *testEnv) seedAdmin(t *testing.T, email string) types.User {
	t.Helper()
	admin, err := env.users.Create(context.Background(), types.User{
		Email:        email,
		PasswordHash: "unused",
		Role:         types.RoleAdmin,
		FirstName:    "Root",
		LastName:     "Admin",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return admin
}

func (env *testEnv) tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	access, err := env.tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	return access
}
