package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/apiserver/internal/services"
	"github.com/campushub/apiserver/types"
)

const minPasswordLength = 8

// AuthHandler provides the identity and session endpoints.
type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, mw *Middleware) {
	handler := NewAuthHandler(authService)

	r.Post("/register", handler.Register)
	r.Post("/verify-email", handler.VerifyEmail)
	r.Post("/login", handler.Login)
	r.Post("/refresh", handler.Refresh)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
	r.With(mw.RequireAuth).Post("/logout", handler.Logout)
	r.With(mw.RequireAuth).Get("/me", handler.Me)
}

type RegisterRequest struct {
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"confirmPassword"`
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Role            string  `json:"role"`
	Phone           *string `json:"phone,omitempty"`
	DepartmentID    int     `json:"departmentId"`
	StudentNumber   string  `json:"studentNumber,omitempty"`
	EmployeeNumber  string  `json:"employeeNumber,omitempty"`
	Title           string  `json:"title,omitempty"`
	Office          *string `json:"office,omitempty"`
}

type RegisterResponse struct {
	User    types.User `json:"user"`
	Message string     `json:"message"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	if msg := validateRegister(&req); msg != "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", msg)
		return
	}

	user, err := h.authService.Register(r.Context(), services.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		Role:           req.Role,
		DepartmentID:   req.DepartmentID,
		StudentNumber:  req.StudentNumber,
		EmployeeNumber: req.EmployeeNumber,
		Title:          req.Title,
		Office:         req.Office,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusCreated, RegisterResponse{
		User:    user,
		Message: "registration successful, please check your email to verify your account",
	})
}

func validateRegister(req *RegisterRequest) string {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.StudentNumber = strings.TrimSpace(req.StudentNumber)
	req.EmployeeNumber = strings.TrimSpace(req.EmployeeNumber)
	req.Title = strings.TrimSpace(req.Title)

	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return "a valid email is required"
	case req.FirstName == "" || req.LastName == "":
		return "first and last name are required"
	case len(req.Password) < minPasswordLength:
		return "password must be at least 8 characters"
	case req.Password != req.ConfirmPassword:
		return "passwords do not match"
	case req.DepartmentID < 1:
		return "departmentId is required"
	}

	switch req.Role {
	case types.RoleStudent:
		if req.StudentNumber == "" {
			return "studentNumber is required for students"
		}
	case types.RoleFaculty:
		if req.EmployeeNumber == "" || req.Title == "" {
			return "employeeNumber and title are required for faculty"
		}
	default:
		return "role must be student or faculty"
	}
	return ""
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required")
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), strings.TrimSpace(req.Token)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"message": "email verified, you can now log in"})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User         types.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email and password are required")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, LoginResponse{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "refreshToken is required")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.authService.Logout(r.Context(), user.ID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email is required")
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}

	// Identical response whether or not the account exists.
	writeData(w, http.StatusOK, map[string]string{"message": "if the address is registered, a reset link has been sent"})
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	switch {
	case strings.TrimSpace(req.Token) == "":
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required")
		return
	case len(req.Password) < minPasswordLength:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "password must be at least 8 characters")
		return
	case req.Password != req.ConfirmPassword:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "passwords do not match")
		return
	}

	if err := h.authService.ResetPassword(r.Context(), strings.TrimSpace(req.Token), req.Password); err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"message": "password updated, please log in again"})
}

// Me returns the current authenticated account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	writeData(w, http.StatusOK, user)
}
