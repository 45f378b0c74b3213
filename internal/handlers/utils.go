package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campushub/apiserver/internal/apperr"
	"github.com/campushub/apiserver/internal/store"
	"github.com/campushub/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// Response is the envelope wrapped around every payload.
type Response struct {
	Success bool          `json:"success"`
	Data    any           `json:"data,omitempty"`
	Error   *apperr.Error `json:"error,omitempty"`
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Success: false, Error: &apperr.Error{Status: status, Code: code, Message: message}})
}

// writeServiceError is the single boundary translator: typed domain errors
// keep their status and message, known store sentinels get mapped, and
// anything unrecognized becomes a non-leaking 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, Response{Success: false, Error: appErr})
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "CONFLICT", "email already registered")
	case errors.Is(err, store.ErrDuplicateStudentNumber):
		writeError(w, http.StatusConflict, "CONFLICT", "this student number is already in use")
	case errors.Is(err, store.ErrDuplicateEmployeeNumber):
		writeError(w, http.StatusConflict, "CONFLICT", "this employee number is already in use")
	case errors.Is(err, store.ErrDuplicateDepartmentCode):
		writeError(w, http.StatusConflict, "CONFLICT", "department code already in use")
	case errors.Is(err, store.ErrDepartmentInUse):
		writeError(w, http.StatusConflict, "CONFLICT", "department is referenced by profiles")
	case errors.Is(err, store.ErrDepartmentMissing):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "department does not exist")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

// Healthz is a liveness probe.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
