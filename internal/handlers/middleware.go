package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/apiserver/internal/services"
	"github.com/campushub/apiserver/internal/store"
	"github.com/campushub/apiserver/internal/token"
	"github.com/campushub/apiserver/types"
)

// Middleware is the request gate: token verification, account loading, and
// the composable role/ownership checks layered on top of it.
type Middleware struct {
	tokens services.TokenIssuer
	users  *services.UserService
}

func NewMiddleware(tokens services.TokenIssuer, users *services.UserService) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// RequireAuth verifies the bearer access token, loads the account, rejects
// inactive accounts, and attaches the account to the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, errStatus, errMessage := m.authenticate(r)
		if errMessage != "" {
			writeError(w, errStatus, "UNAUTHORIZED", errMessage)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// OptionalAuth performs the same steps as RequireAuth but proceeds without an
// attached account on any failure, for routes that serve anonymous callers.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, errMessage := m.authenticate(r)
		if errMessage == "" {
			r = r.WithContext(withUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (types.User, int, string) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return types.User{}, http.StatusUnauthorized, "missing or malformed authorization header"
	}

	claims, err := m.tokens.Verify(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return types.User{}, http.StatusUnauthorized, "access token expired"
		}
		return types.User{}, http.StatusUnauthorized, "invalid access token"
	}

	user, err := m.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, http.StatusUnauthorized, "account no longer exists"
		}
		return types.User{}, http.StatusInternalServerError, "failed to load account"
	}

	if !user.Active {
		return types.User{}, http.StatusUnauthorized, "account is not active"
	}

	return user, 0, ""
}

// RequireRole rejects with FORBIDDEN unless the attached account's role is in
// the allow-list. Must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			for _, role := range roles {
				if strings.EqualFold(user.Role, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
		})
	}
}

// RequireSelfOrAdmin rejects with FORBIDDEN unless the attached account's id
// matches the named path parameter, with an admin override. Must run after
// RequireAuth.
func RequireSelfOrAdmin(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			id, err := strconv.Atoi(chi.URLParam(r, param))
			if err != nil || id < 1 {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id")
				return
			}
			if user.ID != id && !strings.EqualFold(user.Role, types.RoleAdmin) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "you may only access your own resources")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", errors.New("invalid authorization")
	}
	return tokenString, nil
}
