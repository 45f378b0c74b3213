package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/apiserver/internal/services"
	"github.com/campushub/apiserver/internal/storage"
)

const (
	maxAvatarMemory = 8 << 20
	maxAvatarBytes  = 8 << 20
	formFieldAvatar = "picture"
)

// UserHandler provides account lookup and profile-picture endpoints.
type UserHandler struct {
	userService *services.UserService
	objects     storage.ObjectStorage
}

func NewUserHandler(userService *services.UserService, objects storage.ObjectStorage) *UserHandler {
	return &UserHandler{
		userService: userService,
		objects:     objects,
	}
}

// UserRouter registers user routes. All of them are "my own resource" routes
// with an admin override.
func UserRouter(r chi.Router, userService *services.UserService, objects storage.ObjectStorage, mw *Middleware) {
	handler := NewUserHandler(userService, objects)

	r.Route("/{userID}", func(r chi.Router) {
		r.Use(mw.RequireAuth, RequireSelfOrAdmin("userID"))
		r.Get("/", handler.Get)
		r.Post("/profile-picture", handler.UploadProfilePicture)
		r.Get("/profile-picture", handler.GetProfilePicture)
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *UserHandler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxAvatarMemory); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "picture file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAvatarBytes {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "picture too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := avatarKey(id)
	if err := h.objects.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to store picture")
		return
	}

	if err := h.userService.UpdateProfilePicture(r.Context(), id, key); err != nil {
		writeServiceError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]string{"profile_picture": key})
}

func (h *UserHandler) GetProfilePicture(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if user.ProfilePicture == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no profile picture")
		return
	}

	reader, err := h.objects.Get(r.Context(), *user.ProfilePicture)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no profile picture")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func avatarKey(userID int) string {
	return fmt.Sprintf("avatars/%d", userID)
}

func parseUserID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}
