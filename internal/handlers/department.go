package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/campushub/apiserver/internal/services"
	"github.com/campushub/apiserver/types"
)

// DepartmentHandler provides the department catalog endpoints.
type DepartmentHandler struct {
	departmentService *services.DepartmentService
}

func NewDepartmentHandler(departmentService *services.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{departmentService: departmentService}
}

// DepartmentRouter registers department routes. Reads are public; writes are
// admin-only.
func DepartmentRouter(r chi.Router, departmentService *services.DepartmentService, mw *Middleware) {
	handler := NewDepartmentHandler(departmentService)

	r.Get("/", handler.List)
	r.With(mw.RequireAuth, RequireRole(types.RoleAdmin)).Post("/", handler.Create)
	r.Route("/{departmentID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.With(mw.RequireAuth, RequireRole(types.RoleAdmin)).Put("/", handler.Update)
		r.With(mw.RequireAuth, RequireRole(types.RoleAdmin)).Delete("/", handler.Delete)
	})
}

func (h *DepartmentHandler) List(w http.ResponseWriter, r *http.Request) {
	departments, err := h.departmentService.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, departments)
}

func (h *DepartmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseDepartmentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	dept, err := h.departmentService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, dept)
}

type DepartmentUpsertRequest struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Faculty string `json:"faculty"`
}

func (req *DepartmentUpsertRequest) validate() string {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.Faculty = strings.TrimSpace(req.Faculty)
	if req.Code == "" || req.Name == "" || req.Faculty == "" {
		return "code, name, and faculty are required"
	}
	return ""
}

func (h *DepartmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req DepartmentUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", msg)
		return
	}

	created, err := h.departmentService.Create(r.Context(), types.Department{
		Code:    req.Code,
		Name:    req.Name,
		Faculty: req.Faculty,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

func (h *DepartmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseDepartmentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	var req DepartmentUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", msg)
		return
	}

	updated, err := h.departmentService.Update(r.Context(), types.Department{
		ID:      id,
		Code:    req.Code,
		Name:    req.Name,
		Faculty: req.Faculty,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (h *DepartmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseDepartmentID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	if err := h.departmentService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseDepartmentID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "departmentID"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid department id")
	}
	return id, nil
}
