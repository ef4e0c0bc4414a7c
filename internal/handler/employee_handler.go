package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"repairshop-api/internal/authz"
	"repairshop-api/internal/employee"
	"repairshop-api/internal/util"
)

// EmployeeHandler handles roster management. Every route is gated to the
// administrator.
type EmployeeHandler struct {
	employees *employee.Service
}

func NewEmployeeHandler(employees *employee.Service) *EmployeeHandler {
	return &EmployeeHandler{employees: employees}
}

type createEmployeeRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

type resetPINRequest struct {
	PIN string `json:"pin"`
}

// RegisterRoutes registers the employee routes.
func (h *EmployeeHandler) RegisterRoutes(router chi.Router, auth *AuthMiddleware) {
	router.Route("/employees", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(auth.RequirePermission(authz.PermManageEmployees))

		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{employeeID}", h.Get)
		r.Post("/{employeeID}/deactivate", h.Deactivate)
		r.Post("/{employeeID}/reactivate", h.Reactivate)
		r.Post("/{employeeID}/reset-pin", h.ResetPIN)
	})
}

// Create adds an employee to the roster.
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.Name == "" || req.PIN == "" {
		respondWithJSON(w, http.StatusBadRequest, errorResponse("name and pin are required"))
		return
	}

	e, err := h.employees.Create(r.Context(), req.Name, req.PIN)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, successResponse(e))
}

// List returns the full roster, active and deactivated alike.
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.employees.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(employees))
}

// Get returns one roster entry.
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.employees.Get(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(e))
}

// Deactivate disables login for an employee and revokes their sessions.
func (h *EmployeeHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.employees.Deactivate(r.Context(), chi.URLParam(r, "employeeID")); err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil))
}

// Reactivate restores login for a deactivated employee.
func (h *EmployeeHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.employees.Reactivate(r.Context(), chi.URLParam(r, "employeeID")); err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil))
}

// ResetPIN replaces an employee's PIN and revokes their sessions.
func (h *EmployeeHandler) ResetPIN(w http.ResponseWriter, r *http.Request) {
	var req resetPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.PIN == "" {
		respondWithJSON(w, http.StatusBadRequest, errorResponse("pin is required"))
		return
	}

	if err := h.employees.ResetPIN(r.Context(), chi.URLParam(r, "employeeID"), req.PIN); err != nil {
		h.respondError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil))
}

func (h *EmployeeHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, employee.ErrNotFound):
		respondWithJSON(w, http.StatusNotFound, errorResponse("employee not found"))
	case errors.Is(err, employee.ErrDuplicate):
		respondWithJSON(w, http.StatusConflict, errorResponse("employee already exists"))
	default:
		util.Error("employee operation failed", util.ErrorField(err))
		respondWithJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
	}
}
