package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"repairshop-api/internal/authn"
	"repairshop-api/internal/util"
)

// AuthHandler handles login, logout and session introspection.
type AuthHandler struct {
	auth *authn.RequestAuthenticator
}

func NewAuthHandler(auth *authn.RequestAuthenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Response is the standard API envelope.
type Response struct {
	Success           bool        `json:"success"`
	Data              interface{} `json:"data,omitempty"`
	Error             string      `json:"error,omitempty"`
	RetryAfterSeconds int         `json:"retry_after_seconds,omitempty"`
}

func successResponse(data interface{}) Response {
	return Response{Success: true, Data: data}
}

func errorResponse(message string) Response {
	return Response{Success: false, Error: message}
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		util.Error("failed to encode response", util.ErrorField(err))
	}
}

type adminLoginRequest struct {
	PIN string `json:"pin"`
}

type employeeLoginRequest struct {
	EmployeeID string `json:"employee_id"`
	PIN        string `json:"pin"`
}

type loginResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	ExpiresAt string `json:"expires_at"`
}

// RegisterRoutes registers the auth routes.
func (h *AuthHandler) RegisterRoutes(router chi.Router, auth *AuthMiddleware) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/admin/login", h.AdminLogin)
		r.Post("/employee/login", h.EmployeeLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
		})
	})
}

// AdminLogin verifies the administrator PIN and issues a session token.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	s, err := h.auth.LoginAdmin(r.Context(), req.PIN, authn.ExtractClientIP(r))
	if err != nil {
		h.respondLoginError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(loginResponse{
		Token:     s.Token,
		SessionID: s.ID,
		Kind:      string(s.Kind),
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
	}))
}

// EmployeeLogin verifies an employee ID and PIN and issues a session token.
func (h *AuthHandler) EmployeeLogin(w http.ResponseWriter, r *http.Request) {
	var req employeeLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.EmployeeID == "" {
		respondWithJSON(w, http.StatusBadRequest, errorResponse("employee_id is required"))
		return
	}

	s, err := h.auth.LoginEmployee(r.Context(), req.EmployeeID, req.PIN, authn.ExtractClientIP(r))
	if err != nil {
		h.respondLoginError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(loginResponse{
		Token:     s.Token,
		SessionID: s.ID,
		Kind:      string(s.Kind),
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
	}))
}

// Logout revokes the presented session token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		respondWithJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(nil))
}

// Session reports who the presented token authenticates. The token
// itself is never echoed back.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		respondUnauthorized(w)
		return
	}
	respondWithJSON(w, http.StatusOK, successResponse(s))
}

// respondLoginError maps pipeline errors to HTTP outcomes. Every
// credential-shaped rejection is the same 401; only rate limiting and
// operational faults look different.
func (h *AuthHandler) respondLoginError(w http.ResponseWriter, err error) {
	var limited *authn.RateLimitedError
	switch {
	case errors.As(err, &limited):
		writeRetryAfter(w, limited.RetryAfterSeconds)
	case errors.Is(err, authn.ErrInvalidCredential):
		respondWithJSON(w, http.StatusUnauthorized, errorResponse("invalid credentials"))
	case errors.Is(err, authn.ErrMalformedStoredHash):
		respondWithJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
	default:
		util.Error("login failed", util.ErrorField(err))
		respondWithJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
	}
}
