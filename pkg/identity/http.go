package identity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lifelink-health/registry/pkg/auth"
	"github.com/lifelink-health/registry/pkg/common/logger"
	"github.com/lifelink-health/registry/pkg/common/models"
)

type HTTPHandler struct {
	service *Service
	jwt     *auth.JWTManager
	oidc    *auth.OIDCAuthenticator
	maxBody int64
}

func NewHTTPHandler(service *Service, jwt *auth.JWTManager, oidc *auth.OIDCAuthenticator, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, jwt: jwt, oidc: oidc, maxBody: maxBody}
}

// Register mounts the unauthenticated auth endpoints.
func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	if h.oidc != nil {
		router.HandleFunc("/auth/sso", h.handleSSO).Methods(http.MethodGet)
	}
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if errors.Is(err, ErrInvalidRole) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to register user")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *HTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		logger.Log.WithError(err).Error("login failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	token, err := h.jwt.IssueToken(user)
	if err != nil {
		logger.Log.WithError(err).Error("failed to issue token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.LoginResponse{Token: token, User: user})
}

func (h *HTTPHandler) handleSSO(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "state required", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
}
