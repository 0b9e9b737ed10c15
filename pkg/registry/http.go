package registry

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lifelink-health/registry/pkg/common/logger"
	"github.com/lifelink-health/registry/pkg/common/models"
	"github.com/lifelink-health/registry/pkg/identity"
	"github.com/lifelink-health/registry/pkg/middleware"
)

type HTTPHandler struct {
	service *Service
	users   *identity.Service
	maxBody int64
}

func NewHTTPHandler(service *Service, users *identity.Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, users: users, maxBody: maxBody}
}

// Register mounts the authenticated registry endpoints.
func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/me", h.handleMe).Methods(http.MethodGet)
	router.HandleFunc("/organs", h.handleListOrgans).Methods(http.MethodGet)
	router.HandleFunc("/organs", h.handleRegisterDonation).Methods(http.MethodPost)
	router.HandleFunc("/requests", h.handleOwnRequests).Methods(http.MethodGet)
	router.HandleFunc("/requests", h.handleSubmitRequest).Methods(http.MethodPost)
}

// RegisterAdmin mounts the operator endpoints. The caller wraps the router
// with the ADMIN role guard.
func (h *HTTPHandler) RegisterAdmin(router *mux.Router) {
	router.HandleFunc("/requests", h.handleAllRequests).Methods(http.MethodGet)
	router.HandleFunc("/requests/{id}/reject", h.handleRejectRequest).Methods(http.MethodPost)
	router.HandleFunc("/matches", h.handleListMatches).Methods(http.MethodGet)
	router.HandleFunc("/matches", h.handleAllocate).Methods(http.MethodPost)
	router.HandleFunc("/matches/suggest/{requestId}", h.handleSuggest).Methods(http.MethodGet)
	router.HandleFunc("/users", h.handleListUsers).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}", h.handleDeleteUser).Methods(http.MethodDelete)
	router.HandleFunc("/donors", h.handleListDonors).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *HTTPHandler) handleListOrgans(w http.ResponseWriter, r *http.Request) {
	organType := models.OrganType(r.URL.Query().Get("type"))
	bloodGroup := models.BloodGroup(r.URL.Query().Get("bloodGroup"))

	donations, err := h.service.ListAvailable(r.Context(), organType, bloodGroup)
	if err != nil {
		h.writeError(w, err, "failed to list available organs")
		return
	}
	writeJSON(w, http.StatusOK, donations)
}

func (h *HTTPHandler) handleRegisterDonation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var intake models.DonationIntake
	if err := json.NewDecoder(r.Body).Decode(&intake); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	donation, err := h.service.RegisterDonation(r.Context(), user, intake)
	if err != nil {
		h.writeError(w, err, "failed to register donation")
		return
	}
	writeJSON(w, http.StatusCreated, donation)
}

func (h *HTTPHandler) handleOwnRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	requests, err := h.service.ListRequestsByRecipient(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, err, "failed to list requests")
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *HTTPHandler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var intake models.RequestIntake
	if err := json.NewDecoder(r.Body).Decode(&intake); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	request, err := h.service.SubmitRequest(r.Context(), user, intake)
	if err != nil {
		h.writeError(w, err, "failed to submit request")
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (h *HTTPHandler) handleAllRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListRequests(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to list requests")
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

func (h *HTTPHandler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(mux.Vars(r)["requestId"])
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}

	suggestions, err := h.service.SuggestMatches(r.Context(), requestID)
	if err != nil {
		h.writeError(w, err, "failed to suggest matches")
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (h *HTTPHandler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var params models.AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	match, err := h.service.Allocate(r.Context(), params)
	if err != nil {
		h.writeError(w, err, "allocation failed")
		return
	}
	writeJSON(w, http.StatusCreated, match)
}

func (h *HTTPHandler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}

	var input models.RejectRequestInput
	if r.Body != nil {
		// The note is optional; an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&input)
	}

	request, err := h.service.RejectRequest(r.Context(), requestID, input.Note)
	if err != nil {
		h.writeError(w, err, "failed to reject request")
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *HTTPHandler) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.ListMatches(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to list matches")
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *HTTPHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *HTTPHandler) handleListDonors(w http.ResponseWriter, r *http.Request) {
	donors, err := h.users.ListDonors(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to list donors")
		return
	}
	writeJSON(w, http.StatusOK, donors)
}

func (h *HTTPHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		h.writeError(w, err, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrDonationNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrAlreadyAllocated), errors.Is(err, ErrRequestNotPending):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		logger.Log.WithError(err).Error(logMsg)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
