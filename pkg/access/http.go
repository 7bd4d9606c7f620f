package access

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/validation"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/users/register", h.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/users", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/users/pending", h.handleListPending).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}/profile", h.handleSetProfile).Methods(http.MethodPut)
	router.HandleFunc("/users/{id}/approve", h.handleDecision(h.service.Approve)).Methods(http.MethodPost)
	router.HandleFunc("/users/{id}/reject", h.handleDecision(h.service.Reject)).Methods(http.MethodPost)
	router.HandleFunc("/users/{id}/revoke", h.handleDecision(h.service.Revoke)).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(r.Context(), in)
	if errors.Is(err, ErrAlreadyRegistered) {
		writeJSON(w, http.StatusOK, user)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to register user")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *HTTPHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListPending(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to list pending users")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), r.URL.Query().Get("status"))
	if errors.Is(err, ErrUnknownStatus) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to list users")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *HTTPHandler) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	externalID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var in struct {
		FullName     string `json:"full_name"`
		Organization string `json:"organization"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch err := h.service.SetProfile(r.Context(), externalID, in.FullName, in.Organization); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case validation.IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	default:
		logger.Log.WithError(err).Error("failed to update user profile")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *HTTPHandler) handleDecision(fn func(ctx context.Context, adminID, externalID int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}
		adminID, err := strconv.ParseInt(r.Header.Get("X-Admin-ID"), 10, 64)
		if err != nil {
			http.Error(w, "missing admin id", http.StatusBadRequest)
			return
		}

		switch err := fn(r.Context(), adminID, externalID); {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, ErrNotAdmin):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, ErrUserNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		case errors.Is(err, ErrBadStatusChange):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			logger.Log.WithError(err).Error("failed to update user status")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
