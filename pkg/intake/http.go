package intake

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/tripflow/platform/pkg/common/logger"
	"github.com/tripflow/platform/pkg/trip"
)

type HTTPHandler struct {
	machine *Machine
	repo    *trip.Repository
	maxBody int64
}

func NewHTTPHandler(machine *Machine, repo *trip.Repository, maxBody int64) *HTTPHandler {
	return &HTTPHandler{machine: machine, repo: repo, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/intake/{owner}/start", h.handleStart).Methods(http.MethodPost)
	router.HandleFunc("/intake/{owner}/input", h.handleInput).Methods(http.MethodPost)
	router.HandleFunc("/intake/{owner}/resume/{draft}", h.handleResume).Methods(http.MethodPost)
	router.HandleFunc("/drafts/{owner}", h.handleListDrafts).Methods(http.MethodGet)
	router.HandleFunc("/drafts/{owner}/{draft}", h.handleDeleteDraft).Methods(http.MethodDelete)
	router.HandleFunc("/trips/{owner}", h.handleHistory).Methods(http.MethodGet)
}

type inputRequest struct {
	Text string `json:"text"`
}

func (h *HTTPHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}

	reply, err := h.machine.Start(r.Context(), owner)
	if err != nil {
		h.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *HTTPHandler) handleInput(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	reply, err := h.machine.Input(r.Context(), owner, req.Text)
	if err != nil {
		h.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *HTTPHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}
	draftID, err := strconv.ParseUint(mux.Vars(r)["draft"], 10, 32)
	if err != nil {
		http.Error(w, "invalid draft id", http.StatusBadRequest)
		return
	}

	reply, err := h.machine.Resume(r.Context(), owner, uint(draftID))
	if err != nil {
		h.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *HTTPHandler) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}

	drafts, err := h.repo.ListDraftsByOwner(r.Context(), owner)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list drafts")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, drafts)
}

func (h *HTTPHandler) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}
	draftID, err := strconv.ParseUint(mux.Vars(r)["draft"], 10, 32)
	if err != nil {
		http.Error(w, "invalid draft id", http.StatusBadRequest)
		return
	}

	switch err := h.repo.DeleteDraft(r.Context(), uint(draftID), owner); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, trip.ErrDraftNotFound):
		http.Error(w, "draft not found", http.StatusNotFound)
	default:
		logger.Log.WithError(err).Error("failed to delete draft")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *HTTPHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerVar(w, r)
	if !ok {
		return
	}

	records, err := h.repo.ListRecordsByOwner(r.Context(), owner, 10)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list trip records")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *HTTPHandler) writeMachineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccessDenied):
		http.Error(w, h.machine.prompts.AccessDenied, http.StatusForbidden)
	case errors.Is(err, ErrNoSession):
		http.Error(w, "no active intake session", http.StatusConflict)
	case errors.Is(err, trip.ErrDraftNotFound):
		http.Error(w, "draft not found", http.StatusNotFound)
	default:
		logger.Log.WithError(err).Error("intake turn failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func ownerVar(w http.ResponseWriter, r *http.Request) (int64, bool) {
	owner, err := strconv.ParseInt(mux.Vars(r)["owner"], 10, 64)
	if err != nil {
		http.Error(w, "invalid owner id", http.StatusBadRequest)
		return 0, false
	}
	return owner, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
