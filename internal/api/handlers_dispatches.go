package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lucasvieira/zapcamp/internal/dispatch"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

type DispatchHandler struct {
	store     storage.Storage
	scheduler *dispatch.Scheduler
	processor *dispatch.Processor
}

func NewDispatchHandler(store storage.Storage, scheduler *dispatch.Scheduler, processor *dispatch.Processor) *DispatchHandler {
	return &DispatchHandler{store: store, scheduler: scheduler, processor: processor}
}

type createDispatchRequest struct {
	ContactID   string     `json:"contact_id"`
	Message     string     `json:"message"`
	SessionID   string     `json:"session_id"`
	CampaignID  string     `json:"campaign_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

func (h *DispatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContactID == "" || req.Message == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "contact_id, message and session_id are required")
		return
	}

	scheduledAt := time.Now().UTC()
	if req.ScheduledAt != nil {
		scheduledAt = req.ScheduledAt.UTC()
	}

	job, err := h.scheduler.CreateSingle(r.Context(), req.ContactID, req.Message, req.SessionID, scheduledAt, req.CampaignID)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrContactNotFound):
			writeError(w, http.StatusNotFound, "contact not found")
		case errors.Is(err, dispatch.ErrNoPhone):
			writeError(w, http.StatusBadRequest, "contact has no phone number")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create dispatch")
		}
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

type scheduleBatchRequest struct {
	ContactIDs      []string `json:"contact_ids"`
	Message         string   `json:"message"`
	SessionID       string   `json:"session_id"`
	CampaignID      string   `json:"campaign_id"`
	IntervalMinutes int      `json:"interval_minutes"`
}

func (h *DispatchHandler) ScheduleBatch(w http.ResponseWriter, r *http.Request) {
	var req scheduleBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ContactIDs) == 0 {
		writeError(w, http.StatusBadRequest, "contact_ids is required")
		return
	}
	if req.Message == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "message and session_id are required")
		return
	}

	interval := time.Duration(req.IntervalMinutes) * time.Minute
	result, err := h.scheduler.ScheduleBatch(r.Context(), req.ContactIDs, req.Message, req.SessionID, req.CampaignID, interval)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to schedule batch")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *DispatchHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		jobs []models.DispatchJob
		err  error
	)

	if campaignID := r.URL.Query().Get("campaign_id"); campaignID != "" {
		jobs, err = h.store.ListDispatchesByCampaign(r.Context(), campaignID)
	} else if status := r.URL.Query().Get("status"); status != "" {
		jobs, err = h.store.ListDispatchesByStatus(r.Context(), models.DispatchStatus(status))
	} else {
		jobs, err = h.store.ListPendingDispatches(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dispatches")
		return
	}
	if jobs == nil {
		jobs = []models.DispatchJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *DispatchHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListPendingDispatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending dispatches")
		return
	}
	if jobs == nil {
		jobs = []models.DispatchJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *DispatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.GetDispatch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get dispatch")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "dispatch not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *DispatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := h.store.GetDispatch(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get dispatch")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "dispatch not found")
		return
	}

	if err := h.store.CancelDispatch(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel dispatch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "cancelled"})
}

func (h *DispatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteDispatch(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete dispatch")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DispatchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DispatchStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *DispatchHandler) ProcessNext(w http.ResponseWriter, r *http.Request) {
	result, err := h.processor.ProcessNext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process dispatch")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *DispatchHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stats, err := h.processor.ProcessBatch(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process batch")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *DispatchHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	examined, err := h.processor.SweepCompletions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sweep campaigns")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"examined": examined})
}
