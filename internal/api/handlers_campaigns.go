package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lucasvieira/zapcamp/internal/campaign"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

type CampaignHandler struct {
	campaigns *campaign.Service
	store     storage.Storage
}

func NewCampaignHandler(campaigns *campaign.Service, store storage.Storage) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, store: store}
}

type createCampaignRequest struct {
	Name            string   `json:"name"`
	SessionID       string   `json:"session_id"`
	Message         string   `json:"message"`
	TemplateID      string   `json:"template_id"`
	ContactIDs      []string `json:"contact_ids"`
	IntervalMinutes int      `json:"interval_minutes"`
}

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if len(req.ContactIDs) == 0 {
		writeError(w, http.StatusBadRequest, "contact_ids is required")
		return
	}

	message := req.Message
	if message == "" && req.TemplateID != "" {
		tpl, err := h.store.GetTemplate(r.Context(), req.TemplateID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get template")
			return
		}
		if tpl == nil {
			writeError(w, http.StatusNotFound, "template not found")
			return
		}
		message = tpl.Content
	}
	if message == "" {
		writeError(w, http.StatusBadRequest, "message or template_id is required")
		return
	}

	interval := time.Duration(req.IntervalMinutes) * time.Minute
	result, err := h.campaigns.Create(r.Context(), req.Name, req.SessionID, message, req.ContactIDs, interval)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var (
		campaigns []models.Campaign
		err       error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		campaigns, err = h.store.ListCampaignsByStatus(r.Context(), models.CampaignStatus(status))
	} else {
		campaigns, err = h.campaigns.List(r.Context(), limit, offset)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	details, err := h.campaigns.GetWithDispatches(r.Context(), id)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if details.Dispatches == nil {
		details.Dispatches = []models.DispatchJob{}
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *CampaignHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Pause, "paused")
}

func (h *CampaignHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Resume, "in_progress")
}

func (h *CampaignHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.campaigns.Cancel, "cancelled")
}

func (h *CampaignHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error, status string) {
	id := chi.URLParam(r, "id")
	if err := fn(r.Context(), id); err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": status})
}

func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Remove(r.Context(), id); err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete campaign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CampaignHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.CampaignStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
