package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lucasvieira/zapcamp/internal/gateway"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

type SessionHandler struct {
	store   storage.Storage
	gateway *gateway.Client
}

func NewSessionHandler(store storage.Storage, gw *gateway.Client) *SessionHandler {
	return &SessionHandler{store: store, gateway: gw}
}

type createSessionRequest struct {
	Name string `json:"name"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	existing, err := h.store.GetSessionByName(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check session")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "session name already in use")
		return
	}

	if _, err := h.gateway.CreateSession(r.Context(), req.Name); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s := &models.Session{
		ID:        models.NewID("ses"),
		Name:      req.Name,
		Status:    models.SessionDisconnected,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateSession(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	qr, err := h.gateway.StartSession(r.Context(), s.Name)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	status := models.SessionConnecting
	if qr != "" {
		status = models.SessionQRCode
	}
	if err := h.store.UpdateSessionState(r.Context(), s.ID, status, qr, s.ProfileName, s.ProfilePic); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": s.ID, "status": string(status), "qrcode": qr})
}

// Status polls the gateway and persists the fresh state before returning it,
// so the stored row tracks what the gateway last reported.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	state, err := h.gateway.SessionStatus(r.Context(), s.Name)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	status := models.SessionStatus(state.Status)
	if err := h.store.UpdateSessionState(r.Context(), s.ID, status, state.QRCode, state.ProfileName, state.ProfilePic); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update session")
		return
	}

	s.Status = status
	s.QRCode = state.QRCode
	s.ProfileName = state.ProfileName
	s.ProfilePic = state.ProfilePic
	writeJSON(w, http.StatusOK, s)
}

func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.gateway.StopSession(r.Context(), s.Name); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := h.store.UpdateSessionState(r.Context(), s.ID, models.SessionDisconnected, "", s.ProfileName, s.ProfilePic); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": s.ID, "status": string(models.SessionDisconnected)})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	// Best effort: the gateway session may already be gone.
	_ = h.gateway.StopSession(r.Context(), s.Name)

	if err := h.store.DeleteSession(r.Context(), s.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id := chi.URLParam(r, "id")
	s, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return nil, false
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}
