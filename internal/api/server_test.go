package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lucasvieira/zapcamp/internal/campaign"
	"github.com/lucasvieira/zapcamp/internal/config"
	"github.com/lucasvieira/zapcamp/internal/dispatch"
	"github.com/lucasvieira/zapcamp/internal/gateway"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/places"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

func newTestServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))

	log := zerolog.Nop()
	gw := gateway.NewClient(config.GatewayConfig{BaseURL: "http://waha.local", CountryCode: "55", Timeout: time.Second})
	scheduler := dispatch.NewScheduler(store, log)
	processor := dispatch.NewProcessor(store, gw, time.Millisecond, log)
	campaigns := campaign.NewService(store, scheduler, log)
	importer := places.NewImporter(places.NewClient(config.PlacesConfig{BaseURL: "http://serper.local"}), store, 0, log)

	server := NewServer(config.ServerConfig{}, Deps{
		Store:     store,
		Campaigns: campaigns,
		Scheduler: scheduler,
		Processor: processor,
		Gateway:   gw,
		Importer:  importer,
	}, log)
	return server, store
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestContactLifecycle(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/contacts", map[string]string{
		"name":  "Padaria Estrela",
		"phone": "11999990000",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Contact
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, models.ContactToContact, created.Status)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/contacts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodPatch, "/api/v1/contacts/"+created.ID+"/status", map[string]string{
		"status": "negotiating",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodPatch, "/api/v1/contacts/"+created.ID+"/status", map[string]string{
		"status": "bogus",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/contacts/ct_missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateContactRejectsMissingName(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/contacts", map[string]string{"phone": "11999990000"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCampaignEndpoints(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	contact := &models.Contact{
		ID: models.NewID("ct"), Name: "Zé", Phone: "5511999990000",
		Status: models.ContactToContact, CapturedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateContact(ctx, contact))

	rec := doJSON(t, server, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
		"session_id":  "main",
		"message":     "Olá {name}",
		"contact_ids": []string{contact.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Campaign  models.Campaign `json:"campaign"`
		Scheduled int             `json:"scheduled"`
		Skipped   int             `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, 1, created.Scheduled)
	require.Equal(t, 0, created.Skipped)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/campaigns/"+created.Campaign.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/campaigns/"+created.Campaign.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var details struct {
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	require.Equal(t, 1, details.Counts["cancelled"])

	rec = doJSON(t, server, http.MethodPost, "/api/v1/campaigns/cmp_missing/pause", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCampaignCreateFromTemplate(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	contact := &models.Contact{
		ID: models.NewID("ct"), Name: "Zé", Phone: "5511999990000",
		Status: models.ContactToContact, CapturedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateContact(ctx, contact))

	tpl := &models.Template{
		ID: models.NewID("tpl"), Name: "intro", Content: "Olá {name}!",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateTemplate(ctx, tpl))

	rec := doJSON(t, server, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
		"session_id":  "main",
		"template_id": tpl.ID,
		"contact_ids": []string{contact.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Campaign models.Campaign `json:"campaign"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	jobs, err := store.ListDispatchesByCampaign(ctx, created.Campaign.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Olá Zé!", jobs[0].Message)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
		"session_id":  "main",
		"template_id": "tpl_missing",
		"contact_ids": []string{contact.ID},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCampaignCreateValidation(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
		"message":     "hi",
		"contact_ids": []string{"ct_1"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
		"session_id":  "main",
		"message":     "hi",
		"contact_ids": []string{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchEndpoints(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	contact := &models.Contact{
		ID: models.NewID("ct"), Name: "Zé", Phone: "5511999990000",
		Status: models.ContactToContact, CapturedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateContact(ctx, contact))

	noPhone := &models.Contact{
		ID: models.NewID("ct"), Name: "Sem Fone",
		Status: models.ContactToContact, CapturedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateContact(ctx, noPhone))

	rec := doJSON(t, server, http.MethodPost, "/api/v1/dispatches", map[string]string{
		"contact_id": noPhone.ID,
		"message":    "hi",
		"session_id": "main",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/dispatches", map[string]string{
		"contact_id": "ct_missing",
		"message":    "hi",
		"session_id": "main",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/dispatches/batch", map[string]interface{}{
		"contact_ids": []string{contact.ID, noPhone.ID},
		"message":     "Olá {name}",
		"session_id":  "main",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var batch struct {
		Scheduled int `json:"scheduled"`
		Skipped   int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.Equal(t, 1, batch.Scheduled)
	require.Equal(t, 1, batch.Skipped)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/dispatches/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pending []models.DispatchJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/dispatches/"+pending[0].ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/dispatches/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
