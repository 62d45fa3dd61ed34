package dispatch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lucasvieira/zapcamp/internal/gateway"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

type fakeSender struct {
	calls []string
	fail  map[string]string // phone -> error message
}

func (f *fakeSender) SendText(ctx context.Context, session, phone, text string) *gateway.SendResult {
	f.calls = append(f.calls, phone)
	if msg, ok := f.fail[phone]; ok {
		return &gateway.SendResult{Success: false, Error: msg}
	}
	return &gateway.SendResult{Success: true, MessageID: "msg_" + phone}
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedContact(t *testing.T, store storage.Storage, phone string) *models.Contact {
	t.Helper()

	c := &models.Contact{
		ID:         models.NewID("ct"),
		Name:       "Oficina do Zé",
		Phone:      phone,
		Status:     models.ContactToContact,
		CapturedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateContact(context.Background(), c))
	return c
}

func seedJob(t *testing.T, store storage.Storage, contact *models.Contact, scheduledAt time.Time) *models.DispatchJob {
	t.Helper()

	d := &models.DispatchJob{
		ID:           models.NewID("job"),
		ContactID:    contact.ID,
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
		Message:      "Olá " + contact.Name,
		Status:       models.DispatchPending,
		ScheduledAt:  scheduledAt,
		SessionID:    "main",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.CreateDispatch(context.Background(), d))
	return d
}

func TestProcessNextEmptyQueue(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())

	result, err := p.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, result.Processed)
	require.Empty(t, sender.calls)
}

func TestProcessNextSkipsFutureJobs(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())

	contact := seedContact(t, store, "5511999990000")
	seedJob(t, store, contact, time.Now().UTC().Add(time.Hour))

	result, err := p.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, result.Processed)
	require.Empty(t, sender.calls)
}

func TestProcessNextSendsAndMarksContact(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())

	contact := seedContact(t, store, "5511999990000")
	job := seedJob(t, store, contact, time.Now().UTC().Add(-time.Minute))

	result, err := p.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, result.Processed)
	require.True(t, result.Success)
	require.Equal(t, job.ID, result.JobID)
	require.Equal(t, []string{"5511999990000"}, sender.calls)

	got, err := store.GetDispatch(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.DispatchSent, got.Status)
	require.NotNil(t, got.SentAt)

	updated, err := store.GetContact(context.Background(), contact.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContactContacted, updated.Status)
}

func TestProcessNextRecordsGatewayFailure(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{fail: map[string]string{"5511999990000": "session not connected"}}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())

	contact := seedContact(t, store, "5511999990000")
	job := seedJob(t, store, contact, time.Now().UTC().Add(-time.Minute))

	result, err := p.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, result.Processed)
	require.False(t, result.Success)
	require.Equal(t, "session not connected", result.Error)

	got, err := store.GetDispatch(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.DispatchError, got.Status)
	require.Equal(t, "session not connected", got.Error)

	// a failed send does not mark the contact as contacted
	updated, err := store.GetContact(context.Background(), contact.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContactToContact, updated.Status)
}

func TestProcessNextClaimedElsewhere(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())

	contact := seedContact(t, store, "5511999990000")
	job := seedJob(t, store, contact, time.Now().UTC().Add(-time.Minute))

	// the job is listed as pending but another invocation claims it first
	require.NoError(t, store.ClaimDispatch(context.Background(), job.ID))

	result, err := p.ProcessNext(context.Background())
	require.NoError(t, err)
	require.False(t, result.Processed)
	require.Empty(t, sender.calls)
}

func TestProcessBatchCountsAndStops(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{fail: map[string]string{"5522000000002": "rejected"}}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())

	past := time.Now().UTC().Add(-time.Minute)
	for _, phone := range []string{"5522000000001", "5522000000002", "5522000000003"} {
		contact := seedContact(t, store, phone)
		seedJob(t, store, contact, past)
	}

	stats, err := p.ProcessBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Sent)
	require.Equal(t, 1, stats.Errors)
	require.Len(t, sender.calls, 3)
}

func TestProcessBatchHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())

	past := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		contact := seedContact(t, store, "551100000000"+string(rune('0'+i)))
		seedJob(t, store, contact, past)
	}

	stats, err := p.ProcessBatch(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Sent)
	require.Len(t, sender.calls, 2)

	pending, err := store.ListPendingDispatches(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 3)
}

func TestSweepCompletions(t *testing.T) {
	store := newTestStore(t)
	sender := &fakeSender{}
	p := NewProcessor(store, sender, time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	contact := seedContact(t, store, "5511999990000")

	done := &models.Campaign{
		ID: models.NewID("cmp"), Name: "done", SessionID: "main", Message: "hi",
		Status: models.CampaignInProgress, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateCampaign(ctx, done))

	busy := &models.Campaign{
		ID: models.NewID("cmp"), Name: "busy", SessionID: "main", Message: "hi",
		Status: models.CampaignInProgress, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateCampaign(ctx, busy))

	job := &models.DispatchJob{
		ID: models.NewID("job"), ContactID: contact.ID, ContactName: contact.Name,
		ContactPhone: contact.Phone, Message: "hi", Status: models.DispatchPending,
		ScheduledAt: time.Now().UTC(), SessionID: "main", CampaignID: busy.ID,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateDispatch(ctx, job))

	examined, err := p.SweepCompletions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, examined)

	got, err := store.GetCampaign(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	got, err = store.GetCampaign(ctx, busy.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignInProgress, got.Status)
	require.Nil(t, got.CompletedAt)
}
