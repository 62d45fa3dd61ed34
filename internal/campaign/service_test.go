package campaign

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lucasvieira/zapcamp/internal/dispatch"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

func newTestService(t *testing.T) (*Service, storage.Storage) {
	t.Helper()

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(context.Background()))

	sched := dispatch.NewScheduler(store, zerolog.Nop())
	return NewService(store, sched, zerolog.Nop()), store
}

func seedContacts(t *testing.T, store storage.Storage, phones ...string) []string {
	t.Helper()

	ids := make([]string, 0, len(phones))
	for i, phone := range phones {
		c := &models.Contact{
			ID:         models.NewID("ct"),
			Name:       "Contact " + string(rune('A'+i)),
			Phone:      phone,
			Status:     models.ContactToContact,
			CapturedAt: time.Now().UTC(),
		}
		require.NoError(t, store.CreateContact(context.Background(), c))
		ids = append(ids, c.ID)
	}
	return ids
}

func TestCreateSchedulesBatch(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001", "", "5511000000002")

	result, err := svc.Create(ctx, "Promo", "main", "Olá {name}", ids, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "Promo", result.Campaign.Name)
	require.Equal(t, models.CampaignInProgress, result.Campaign.Status)
	require.Equal(t, 3, result.Campaign.TotalContacts)
	require.Equal(t, 2, result.Scheduled)
	require.Equal(t, 1, result.Skipped)

	jobs, err := store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}

func TestCreateDefaultsName(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001")

	result, err := svc.Create(ctx, "", "main", "hi", ids, 0)
	require.NoError(t, err)
	require.Equal(t, models.DefaultCampaignName(time.Now().UTC()), result.Campaign.Name)
}

func TestPauseCancelsPendingJobsOnly(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001", "5511000000002")
	result, err := svc.Create(ctx, "Promo", "main", "hi", ids, time.Minute)
	require.NoError(t, err)

	jobs, err := store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)

	// one job is mid-send when the pause lands
	require.NoError(t, store.ClaimDispatch(ctx, jobs[0].ID))

	require.NoError(t, svc.Pause(ctx, result.Campaign.ID))

	c, err := store.GetCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignPaused, c.Status)

	jobs, err = store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.DispatchSending, jobs[0].Status)
	require.Equal(t, models.DispatchCancelled, jobs[1].Status)
}

func TestResumeReactivatesCancelledJobs(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001", "5511000000002")
	result, err := svc.Create(ctx, "Promo", "main", "hi", ids, time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.Pause(ctx, result.Campaign.ID))

	before := time.Now().UTC()
	require.NoError(t, svc.Resume(ctx, result.Campaign.ID))

	c, err := store.GetCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignInProgress, c.Status)

	jobs, err := store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	for i, job := range jobs {
		require.Equal(t, models.DispatchPending, job.Status)
		require.WithinDuration(t, before.Add(time.Duration(i)*time.Minute), job.ScheduledAt, 5*time.Second)
	}
}

func TestCancelIncludesInFlightJobs(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001", "5511000000002")
	result, err := svc.Create(ctx, "Promo", "main", "hi", ids, time.Minute)
	require.NoError(t, err)

	jobs, err := store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.NoError(t, store.ClaimDispatch(ctx, jobs[0].ID))

	require.NoError(t, svc.Cancel(ctx, result.Campaign.ID))

	c, err := store.GetCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignCancelled, c.Status)

	jobs, err = store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	for _, job := range jobs {
		require.Equal(t, models.DispatchCancelled, job.Status)
	}
}

func TestTransitionsOnMissingCampaign(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Pause(ctx, "cmp_missing"), ErrNotFound)
	require.ErrorIs(t, svc.Resume(ctx, "cmp_missing"), ErrNotFound)
	require.ErrorIs(t, svc.Cancel(ctx, "cmp_missing"), ErrNotFound)
	require.ErrorIs(t, svc.Remove(ctx, "cmp_missing"), ErrNotFound)
	require.ErrorIs(t, svc.CheckCompletion(ctx, "cmp_missing"), ErrNotFound)
}

func TestCheckCompletion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001")
	result, err := svc.Create(ctx, "Promo", "main", "hi", ids, time.Minute)
	require.NoError(t, err)

	// still has a pending job, stays in progress
	require.NoError(t, svc.CheckCompletion(ctx, result.Campaign.ID))
	c, err := store.GetCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignInProgress, c.Status)

	jobs, err := store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.NoError(t, store.ClaimDispatch(ctx, jobs[0].ID))
	require.NoError(t, store.MarkDispatchSent(ctx, jobs[0].ID))

	require.NoError(t, svc.CheckCompletion(ctx, result.Campaign.ID))
	c, err = store.GetCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Equal(t, models.CampaignCompleted, c.Status)
	require.NotNil(t, c.CompletedAt)

	// repeated checks are a no-op on terminal states
	require.NoError(t, svc.CheckCompletion(ctx, result.Campaign.ID))
}

func TestGetWithDispatchesCounts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001", "5511000000002", "5511000000003")
	result, err := svc.Create(ctx, "Promo", "main", "hi", ids, time.Minute)
	require.NoError(t, err)

	jobs, err := store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.NoError(t, store.ClaimDispatch(ctx, jobs[0].ID))
	require.NoError(t, store.MarkDispatchSent(ctx, jobs[0].ID))
	require.NoError(t, store.ClaimDispatch(ctx, jobs[1].ID))
	require.NoError(t, store.MarkDispatchError(ctx, jobs[1].ID, "boom"))

	details, err := svc.GetWithDispatches(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Len(t, details.Dispatches, 3)
	require.Equal(t, 1, details.Counts["sent"])
	require.Equal(t, 1, details.Counts["error"])
	require.Equal(t, 1, details.Counts["pending"])
}

func TestRemoveDeletesJobs(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ids := seedContacts(t, store, "5511000000001")
	result, err := svc.Create(ctx, "Promo", "main", "hi", ids, time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, result.Campaign.ID))

	c, err := store.GetCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Nil(t, c)

	jobs, err := store.ListDispatchesByCampaign(ctx, result.Campaign.ID)
	require.NoError(t, err)
	require.Empty(t, jobs)
}
