package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucasvieira/zapcamp/internal/dispatch"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

// ErrNotFound is returned when the referenced campaign does not exist.
var ErrNotFound = errors.New("campaign: not found")

// resumeInterval spaces reactivated jobs apart on campaign resume.
const resumeInterval = 1 * time.Minute

// Service owns the campaign lifecycle and its aggregate view. Job-level
// state lives in the dispatch queue; the service orchestrates both.
type Service struct {
	store storage.Storage
	sched *dispatch.Scheduler
	log   zerolog.Logger
}

func NewService(store storage.Storage, sched *dispatch.Scheduler, log zerolog.Logger) *Service {
	return &Service{store: store, sched: sched, log: log}
}

type CreateResult struct {
	Campaign  *models.Campaign `json:"campaign"`
	Scheduled int              `json:"scheduled"`
	Skipped   int              `json:"skipped"`
}

// Create inserts the campaign row and schedules its dispatch batch.
// TotalContacts records the requested count; contacts without a phone number
// are skipped at the queue level and reported in Skipped so the operator can
// see the difference.
func (s *Service) Create(ctx context.Context, name, sessionID, message string, contactIDs []string, interval time.Duration) (*CreateResult, error) {
	now := time.Now().UTC()
	if name == "" {
		name = models.DefaultCampaignName(now)
	}

	c := &models.Campaign{
		ID:            models.NewID("cmp"),
		Name:          name,
		SessionID:     sessionID,
		Message:       message,
		TotalContacts: len(contactIDs),
		Status:        models.CampaignInProgress,
		CreatedAt:     now,
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}

	batch, err := s.sched.ScheduleBatch(ctx, contactIDs, message, sessionID, c.ID, interval)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("campaign_id", c.ID).
		Int("requested", len(contactIDs)).
		Int("scheduled", batch.Scheduled).
		Msg("campaign created")

	return &CreateResult{Campaign: c, Scheduled: batch.Scheduled, Skipped: batch.Skipped}, nil
}

// Pause stops further sends: the campaign goes paused and every still-pending
// job is cancelled. Jobs already claimed finish on their own.
func (s *Service) Pause(ctx context.Context, id string) error {
	if err := s.setStatus(ctx, id, models.CampaignPaused); err != nil {
		return err
	}
	return s.cancelJobs(ctx, id, false)
}

// Resume reactivates every cancelled job under the campaign with fresh
// schedule slots one minute apart, in enumeration order.
func (s *Service) Resume(ctx context.Context, id string) error {
	if err := s.setStatus(ctx, id, models.CampaignInProgress); err != nil {
		return err
	}

	jobs, err := s.store.ListDispatchesByCampaign(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	offset := 0
	for _, job := range jobs {
		if job.Status != models.DispatchCancelled {
			continue
		}
		if err := s.store.ResetDispatch(ctx, job.ID, now.Add(time.Duration(offset)*resumeInterval)); err != nil {
			return err
		}
		offset++
	}

	s.log.Info().Str("campaign_id", id).Int("reactivated", offset).Msg("campaign resumed")
	return nil
}

// Cancel terminates the campaign, cancelling pending and in-flight jobs.
// There is no preemption: a job mid-send still reaches sent or error.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.setStatus(ctx, id, models.CampaignCancelled); err != nil {
		return err
	}
	return s.cancelJobs(ctx, id, true)
}

// CheckCompletion completes an in-progress campaign once none of its jobs
// are pending or sending. Idempotent; any other state is a no-op.
func (s *Service) CheckCompletion(ctx context.Context, id string) error {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	if c.Status != models.CampaignInProgress {
		return nil
	}

	active, err := s.store.CountActiveDispatches(ctx, id)
	if err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	return s.store.CompleteCampaign(ctx, id, time.Now().UTC())
}

// Remove deletes the campaign and, through the cascade, all its jobs.
func (s *Service) Remove(ctx context.Context, id string) error {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrNotFound
	}
	return s.store.DeleteCampaign(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Campaign, error) {
	return s.store.GetCampaign(ctx, id)
}

type Details struct {
	*models.Campaign
	Dispatches []models.DispatchJob `json:"dispatches"`
	Counts     map[string]int       `json:"counts"`
}

// GetWithDispatches returns the campaign, its jobs, and live per-status
// counts computed from the jobs themselves. The counts are the exact view;
// the campaign's own counters are maintained best-effort and may lag.
func (s *Service) GetWithDispatches(ctx context.Context, id string) (*Details, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNotFound
	}

	jobs, err := s.store.ListDispatchesByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, job := range jobs {
		counts[string(job.Status)]++
	}

	return &Details{Campaign: c, Dispatches: jobs, Counts: counts}, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Campaign, error) {
	return s.store.ListCampaigns(ctx, limit, offset)
}

func (s *Service) setStatus(ctx context.Context, id string, status models.CampaignStatus) error {
	err := s.store.UpdateCampaignStatus(ctx, id, status)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) cancelJobs(ctx context.Context, id string, includeSending bool) error {
	jobs, err := s.store.ListDispatchesByCampaign(ctx, id)
	if err != nil {
		return err
	}

	var ids []string
	for _, job := range jobs {
		if job.Status == models.DispatchPending || (includeSending && job.Status == models.DispatchSending) {
			ids = append(ids, job.ID)
		}
	}

	cancelled, err := s.store.CancelDispatches(ctx, ids)
	if err != nil {
		return err
	}
	s.log.Info().Str("campaign_id", id).Int("cancelled", cancelled).Msg("campaign jobs cancelled")
	return nil
}
