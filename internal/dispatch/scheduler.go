package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
	"github.com/lucasvieira/zapcamp/internal/templates"
)

var (
	// ErrContactNotFound is returned by CreateSingle for a missing contact.
	ErrContactNotFound = errors.New("dispatch: contact not found")

	// ErrNoPhone is returned by CreateSingle when the contact has no phone
	// number. Batch scheduling skips such contacts instead and reports them
	// in BatchResult.Skipped.
	ErrNoPhone = errors.New("dispatch: contact has no phone number")
)

// DefaultInterval is the spacing between consecutive jobs in a batch.
const DefaultInterval = 1 * time.Minute

type BatchResult struct {
	Scheduled int `json:"scheduled"`
	Skipped   int `json:"skipped"`
}

// Scheduler turns lists of contacts into individually timed dispatch jobs.
type Scheduler struct {
	store storage.Storage
	log   zerolog.Logger
}

func NewScheduler(store storage.Storage, log zerolog.Logger) *Scheduler {
	return &Scheduler{store: store, log: log}
}

// ScheduleBatch creates one pending job per contact, staggered by interval
// in input order. Contacts that are missing or have no phone number are
// skipped and counted; the schedule index only advances over surviving
// contacts, so the created jobs are spaced exactly interval apart with no
// gaps. The message body is rendered per contact and snapshotted onto the
// job together with the contact's name and phone.
func (s *Scheduler) ScheduleBatch(ctx context.Context, contactIDs []string, message, sessionID, campaignID string, interval time.Duration) (*BatchResult, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	now := time.Now().UTC()
	result := &BatchResult{}

	for _, contactID := range contactIDs {
		contact, err := s.store.GetContact(ctx, contactID)
		if err != nil {
			return result, err
		}
		if contact == nil || contact.Phone == "" {
			result.Skipped++
			continue
		}

		job := &models.DispatchJob{
			ID:           models.NewID("job"),
			ContactID:    contact.ID,
			ContactName:  contact.Name,
			ContactPhone: contact.Phone,
			Message:      templates.Render(message, contact),
			Status:       models.DispatchPending,
			ScheduledAt:  now.Add(time.Duration(result.Scheduled) * interval),
			SessionID:    sessionID,
			CampaignID:   campaignID,
			CreatedAt:    now,
		}
		if err := s.store.CreateDispatch(ctx, job); err != nil {
			return result, err
		}
		result.Scheduled++
	}

	s.log.Info().
		Int("scheduled", result.Scheduled).
		Int("skipped", result.Skipped).
		Str("campaign_id", campaignID).
		Msg("dispatch batch scheduled")

	return result, nil
}

// CreateSingle schedules one ad-hoc job. Unlike ScheduleBatch it fails loudly:
// ErrContactNotFound for a missing contact, ErrNoPhone for one that cannot
// receive messages.
func (s *Scheduler) CreateSingle(ctx context.Context, contactID, message, sessionID string, scheduledAt time.Time, campaignID string) (*models.DispatchJob, error) {
	contact, err := s.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}
	if contact.Phone == "" {
		return nil, ErrNoPhone
	}

	job := &models.DispatchJob{
		ID:           models.NewID("job"),
		ContactID:    contact.ID,
		ContactName:  contact.Name,
		ContactPhone: contact.Phone,
		Message:      templates.Render(message, contact),
		Status:       models.DispatchPending,
		ScheduledAt:  scheduledAt,
		SessionID:    sessionID,
		CampaignID:   campaignID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateDispatch(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
