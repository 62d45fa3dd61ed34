package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucasvieira/zapcamp/internal/gateway"
	"github.com/lucasvieira/zapcamp/internal/models"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

// Sender is the slice of the gateway client the processor needs.
type Sender interface {
	SendText(ctx context.Context, session, phone, text string) *gateway.SendResult
}

type ProcessResult struct {
	Processed bool   `json:"processed"`
	Success   bool   `json:"success,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BatchStats struct {
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// Processor executes due dispatch jobs. Each invocation is a stateless unit
// of work against shared storage, so overlapping invocations (cron tick plus
// serve-mode runner) are safe: the claim step is the only guard and at most
// one of them proceeds to send a given job.
type Processor struct {
	store     storage.Storage
	sender    Sender
	sendDelay time.Duration
	log       zerolog.Logger
}

func NewProcessor(store storage.Storage, sender Sender, sendDelay time.Duration, log zerolog.Logger) *Processor {
	if sendDelay <= 0 {
		sendDelay = 2 * time.Second
	}
	return &Processor{store: store, sender: sender, sendDelay: sendDelay, log: log}
}

// ProcessNext claims and sends the earliest due pending job. An empty or
// not-yet-due queue, and a job snatched by a concurrent invocation, both
// report Processed=false without error. A gateway failure is recorded on the
// job and reported in the result; only storage failures return an error.
func (p *Processor) ProcessNext(ctx context.Context) (*ProcessResult, error) {
	jobs, err := p.store.ListPendingDispatches(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var job *models.DispatchJob
	for i := range jobs {
		if !jobs[i].ScheduledAt.After(now) {
			job = &jobs[i]
			break
		}
	}
	if job == nil {
		return &ProcessResult{Processed: false}, nil
	}

	if err := p.store.ClaimDispatch(ctx, job.ID); err != nil {
		if errors.Is(err, storage.ErrConflict) || errors.Is(err, storage.ErrNotFound) {
			return &ProcessResult{Processed: false}, nil
		}
		return nil, err
	}

	result := p.sender.SendText(ctx, job.SessionID, job.ContactPhone, job.Message)

	if !result.Success {
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "unknown gateway error"
		}
		if err := p.store.MarkDispatchError(ctx, job.ID, errMsg); err != nil {
			return nil, err
		}
		p.log.Warn().Str("job_id", job.ID).Str("error", errMsg).Msg("dispatch failed")
		return &ProcessResult{Processed: true, Success: false, JobID: job.ID, Error: errMsg}, nil
	}

	if err := p.store.MarkDispatchSent(ctx, job.ID); err != nil {
		return nil, err
	}

	// Send success feeds back into the funnel. The contact may have been
	// deleted since the job was created; that is not a dispatch failure.
	if err := p.store.UpdateContactStatus(ctx, job.ContactID, models.ContactContacted); err != nil && !errors.Is(err, storage.ErrNotFound) {
		p.log.Warn().Err(err).Str("contact_id", job.ContactID).Msg("failed to update contact funnel status")
	}

	p.log.Info().Str("job_id", job.ID).Str("message_id", result.MessageID).Msg("dispatch sent")
	return &ProcessResult{Processed: true, Success: true, JobID: job.ID}, nil
}

// ProcessBatch runs ProcessNext up to limit times with a fixed delay between
// sends to stay under provider rate limits. It exits early once the queue
// has nothing due. Individual gateway failures are counted, never fatal.
func (p *Processor) ProcessBatch(ctx context.Context, limit int) (*BatchStats, error) {
	if limit <= 0 {
		limit = 10
	}

	stats := &BatchStats{}
	for i := 0; i < limit; i++ {
		result, err := p.ProcessNext(ctx)
		if err != nil {
			return stats, err
		}
		if !result.Processed {
			break
		}

		if result.Success {
			stats.Sent++
		} else {
			stats.Errors++
		}

		if i < limit-1 {
			select {
			case <-ctx.Done():
				return stats, ctx.Err()
			case <-time.After(p.sendDelay):
			}
		}
	}
	return stats, nil
}

// SweepCompletions checks every in-progress campaign and completes the ones
// with no pending or sending jobs left. Safe to run repeatedly.
func (p *Processor) SweepCompletions(ctx context.Context) (int, error) {
	campaigns, err := p.store.ListCampaignsByStatus(ctx, models.CampaignInProgress)
	if err != nil {
		return 0, err
	}

	for _, c := range campaigns {
		active, err := p.store.CountActiveDispatches(ctx, c.ID)
		if err != nil {
			return 0, err
		}
		if active == 0 {
			if err := p.store.CompleteCampaign(ctx, c.ID, time.Now().UTC()); err != nil {
				return 0, err
			}
			p.log.Info().Str("campaign_id", c.ID).Msg("campaign completed")
		}
	}
	return len(campaigns), nil
}
