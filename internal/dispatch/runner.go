package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucasvieira/zapcamp/internal/config"
	"github.com/lucasvieira/zapcamp/internal/storage"
)

// Runner drives the processor from inside the serve process: one ticker for
// the send loop, one for the completion sweep. External triggers (cron
// hitting the process endpoints) can coexist with it; claiming keeps them
// from double-sending.
type Runner struct {
	processor  *Processor
	batchLimit int
	pollRate   time.Duration
	sweepRate  time.Duration
	log        zerolog.Logger
	stop       chan struct{}
	wg         sync.WaitGroup
}

func NewRunner(cfg config.DispatchConfig, store storage.Storage, sender Sender, log zerolog.Logger) *Runner {
	processor := NewProcessor(store, sender, cfg.SendDelay, log)

	pollRate := cfg.PollRate
	if pollRate <= 0 {
		pollRate = 30 * time.Second
	}
	sweepRate := cfg.SweepRate
	if sweepRate <= 0 {
		sweepRate = 1 * time.Minute
	}

	return &Runner{
		processor:  processor,
		batchLimit: cfg.BatchLimit,
		pollRate:   pollRate,
		sweepRate:  sweepRate,
		log:        log,
		stop:       make(chan struct{}),
	}
}

func (r *Runner) Processor() *Processor {
	return r.processor
}

func (r *Runner) Start(ctx context.Context) {
	r.log.Info().
		Dur("poll_rate", r.pollRate).
		Dur("sweep_rate", r.sweepRate).
		Msg("starting dispatch runner")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()
}

func (r *Runner) Stop() {
	r.log.Info().Msg("stopping dispatch runner")
	close(r.stop)
	r.wg.Wait()
	r.log.Info().Msg("dispatch runner stopped")
}

func (r *Runner) loop(ctx context.Context) {
	poll := time.NewTicker(r.pollRate)
	defer poll.Stop()
	sweep := time.NewTicker(r.sweepRate)
	defer sweep.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-poll.C:
			stats, err := r.processor.ProcessBatch(ctx, r.batchLimit)
			if err != nil {
				r.log.Error().Err(err).Msg("dispatch batch failed")
				continue
			}
			if stats.Sent > 0 || stats.Errors > 0 {
				r.log.Info().Int("sent", stats.Sent).Int("errors", stats.Errors).Msg("dispatch batch processed")
			}
		case <-sweep.C:
			if _, err := r.processor.SweepCompletions(ctx); err != nil {
				r.log.Error().Err(err).Msg("completion sweep failed")
			}
		}
	}
}
