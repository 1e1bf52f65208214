// Package scheduler fires the nightly recompilation.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/calloway/gridfax/internal/compile"
	"github.com/calloway/gridfax/internal/store"
)

// CompileTrigger is the slice of the compile service the scheduler uses.
type CompileTrigger interface {
	Trigger(ctx context.Context, req compile.Request) (*store.CompileRun, error)
	Active() *store.CompileRun
}

// Config holds scheduler configuration.
type Config struct {
	Hour       int // local hour (0-23) the nightly run fires at
	Season     int // zero selects the season in progress
	EndWeek    int
	SeasonType int
}

// Scheduler triggers one compilation run per night at a configured hour.
// Nights where a run is already active are skipped.
type Scheduler struct {
	service CompileTrigger
	config  Config

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. Call Start to begin the nightly loop.
func New(service CompileTrigger, config Config) *Scheduler {
	return &Scheduler{
		service: service,
		config:  config,
		done:    make(chan struct{}),
	}
}

// Start launches the nightly loop in its own goroutine.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	log.Printf("[scheduler] Nightly compile enabled (runs at %02d:00, weeks 1-%d)",
		s.config.Hour, s.config.EndWeek)

	go s.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	log.Printf("[scheduler] ✓ Stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		next := nextRunAfter(time.Now(), s.config.Hour)
		log.Printf("[scheduler] Next nightly compile: %s (in %v)",
			next.Format("2006-01-02 15:04:05"), time.Until(next).Round(time.Second))

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if s.service.Active() != nil {
		log.Printf("[scheduler] ⚠ Skipping nightly compile, a run is already active")
		return
	}

	req := requestFor(time.Now(), s.config)
	run, err := s.service.Trigger(ctx, req)
	switch {
	case errors.Is(err, compile.ErrRunActive):
		log.Printf("[scheduler] ⚠ Skipping nightly compile, a run is already active")
	case err != nil:
		log.Printf("[scheduler] ❌ Nightly compile failed to start: %v", err)
	default:
		log.Printf("[scheduler] ✓ Nightly compile started (run %s, season %d)", run.RunID, run.Season)
	}
}

// nextRunAfter returns the next occurrence of hour after now.
func nextRunAfter(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// requestFor builds the nightly compile request. A zero season selects
// the season in progress: seasons span September through February, so
// January and February belong to the previous calendar year.
func requestFor(now time.Time, config Config) compile.Request {
	season := config.Season
	if season == 0 {
		season = now.Year()
		if now.Month() < time.March {
			season--
		}
	}
	return compile.Request{
		Season:     season,
		EndWeek:    config.EndWeek,
		SeasonType: compile.SeasonType(config.SeasonType),
	}
}
