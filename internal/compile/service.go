package compile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calloway/gridfax/internal/stats"
	"github.com/calloway/gridfax/internal/store"
)

// ErrRunActive is returned by Trigger while another run is in flight.
var ErrRunActive = errors.New("a compilation run is already active")

// RunStore persists run history rows.
type RunStore interface {
	CreateRun(ctx context.Context, run *store.CompileRun) error
	UpdateProgress(ctx context.Context, run *store.CompileRun) error
	FinishRun(ctx context.Context, run *store.CompileRun) error
	AbortStaleRuns(ctx context.Context) error
	GetRun(ctx context.Context, runID string) (*store.CompileRun, error)
	ListRecent(ctx context.Context, limit int) ([]*store.CompileRun, error)
}

// CacheInvalidator drops cached leaderboard entries once a run has
// rewritten the aggregate tables.
type CacheInvalidator interface {
	InvalidateLeaderboards(ctx context.Context) error
}

// Service owns run execution: a single run at a time, a persisted history
// row per run, and fan-out progress reporting.
type Service struct {
	compiler *Compiler
	runs     RunStore
	reporter Reporter         // optional extra sink (websocket hub, event stream)
	cache    CacheInvalidator // optional

	mu     sync.Mutex
	active *store.CompileRun

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService constructs a Service. reporter and cache may be nil.
func NewService(compiler *Compiler, runs RunStore, reporter Reporter, cache CacheInvalidator) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		compiler: compiler,
		runs:     runs,
		reporter: reporter,
		cache:    cache,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start recovers history rows left running by an earlier process.
func (s *Service) Start() {
	if err := s.runs.AbortStaleRuns(s.ctx); err != nil {
		log.Printf("[compile] ⚠ Failed to abort stale runs: %v", err)
	}
}

// Shutdown cancels the active run and waits for it to finalize.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Trigger validates req, persists a running row, and launches the run in
// the background. It returns ErrRunActive while a run is in flight and a
// *ValidationError for bad requests.
func (s *Service) Trigger(ctx context.Context, req Request) (*store.CompileRun, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, ErrRunActive
	}

	run := &store.CompileRun{
		RunID:      uuid.NewString(),
		Season:     req.Season,
		EndWeek:    req.EndWeek,
		SeasonType: int(req.SeasonType),
		Status:     store.RunStatusRunning,
		Touched:    map[string]int64{},
		Warnings:   []store.RunWarning{},
		StartedAt:  time.Now().UTC(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persisting run: %w", err)
	}

	s.active = run

	s.wg.Add(1)
	go s.execute(run.Copy(), req)

	return run.Copy(), nil
}

// Active returns a copy of the in-flight run, or nil when idle.
func (s *Service) Active() *store.CompileRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Copy()
}

// Status returns the active run, or the latest terminal run when idle.
func (s *Service) Status(ctx context.Context) (*store.CompileRun, error) {
	if run := s.Active(); run != nil {
		return run, nil
	}
	runs, err := s.runs.ListRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// History returns the most recent runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*store.CompileRun, error) {
	return s.runs.ListRecent(ctx, limit)
}

// Run returns one run by id, or nil when unknown.
func (s *Service) Run(ctx context.Context, runID string) (*store.CompileRun, error) {
	return s.runs.GetRun(ctx, runID)
}

func (s *Service) execute(run *store.CompileRun, req Request) {
	defer s.wg.Done()

	recorder := &runRecorder{service: s, run: run}
	summary, err := s.compiler.Run(s.ctx, req, MultiReporter(recorder, s.reporter))

	s.finalize(run, summary, err)
}

// finalize writes the terminal row and releases the single-flight slot.
// It uses a fresh context so a canceled run still gets recorded.
func (s *Service) finalize(run *store.CompileRun, summary Summary, err error) {
	run.GamesProcessed = summary.GamesProcessed
	run.GamesFailed = summary.GamesFailed
	run.Touched = touchedColumns(summary.Touched)
	run.Warnings = storeWarnings(summary.Warnings)
	if err != nil {
		run.Status = store.RunStatusAborted
		msg := err.Error()
		run.LastError = store.NullStr(&msg)
	} else {
		run.Status = store.RunStatusCompleted
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if ferr := s.runs.FinishRun(ctx, run); ferr != nil {
		log.Printf("[compile] ⚠ Failed to finalize run %s: %v", run.RunID, ferr)
	}

	// The tables changed as soon as the reset ran, so stale cache entries
	// are dropped even after an abort.
	if s.cache != nil {
		if cerr := s.cache.InvalidateLeaderboards(ctx); cerr != nil {
			log.Printf("[compile] ⚠ Cache invalidation failed: %v", cerr)
		}
	}

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

func (s *Service) setActive(run *store.CompileRun) {
	s.mu.Lock()
	if s.active != nil && s.active.RunID == run.RunID {
		s.active = run
	}
	s.mu.Unlock()
}

// runRecorder mirrors Reporter callbacks into the run's history row so
// status endpoints see live progress.
type runRecorder struct {
	service *Service
	run     *store.CompileRun
}

func (r *runRecorder) OnRunStart(Request) {}

func (r *runRecorder) OnWeekStart(int, int, []string) {}

func (r *runRecorder) OnGameProcessed(week int, gameID string, touched map[stats.Category]int) {
	r.run.GamesProcessed++
	for c, n := range touched {
		r.run.Touched[c.String()] += int64(n)
	}
	r.persist()
}

func (r *runRecorder) OnGameFailed(week int, gameID string, err error) {
	if gameID != "" {
		r.run.GamesFailed++
	}
	r.run.Warnings = append(r.run.Warnings, store.RunWarning{Week: week, GameID: gameID, Error: err.Error()})
	r.persist()
}

func (r *runRecorder) OnRunComplete(Summary) {}

func (r *runRecorder) OnRunAborted(Summary, error) {}

func (r *runRecorder) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.service.runs.UpdateProgress(ctx, r.run); err != nil {
		log.Printf("[compile] ⚠ Failed to update run %s progress: %v", r.run.RunID, err)
	}
	r.service.setActive(r.run.Copy())
}

func touchedColumns(touched map[stats.Category]int) map[string]int64 {
	out := make(map[string]int64, len(touched))
	for c, n := range touched {
		out[c.String()] = int64(n)
	}
	return out
}

func storeWarnings(warnings []Warning) []store.RunWarning {
	out := make([]store.RunWarning, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, store.RunWarning{Week: w.Week, GameID: w.GameID, Error: w.Err})
	}
	return out
}
