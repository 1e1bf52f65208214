package compile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/calloway/gridfax/internal/compile"
	"github.com/calloway/gridfax/internal/stats"
	"github.com/calloway/gridfax/internal/store"
)

type fakeRunStore struct {
	mu        sync.Mutex
	createErr error
	created   []*store.CompileRun
	updates   int
	finished  []*store.CompileRun
	stale     int
}

func (f *fakeRunStore) CreateRun(ctx context.Context, run *store.CompileRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, run.Copy())
	return nil
}

func (f *fakeRunStore) UpdateProgress(ctx context.Context, run *store.CompileRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func (f *fakeRunStore) FinishRun(ctx context.Context, run *store.CompileRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, run.Copy())
	return nil
}

func (f *fakeRunStore) AbortStaleRuns(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale++
	return nil
}

func (f *fakeRunStore) GetRun(ctx context.Context, runID string) (*store.CompileRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range f.finished {
		if run.RunID == runID {
			return run.Copy(), nil
		}
	}
	for _, run := range f.created {
		if run.RunID == runID {
			return run.Copy(), nil
		}
	}
	return nil, nil
}

func (f *fakeRunStore) ListRecent(ctx context.Context, limit int) ([]*store.CompileRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.CompileRun
	for i := len(f.finished) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.finished[i].Copy())
	}
	return out, nil
}

func (f *fakeRunStore) lastFinished() *store.CompileRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.finished) == 0 {
		return nil
	}
	return f.finished[len(f.finished)-1].Copy()
}

type fakeInvalidator struct {
	mu sync.Mutex
	n  int
}

func (f *fakeInvalidator) InvalidateLeaderboards(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return nil
}

func (f *fakeInvalidator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

// gateFeed blocks schedule discovery until release is closed, so tests can
// hold a run open.
type gateFeed struct {
	release chan struct{}
}

func (g *gateFeed) GameIDs(ctx context.Context, season, week, seasonType int) ([]string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []string{"401"}, nil
}

func (g *gateFeed) GameRecords(ctx context.Context, gameID string) (map[stats.Category][]stats.GameRecord, error) {
	return map[stats.Category][]stats.GameRecord{
		stats.CategoryPassing: lines(stats.CategoryPassing, 1),
	}, nil
}

func waitIdle(svc *compile.Service) bool {
	for i := 0; i < 400; i++ {
		if svc.Active() == nil {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func regularWeek1() compile.Request {
	return compile.Request{Season: 2025, EndWeek: 1, SeasonType: compile.RegularSeason}
}

func TestServiceTrigger(t *testing.T) {
	Convey("Given an idle service", t, func() {
		feed := &fakeFeed{
			gamesByWeek: map[int][]string{1: {"401"}},
			records: map[string]map[stats.Category][]stats.GameRecord{
				"401": {stats.CategoryPassing: lines(stats.CategoryPassing, 2)},
			},
		}
		runs := &fakeRunStore{}
		cache := &fakeInvalidator{}
		svc := compile.NewService(compile.NewCompiler(feed, &fakeGateway{}), runs, nil, cache)
		svc.Start()
		defer svc.Shutdown(context.Background())

		Convey("When a run is triggered", func() {
			run, err := svc.Trigger(context.Background(), regularWeek1())

			Convey("Then a running row is created and the run completes", func() {
				So(err, ShouldBeNil)
				So(run.RunID, ShouldNotBeEmpty)
				So(run.Status, ShouldEqual, store.RunStatusRunning)
				So(runs.created, ShouldHaveLength, 1)

				So(waitIdle(svc), ShouldBeTrue)

				final := runs.lastFinished()
				So(final, ShouldNotBeNil)
				So(final.Status, ShouldEqual, store.RunStatusCompleted)
				So(final.GamesProcessed, ShouldEqual, 1)
				So(final.Touched["passing"], ShouldEqual, 2)
				So(cache.count(), ShouldEqual, 1)

				Convey("And the status endpoint reports the terminal run", func() {
					status, serr := svc.Status(context.Background())
					So(serr, ShouldBeNil)
					So(status.RunID, ShouldEqual, run.RunID)
					So(status.Status, ShouldEqual, store.RunStatusCompleted)
				})
			})
		})

		Convey("When an invalid request is triggered", func() {
			_, err := svc.Trigger(context.Background(), compile.Request{Season: 2025, EndWeek: 30, SeasonType: compile.RegularSeason})

			Convey("Then validation fails without creating a row", func() {
				So(compile.IsValidationError(err), ShouldBeTrue)
				So(runs.created, ShouldBeEmpty)
			})
		})
	})
}

func TestServiceSingleFlight(t *testing.T) {
	Convey("Given a service with a run held open", t, func() {
		gate := &gateFeed{release: make(chan struct{})}
		runs := &fakeRunStore{}
		svc := compile.NewService(compile.NewCompiler(gate, &fakeGateway{}), runs, nil, nil)
		defer svc.Shutdown(context.Background())

		first, err := svc.Trigger(context.Background(), regularWeek1())
		So(err, ShouldBeNil)

		Convey("When a second run is triggered while the first is active", func() {
			_, err := svc.Trigger(context.Background(), regularWeek1())

			Convey("Then it is refused", func() {
				So(errors.Is(err, compile.ErrRunActive), ShouldBeTrue)
				So(svc.Active().RunID, ShouldEqual, first.RunID)
			})
		})

		Convey("When the first run finishes", func() {
			close(gate.release)
			So(waitIdle(svc), ShouldBeTrue)

			Convey("Then a new run can be triggered", func() {
				second, err := svc.Trigger(context.Background(), regularWeek1())
				So(err, ShouldBeNil)
				So(second.RunID, ShouldNotEqual, first.RunID)
				So(waitIdle(svc), ShouldBeTrue)
			})
		})
	})
}

func TestServiceAbort(t *testing.T) {
	Convey("Given a gateway that fails mid-run", t, func() {
		feed := &fakeFeed{
			gamesByWeek: map[int][]string{1: {"401"}},
			records: map[string]map[stats.Category][]stats.GameRecord{
				"401": {stats.CategoryRushing: lines(stats.CategoryRushing, 1)},
			},
		}
		gateway := &fakeGateway{
			mergeErr: map[stats.Category]error{stats.CategoryRushing: errors.New("connection reset")},
		}
		runs := &fakeRunStore{}
		cache := &fakeInvalidator{}
		svc := compile.NewService(compile.NewCompiler(feed, gateway), runs, nil, cache)
		defer svc.Shutdown(context.Background())

		Convey("When a run is triggered", func() {
			_, err := svc.Trigger(context.Background(), regularWeek1())
			So(err, ShouldBeNil)
			So(waitIdle(svc), ShouldBeTrue)

			Convey("Then the run row ends aborted with the error recorded", func() {
				final := runs.lastFinished()
				So(final, ShouldNotBeNil)
				So(final.Status, ShouldEqual, store.RunStatusAborted)
				So(final.LastError.Valid, ShouldBeTrue)
				So(final.LastError.String, ShouldContainSubstring, "connection reset")
			})

			Convey("Then the cache is still invalidated after the wipe", func() {
				So(cache.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestServiceShutdown(t *testing.T) {
	Convey("Given a service with a run blocked on the feed", t, func() {
		gate := &gateFeed{release: make(chan struct{})}
		runs := &fakeRunStore{}
		svc := compile.NewService(compile.NewCompiler(gate, &fakeGateway{}), runs, nil, nil)

		run, err := svc.Trigger(context.Background(), regularWeek1())
		So(err, ShouldBeNil)

		Convey("When the service shuts down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			So(svc.Shutdown(ctx), ShouldBeNil)

			Convey("Then the run is finalized as aborted", func() {
				final := runs.lastFinished()
				So(final, ShouldNotBeNil)
				So(final.RunID, ShouldEqual, run.RunID)
				So(final.Status, ShouldEqual, store.RunStatusAborted)
			})
		})
	})
}
