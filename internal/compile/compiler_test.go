package compile_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/calloway/gridfax/internal/compile"
	"github.com/calloway/gridfax/internal/stats"
)

type fakeFeed struct {
	gamesByWeek map[int][]string
	weekErr     map[int]error
	records     map[string]map[stats.Category][]stats.GameRecord
	recordsErr  map[string]error
	calls       []string
}

func (f *fakeFeed) GameIDs(ctx context.Context, season, week, seasonType int) ([]string, error) {
	f.calls = append(f.calls, fmt.Sprintf("week:%d", week))
	if err := f.weekErr[week]; err != nil {
		return nil, err
	}
	return f.gamesByWeek[week], nil
}

func (f *fakeFeed) GameRecords(ctx context.Context, gameID string) (map[stats.Category][]stats.GameRecord, error) {
	f.calls = append(f.calls, "game:"+gameID)
	if err := f.recordsErr[gameID]; err != nil {
		return nil, err
	}
	return f.records[gameID], nil
}

type fakeGateway struct {
	resetCalls int
	resetErr   error
	mergeErr   map[stats.Category]error
	order      []string
}

func (g *fakeGateway) ResetAll(ctx context.Context) error {
	g.resetCalls++
	g.order = append(g.order, "reset")
	return g.resetErr
}

func (g *fakeGateway) MergeGame(ctx context.Context, c stats.Category, records []stats.GameRecord) (int, error) {
	g.order = append(g.order, "merge:"+c.String())
	if err := g.mergeErr[c]; err != nil {
		return 0, err
	}
	return len(records), nil
}

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) OnRunStart(req compile.Request) {
	r.events = append(r.events, "start")
}

func (r *recordingReporter) OnWeekStart(week, endWeek int, gameIDs []string) {
	r.events = append(r.events, fmt.Sprintf("week:%d(%d)", week, len(gameIDs)))
}

func (r *recordingReporter) OnGameProcessed(week int, gameID string, touched map[stats.Category]int) {
	r.events = append(r.events, "game:"+gameID)
}

func (r *recordingReporter) OnGameFailed(week int, gameID string, err error) {
	r.events = append(r.events, "failed:"+gameID)
}

func (r *recordingReporter) OnRunComplete(summary compile.Summary) {
	r.events = append(r.events, "complete")
}

func (r *recordingReporter) OnRunAborted(summary compile.Summary, err error) {
	r.events = append(r.events, "aborted")
}

func lines(c stats.Category, n int) []stats.GameRecord {
	out := make([]stats.GameRecord, n)
	for i := range out {
		id := int64(1000 + i)
		out[i] = stats.GameRecord{
			Category: c,
			Identity: stats.Identity{PlayerID: &id},
			Line:     stats.NewLine(),
		}
	}
	return out
}

func TestRunValidation(t *testing.T) {
	Convey("Given requests outside the allowed bounds", t, func() {
		bad := []compile.Request{
			{Season: 2025, EndWeek: 0, SeasonType: compile.RegularSeason},
			{Season: 2025, EndWeek: 5, SeasonType: compile.Preseason},
			{Season: 2025, EndWeek: 19, SeasonType: compile.RegularSeason},
			{Season: 2025, EndWeek: 5, SeasonType: compile.Postseason},
			{Season: 2025, EndWeek: 1, SeasonType: compile.SeasonType(7)},
		}

		for _, req := range bad {
			req := req
			Convey(fmt.Sprintf("When end week %d of type %d is requested", req.EndWeek, req.SeasonType), func() {
				feed := &fakeFeed{}
				gateway := &fakeGateway{}
				compiler := compile.NewCompiler(feed, gateway)

				_, err := compiler.Run(context.Background(), req, nil)

				Convey("Then the run is rejected before any work happens", func() {
					So(compile.IsValidationError(err), ShouldBeTrue)
					So(gateway.resetCalls, ShouldEqual, 0)
					So(feed.calls, ShouldBeEmpty)
				})
			})
		}
	})
}

func TestRunHappyPath(t *testing.T) {
	Convey("Given two weeks of games", t, func() {
		feed := &fakeFeed{
			gamesByWeek: map[int][]string{1: {"401", "402"}, 2: {"403"}},
			records: map[string]map[stats.Category][]stats.GameRecord{
				"401": {
					stats.CategoryPassing: lines(stats.CategoryPassing, 2),
					stats.CategoryRushing: lines(stats.CategoryRushing, 1),
				},
				"402": {stats.CategoryReceiving: lines(stats.CategoryReceiving, 3)},
				"403": {
					stats.CategoryPassing:   lines(stats.CategoryPassing, 1),
					stats.CategoryDefensive: lines(stats.CategoryDefensive, 4),
				},
			},
		}
		gateway := &fakeGateway{}
		reporter := &recordingReporter{}
		compiler := compile.NewCompiler(feed, gateway)

		Convey("When the season is compiled", func() {
			summary, err := compiler.Run(context.Background(),
				compile.Request{Season: 2025, EndWeek: 2, SeasonType: compile.RegularSeason}, reporter)

			Convey("Then every game is merged and counted", func() {
				So(err, ShouldBeNil)
				So(summary.GamesProcessed, ShouldEqual, 3)
				So(summary.GamesFailed, ShouldEqual, 0)
				So(summary.Warnings, ShouldBeEmpty)
				So(summary.Touched[stats.CategoryPassing], ShouldEqual, 3)
				So(summary.Touched[stats.CategoryRushing], ShouldEqual, 1)
				So(summary.Touched[stats.CategoryReceiving], ShouldEqual, 3)
				So(summary.Touched[stats.CategoryDefensive], ShouldEqual, 4)
			})

			Convey("Then the tables are wiped exactly once, before any merge", func() {
				So(gateway.resetCalls, ShouldEqual, 1)
				So(gateway.order[0], ShouldEqual, "reset")
			})

			Convey("Then the reporter sees the run in order", func() {
				So(reporter.events, ShouldResemble, []string{
					"start", "week:1(2)", "game:401", "game:402", "week:2(1)", "game:403", "complete",
				})
			})
		})
	})
}

func TestRunGameFailure(t *testing.T) {
	Convey("Given a game whose fetch fails", t, func() {
		feed := &fakeFeed{
			gamesByWeek: map[int][]string{1: {"401", "402"}, 2: {"403"}},
			records: map[string]map[stats.Category][]stats.GameRecord{
				"401": {stats.CategoryPassing: lines(stats.CategoryPassing, 2)},
				"403": {stats.CategoryRushing: lines(stats.CategoryRushing, 1)},
			},
			recordsErr: map[string]error{"402": errors.New("summary fetch timed out")},
		}
		gateway := &fakeGateway{}
		reporter := &recordingReporter{}
		compiler := compile.NewCompiler(feed, gateway)

		Convey("When the season is compiled", func() {
			summary, err := compiler.Run(context.Background(),
				compile.Request{Season: 2025, EndWeek: 2, SeasonType: compile.RegularSeason}, reporter)

			Convey("Then the failure becomes a warning and the run continues", func() {
				So(err, ShouldBeNil)
				So(summary.GamesProcessed, ShouldEqual, 2)
				So(summary.GamesFailed, ShouldEqual, 1)
				So(summary.Warnings, ShouldHaveLength, 1)
				So(summary.Warnings[0].Week, ShouldEqual, 1)
				So(summary.Warnings[0].GameID, ShouldEqual, "402")
				So(summary.Warnings[0].Err, ShouldContainSubstring, "timed out")
				So(reporter.events, ShouldContain, "failed:402")
				So(reporter.events[len(reporter.events)-1], ShouldEqual, "complete")
			})
		})
	})
}

func TestRunWeekFailure(t *testing.T) {
	Convey("Given a week whose schedule discovery fails", t, func() {
		feed := &fakeFeed{
			gamesByWeek: map[int][]string{2: {"403"}},
			weekErr:     map[int]error{1: errors.New("schedule page blocked")},
			records: map[string]map[stats.Category][]stats.GameRecord{
				"403": {stats.CategoryFumbles: lines(stats.CategoryFumbles, 2)},
			},
		}
		gateway := &fakeGateway{}
		reporter := &recordingReporter{}
		compiler := compile.NewCompiler(feed, gateway)

		Convey("When the season is compiled", func() {
			summary, err := compiler.Run(context.Background(),
				compile.Request{Season: 2025, EndWeek: 2, SeasonType: compile.RegularSeason}, reporter)

			Convey("Then the week is skipped with a warning and later weeks still run", func() {
				So(err, ShouldBeNil)
				So(summary.Warnings, ShouldHaveLength, 1)
				So(summary.Warnings[0].Week, ShouldEqual, 1)
				So(summary.Warnings[0].GameID, ShouldEqual, "")
				So(summary.GamesProcessed, ShouldEqual, 1)
				So(summary.Touched[stats.CategoryFumbles], ShouldEqual, 2)
				So(reporter.events[len(reporter.events)-1], ShouldEqual, "complete")
			})
		})
	})
}

func TestRunPersistenceAbort(t *testing.T) {
	Convey("Given a gateway whose rushing merge fails", t, func() {
		feed := &fakeFeed{
			gamesByWeek: map[int][]string{1: {"401"}, 2: {"403"}},
			records: map[string]map[stats.Category][]stats.GameRecord{
				"401": {
					stats.CategoryPassing: lines(stats.CategoryPassing, 2),
					stats.CategoryRushing: lines(stats.CategoryRushing, 1),
				},
			},
		}
		gateway := &fakeGateway{
			mergeErr: map[stats.Category]error{stats.CategoryRushing: errors.New("connection reset")},
		}
		reporter := &recordingReporter{}
		compiler := compile.NewCompiler(feed, gateway)

		Convey("When the season is compiled", func() {
			summary, err := compiler.Run(context.Background(),
				compile.Request{Season: 2025, EndWeek: 2, SeasonType: compile.RegularSeason}, reporter)

			Convey("Then the run aborts and keeps the partial counts", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "rushing")
				So(err.Error(), ShouldContainSubstring, "401")
				So(summary.GamesProcessed, ShouldEqual, 0)
				So(summary.GamesFailed, ShouldEqual, 1)
				So(summary.Touched[stats.CategoryPassing], ShouldEqual, 2)
				So(reporter.events[len(reporter.events)-1], ShouldEqual, "aborted")
				So(reporter.events, ShouldNotContain, "complete")
			})

			Convey("Then no later week is fetched", func() {
				So(feed.calls, ShouldNotContain, "week:2")
			})
		})
	})
}

func TestRunResetFailure(t *testing.T) {
	Convey("Given a gateway whose reset fails", t, func() {
		feed := &fakeFeed{}
		gateway := &fakeGateway{resetErr: errors.New("permission denied")}
		reporter := &recordingReporter{}
		compiler := compile.NewCompiler(feed, gateway)

		Convey("When the season is compiled", func() {
			_, err := compiler.Run(context.Background(),
				compile.Request{Season: 2025, EndWeek: 1, SeasonType: compile.RegularSeason}, reporter)

			Convey("Then the run aborts before touching the feed", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "resetting aggregates")
				So(feed.calls, ShouldBeEmpty)
				So(reporter.events[len(reporter.events)-1], ShouldEqual, "aborted")
			})
		})
	})
}

type cancelingFeed struct {
	fakeFeed
	cancel context.CancelFunc
	week   int
}

func (f *cancelingFeed) GameIDs(ctx context.Context, season, week, seasonType int) ([]string, error) {
	if week == f.week {
		f.cancel()
		return nil, ctx.Err()
	}
	return f.fakeFeed.GameIDs(ctx, season, week, seasonType)
}

func TestRunCancellation(t *testing.T) {
	Convey("Given a context canceled before the run starts", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		gateway := &fakeGateway{}
		compiler := compile.NewCompiler(&fakeFeed{}, gateway)

		Convey("When the season is compiled", func() {
			_, err := compiler.Run(ctx,
				compile.Request{Season: 2025, EndWeek: 1, SeasonType: compile.RegularSeason}, nil)

			Convey("Then it aborts without wiping anything", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(gateway.resetCalls, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a context canceled during week discovery", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		feed := &cancelingFeed{
			fakeFeed: fakeFeed{
				gamesByWeek: map[int][]string{1: {"401"}},
				records: map[string]map[stats.Category][]stats.GameRecord{
					"401": {stats.CategoryPassing: lines(stats.CategoryPassing, 1)},
				},
			},
			cancel: cancel,
			week:   2,
		}
		gateway := &fakeGateway{}
		reporter := &recordingReporter{}
		compiler := compile.NewCompiler(feed, gateway)

		Convey("When the season is compiled", func() {
			summary, err := compiler.Run(ctx,
				compile.Request{Season: 2025, EndWeek: 3, SeasonType: compile.RegularSeason}, reporter)

			Convey("Then cancellation aborts instead of degrading to a warning", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(summary.Warnings, ShouldBeEmpty)
				So(summary.GamesProcessed, ShouldEqual, 1)
				So(reporter.events[len(reporter.events)-1], ShouldEqual, "aborted")
			})
		})
	})
}
