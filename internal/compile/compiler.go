package compile

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/calloway/gridfax/internal/stats"
)

// SourceFeed supplies schedule discovery and per-game stat lines.
type SourceFeed interface {
	GameIDs(ctx context.Context, season, week, seasonType int) ([]string, error)
	GameRecords(ctx context.Context, gameID string) (map[stats.Category][]stats.GameRecord, error)
}

// Gateway is the slice of the aggregate store the compiler writes through.
type Gateway interface {
	ResetAll(ctx context.Context) error
	MergeGame(ctx context.Context, c stats.Category, records []stats.GameRecord) (int, error)
}

// Compiler executes season compilation runs: wipe the aggregate tables,
// then walk every week from 1 to the requested end week merging each
// game's box score. Games run strictly in sequence.
type Compiler struct {
	feed  SourceFeed
	store Gateway
}

// NewCompiler constructs a Compiler.
func NewCompiler(feed SourceFeed, store Gateway) *Compiler {
	return &Compiler{feed: feed, store: store}
}

// Run executes one compilation. Schedule and game fetch failures become
// warnings and the run keeps going; persistence failures and context
// cancellation abort it. The returned summary carries whatever was merged
// before the error.
func (c *Compiler) Run(ctx context.Context, req Request, reporter Reporter) (Summary, error) {
	summary := Summary{
		Request:   req,
		Touched:   make(map[stats.Category]int, len(stats.Categories())),
		StartedAt: time.Now().UTC(),
	}

	if err := req.Validate(); err != nil {
		summary.CompletedAt = time.Now().UTC()
		return summary, err
	}

	if reporter != nil {
		reporter.OnRunStart(req)
	}
	log.Printf("[compile] Season %d, weeks 1-%d, %s", req.Season, req.EndWeek, req.SeasonType)

	if err := ctx.Err(); err != nil {
		return c.abort(summary, reporter, err)
	}

	// Every run rebuilds from scratch so reruns cannot double count.
	if err := c.store.ResetAll(ctx); err != nil {
		return c.abort(summary, reporter, fmt.Errorf("resetting aggregates: %w", err))
	}

	for week := 1; week <= req.EndWeek; week++ {
		if err := ctx.Err(); err != nil {
			return c.abort(summary, reporter, err)
		}

		gameIDs, err := c.feed.GameIDs(ctx, req.Season, week, int(req.SeasonType))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.abort(summary, reporter, ctxErr)
			}
			summary.Warnings = append(summary.Warnings, Warning{Week: week, Err: err.Error()})
			if reporter != nil {
				reporter.OnGameFailed(week, "", err)
			}
			log.Printf("[compile] ⚠ Week %d discovery failed: %v", week, err)
			continue
		}

		if reporter != nil {
			reporter.OnWeekStart(week, req.EndWeek, gameIDs)
		}
		log.Printf("[compile] Week %d/%d: %d games", week, req.EndWeek, len(gameIDs))

		for _, gameID := range gameIDs {
			if err := ctx.Err(); err != nil {
				return c.abort(summary, reporter, err)
			}
			if err := c.processGame(ctx, week, gameID, &summary, reporter); err != nil {
				return c.abort(summary, reporter, err)
			}
		}
	}

	summary.CompletedAt = time.Now().UTC()
	if reporter != nil {
		reporter.OnRunComplete(summary)
	}
	log.Printf("[compile] ✓ Done: %d games merged, %d failed, %d warnings",
		summary.GamesProcessed, summary.GamesFailed, len(summary.Warnings))
	return summary, nil
}

// processGame fetches and merges one game. A fetch failure is recorded as
// a warning and nil is returned; a merge failure is returned to abort the
// run.
func (c *Compiler) processGame(ctx context.Context, week int, gameID string, summary *Summary, reporter Reporter) error {
	records, err := c.feed.GameRecords(ctx, gameID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		summary.GamesFailed++
		summary.Warnings = append(summary.Warnings, Warning{Week: week, GameID: gameID, Err: err.Error()})
		if reporter != nil {
			reporter.OnGameFailed(week, gameID, err)
		}
		log.Printf("[compile] ⚠ Game %s (week %d) failed: %v", gameID, week, err)
		return nil
	}

	touched := make(map[stats.Category]int, len(records))
	for _, category := range stats.Categories() {
		recs := records[category]
		if len(recs) == 0 {
			continue
		}
		n, err := c.store.MergeGame(ctx, category, recs)
		if err != nil {
			summary.GamesFailed++
			return fmt.Errorf("merging %s for game %s: %w", category, gameID, err)
		}
		touched[category] = n
		summary.Touched[category] += n
	}

	summary.GamesProcessed++
	if reporter != nil {
		reporter.OnGameProcessed(week, gameID, touched)
	}
	return nil
}

func (c *Compiler) abort(summary Summary, reporter Reporter, err error) (Summary, error) {
	summary.CompletedAt = time.Now().UTC()
	if reporter != nil {
		reporter.OnRunAborted(summary, err)
	}
	log.Printf("[compile] ❌ Run aborted: %v", err)
	return summary, err
}
