package metrics

import (
	"time"

	"github.com/calloway/gridfax/internal/compile"
	"github.com/calloway/gridfax/internal/stats"
)

// Reporter translates compilation progress callbacks into metric updates.
// Runs are single-flight, so the start timestamp needs no locking.
type Reporter struct {
	started time.Time
}

var _ compile.Reporter = (*Reporter)(nil)

// NewReporter creates a metrics-backed progress reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

func (r *Reporter) OnRunStart(req compile.Request) {
	r.started = time.Now()
	SetRunActive(true)
}

func (r *Reporter) OnWeekStart(week, endWeek int, gameIDs []string) {}

func (r *Reporter) OnGameProcessed(week int, gameID string, touched map[stats.Category]int) {
	RecordGameProcessed()
	for category, n := range touched {
		RecordRowsTouched(string(category), n)
	}
}

func (r *Reporter) OnGameFailed(week int, gameID string, err error) {
	if gameID == "" {
		// Week-level discovery failure, no game was skipped yet.
		return
	}
	RecordGameFailed()
}

func (r *Reporter) OnRunComplete(summary compile.Summary) {
	SetRunActive(false)
	RecordRunFinished("completed")
	if !r.started.IsZero() {
		RecordRunDuration(time.Since(r.started).Seconds())
	}
}

func (r *Reporter) OnRunAborted(summary compile.Summary, err error) {
	SetRunActive(false)
	RecordRunFinished("aborted")
	if !r.started.IsZero() {
		RecordRunDuration(time.Since(r.started).Seconds())
	}
}
