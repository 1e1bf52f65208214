package compile

import (
	"github.com/calloway/gridfax/internal/stats"
)

// Reporter receives progress callbacks during a run. Implementations must
// return quickly; slow sinks should buffer on their own side. A week-level
// discovery failure arrives as OnGameFailed with an empty game id.
type Reporter interface {
	OnRunStart(req Request)
	OnWeekStart(week, endWeek int, gameIDs []string)
	OnGameProcessed(week int, gameID string, touched map[stats.Category]int)
	OnGameFailed(week int, gameID string, err error)
	OnRunComplete(summary Summary)
	OnRunAborted(summary Summary, err error)
}

// MultiReporter fans callbacks out to every non-nil reporter, in order.
func MultiReporter(reporters ...Reporter) Reporter {
	kept := make(multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			kept = append(kept, r)
		}
	}
	return kept
}

type multi []Reporter

func (m multi) OnRunStart(req Request) {
	for _, r := range m {
		r.OnRunStart(req)
	}
}

func (m multi) OnWeekStart(week, endWeek int, gameIDs []string) {
	for _, r := range m {
		r.OnWeekStart(week, endWeek, gameIDs)
	}
}

func (m multi) OnGameProcessed(week int, gameID string, touched map[stats.Category]int) {
	for _, r := range m {
		r.OnGameProcessed(week, gameID, touched)
	}
}

func (m multi) OnGameFailed(week int, gameID string, err error) {
	for _, r := range m {
		r.OnGameFailed(week, gameID, err)
	}
}

func (m multi) OnRunComplete(summary Summary) {
	for _, r := range m {
		r.OnRunComplete(summary)
	}
}

func (m multi) OnRunAborted(summary Summary, err error) {
	for _, r := range m {
		r.OnRunAborted(summary, err)
	}
}
