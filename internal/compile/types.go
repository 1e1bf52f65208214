package compile

import (
	"errors"
	"fmt"
	"time"

	"github.com/calloway/gridfax/internal/stats"
)

// SeasonType selects which slice of an NFL season a run covers.
type SeasonType int

const (
	Preseason     SeasonType = 1
	RegularSeason SeasonType = 2
	Postseason    SeasonType = 3
)

// Valid reports whether the season type is one of the three known values.
func (t SeasonType) Valid() bool {
	return t == Preseason || t == RegularSeason || t == Postseason
}

// MaxWeeks returns the number of weeks the season type can hold.
func (t SeasonType) MaxWeeks() int {
	switch t {
	case Preseason, Postseason:
		return 4
	case RegularSeason:
		return 18
	default:
		return 0
	}
}

func (t SeasonType) String() string {
	switch t {
	case Preseason:
		return "Preseason"
	case RegularSeason:
		return "Regular Season"
	case Postseason:
		return "Postseason"
	default:
		return fmt.Sprintf("SeasonType(%d)", int(t))
	}
}

// Request describes one season compilation.
type Request struct {
	Season     int        `json:"season"`
	EndWeek    int        `json:"end_week"`
	SeasonType SeasonType `json:"season_type"`
}

// Validate checks the request bounds. It runs before any I/O.
func (r Request) Validate() error {
	if r.EndWeek < 1 {
		return &ValidationError{Field: "end_week", Reason: "must be an integer >= 1"}
	}
	if !r.SeasonType.Valid() {
		return &ValidationError{
			Field:  "season_type",
			Reason: "must be 1 (preseason), 2 (regular season), or 3 (postseason)",
		}
	}
	if max := r.SeasonType.MaxWeeks(); r.EndWeek > max {
		return &ValidationError{
			Field:  "end_week",
			Reason: fmt.Sprintf("%s only has weeks 1-%d", r.SeasonType, max),
		}
	}
	return nil
}

// ValidationError reports a request rejected before the run started.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a pre-flight validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Warning records a week or game that was skipped without stopping the run.
// Week-level warnings carry no game id.
type Warning struct {
	Week   int    `json:"week"`
	GameID string `json:"game_id,omitempty"`
	Err    string `json:"error"`
}

// Summary reports the outcome of one compilation run. Touched counts the
// aggregate rows written per category across all merged games.
type Summary struct {
	Request        Request
	Touched        map[stats.Category]int
	GamesProcessed int
	GamesFailed    int
	Warnings       []Warning
	StartedAt      time.Time
	CompletedAt    time.Time
}
