package events

import (
	"github.com/calloway/gridfax/internal/compile"
	"github.com/calloway/gridfax/internal/stats"
)

// Envelope is the wire form of one progress event, shared by the websocket
// feed and the Redis stream.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Sink receives envelopes. Implementations must not block the caller.
type Sink interface {
	Send(e Envelope)
}

// Broadcaster translates compilation progress callbacks into envelopes and
// hands each one to every sink.
type Broadcaster struct {
	sinks []Sink
}

// NewBroadcaster constructs a Broadcaster over the non-nil sinks.
func NewBroadcaster(sinks ...Sink) *Broadcaster {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Broadcaster{sinks: kept}
}

var _ compile.Reporter = (*Broadcaster)(nil)

func (b *Broadcaster) OnRunStart(req compile.Request) {
	b.send("run_started", map[string]interface{}{
		"season":      req.Season,
		"end_week":    req.EndWeek,
		"season_type": int(req.SeasonType),
	})
}

func (b *Broadcaster) OnWeekStart(week, endWeek int, gameIDs []string) {
	b.send("week_started", map[string]interface{}{
		"week":     week,
		"end_week": endWeek,
		"games":    len(gameIDs),
	})
}

func (b *Broadcaster) OnGameProcessed(week int, gameID string, touched map[stats.Category]int) {
	b.send("game_processed", map[string]interface{}{
		"week":    week,
		"game_id": gameID,
		"touched": categoryCounts(touched),
	})
}

func (b *Broadcaster) OnGameFailed(week int, gameID string, err error) {
	data := map[string]interface{}{
		"week":  week,
		"error": err.Error(),
	}
	if gameID != "" {
		data["game_id"] = gameID
	}
	b.send("game_failed", data)
}

func (b *Broadcaster) OnRunComplete(summary compile.Summary) {
	b.send("run_completed", summaryData(summary))
}

func (b *Broadcaster) OnRunAborted(summary compile.Summary, err error) {
	data := summaryData(summary)
	data["error"] = err.Error()
	b.send("run_aborted", data)
}

func (b *Broadcaster) send(eventType string, data interface{}) {
	e := Envelope{Type: eventType, Data: data}
	for _, s := range b.sinks {
		s.Send(e)
	}
}

func summaryData(s compile.Summary) map[string]interface{} {
	return map[string]interface{}{
		"games_processed": s.GamesProcessed,
		"games_failed":    s.GamesFailed,
		"warnings":        len(s.Warnings),
		"touched":         categoryCounts(s.Touched),
	}
}

func categoryCounts(touched map[stats.Category]int) map[string]int {
	out := make(map[string]int, len(touched))
	for c, n := range touched {
		out[c.String()] = n
	}
	return out
}
