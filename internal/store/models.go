package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/calloway/gridfax/internal/stats"
)

// SeasonAggregate is one player's persisted cumulative line within a
// category, plus the latest identity snapshot. Numeric columns live in
// Values keyed by schema column name; the passing composite sits apart
// because it is a string.
type SeasonAggregate struct {
	ID          int64          `db:"id"`
	Category    stats.Category `db:"-"`
	TeamID      sql.NullInt64  `db:"team_id"`
	TeamName    sql.NullString `db:"team_name"`
	PlayerID    int64          `db:"player_id"`
	PlayerName  sql.NullString `db:"player_name"`
	HeadshotURL sql.NullString `db:"player_headshot_url"`
	Fraction    sql.NullString `db:"completions_attempts"`
	Values      map[string]sql.NullInt64
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// MarshalJSON flattens the aggregate so every schema column appears as a
// top-level key, the shape leaderboard responses use.
func (a *SeasonAggregate) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"category":            a.Category,
		"player_id":           a.PlayerID,
		"team_id":             IntPtr(a.TeamID),
		"team_name":           StrPtr(a.TeamName),
		"player_name":         StrPtr(a.PlayerName),
		"player_headshot_url": StrPtr(a.HeadshotURL),
		"updated_at":          a.UpdatedAt,
	}
	for _, f := range stats.Schema(a.Category) {
		if f.Kind == stats.KindFraction {
			out[f.Column] = StrPtr(a.Fraction)
			continue
		}
		out[f.Column] = IntPtr(a.Values[f.Column])
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a row from the flattened wire form MarshalJSON
// produces. Cached leaderboards round-trip through this.
func (a *SeasonAggregate) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var cat string
	if err := decodeField(raw, "category", &cat); err != nil {
		return err
	}
	a.Category = stats.Category(cat)

	if err := decodeField(raw, "player_id", &a.PlayerID); err != nil {
		return err
	}

	var teamID *int64
	if err := decodeField(raw, "team_id", &teamID); err != nil {
		return err
	}
	a.TeamID = NullInt(teamID)

	var teamName, playerName, headshot *string
	if err := decodeField(raw, "team_name", &teamName); err != nil {
		return err
	}
	if err := decodeField(raw, "player_name", &playerName); err != nil {
		return err
	}
	if err := decodeField(raw, "player_headshot_url", &headshot); err != nil {
		return err
	}
	a.TeamName = NullStr(teamName)
	a.PlayerName = NullStr(playerName)
	a.HeadshotURL = NullStr(headshot)

	if err := decodeField(raw, "updated_at", &a.UpdatedAt); err != nil {
		return err
	}

	a.Values = make(map[string]sql.NullInt64)
	for _, f := range stats.Schema(a.Category) {
		if f.Kind == stats.KindFraction {
			var frac *string
			if err := decodeField(raw, f.Column, &frac); err != nil {
				return err
			}
			a.Fraction = NullStr(frac)
			continue
		}
		var v *int64
		if err := decodeField(raw, f.Column, &v); err != nil {
			return err
		}
		a.Values[f.Column] = NullInt(v)
	}
	return nil
}

// decodeField unmarshals one optional key; absent keys leave dest alone.
func decodeField(raw map[string]json.RawMessage, key string, dest interface{}) error {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(msg, dest)
}

// Snapshot converts the stored row into the merge engine's shape.
func (a *SeasonAggregate) Snapshot() stats.Snapshot {
	line := stats.NewLine()
	for col, v := range a.Values {
		line.Values[col] = IntPtr(v)
	}
	line.Fraction = StrPtr(a.Fraction)

	pid := a.PlayerID
	return stats.Snapshot{
		Identity: stats.Identity{
			TeamID:      IntPtr(a.TeamID),
			TeamName:    StrPtr(a.TeamName),
			PlayerID:    &pid,
			PlayerName:  StrPtr(a.PlayerName),
			HeadshotURL: StrPtr(a.HeadshotURL),
		},
		Line: line,
	}
}

// RunStatus enumerates compile run lifecycle states.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
)

// RunWarning records one item a compilation run skipped. Week-level
// discovery failures carry an empty game id.
type RunWarning struct {
	Week   int    `json:"week"`
	GameID string `json:"game_id,omitempty"`
	Error  string `json:"error"`
}

// CompileRun models the database representation of one compilation run.
type CompileRun struct {
	RunID          string
	Season         int
	EndWeek        int
	SeasonType     int
	Status         RunStatus
	GamesProcessed int
	GamesFailed    int
	Touched        map[string]int64
	Warnings       []RunWarning
	LastError      sql.NullString
	StartedAt      time.Time
	CompletedAt    sql.NullTime
}

// MarshalJSON renders the run with plain nulls instead of sql.Null
// wrapper objects.
func (r *CompileRun) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"run_id":          r.RunID,
		"season":          r.Season,
		"end_week":        r.EndWeek,
		"season_type":     r.SeasonType,
		"status":          r.Status,
		"games_processed": r.GamesProcessed,
		"games_failed":    r.GamesFailed,
		"touched":         r.Touched,
		"warnings":        r.Warnings,
		"error":           StrPtr(r.LastError),
		"started_at":      r.StartedAt,
	}
	if r.CompletedAt.Valid {
		out["completed_at"] = r.CompletedAt.Time
	} else {
		out["completed_at"] = nil
	}
	return json.Marshal(out)
}

// Copy returns a copy safe to hand to API callers while the run mutates.
func (r *CompileRun) Copy() *CompileRun {
	if r == nil {
		return nil
	}
	cpy := *r
	cpy.Touched = make(map[string]int64, len(r.Touched))
	for k, v := range r.Touched {
		cpy.Touched[k] = v
	}
	cpy.Warnings = append([]RunWarning(nil), r.Warnings...)
	return &cpy
}

// NullInt wraps an optional int for a nullable column.
func NullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// NullStr wraps an optional string for a nullable column.
func NullStr(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// IntPtr unwraps a nullable column to an optional int.
func IntPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// StrPtr unwraps a nullable column to an optional string.
func StrPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
