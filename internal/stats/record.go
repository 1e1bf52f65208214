package stats

// Identity carries the display fields attached to every category record.
// Every field is optional in the source payload. Merging overwrites the
// stored identity wholesale with the most recent game's values, so a
// traded player shows their current team rather than a blend.
type Identity struct {
	TeamID      *int64
	TeamName    *string
	PlayerID    *int64
	PlayerName  *string
	HeadshotURL *string
}

// Line holds the numeric portion of a category row: integer columns
// keyed by schema column name, plus the composite completions/attempts
// token for passing. A nil value means the source did not provide the
// stat for this row.
type Line struct {
	Values   map[string]*int64
	Fraction *string
}

// NewLine returns an empty line ready for population.
func NewLine() Line {
	return Line{Values: make(map[string]*int64)}
}

// Value returns the named column value, nil when absent.
func (l Line) Value(column string) *int64 { return l.Values[column] }

// GameRecord is one athlete's line in one category for a single game.
// It is produced once at the extraction boundary and consumed once by
// the merge engine; records without a player id never reach storage.
type GameRecord struct {
	Category Category
	Identity Identity
	Line
}

// Snapshot is the stored state of one player within a category: the
// cumulative season line plus the latest identity snapshot.
type Snapshot struct {
	Identity Identity
	Line     Line
}
