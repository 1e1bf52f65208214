package stats

// FieldKind selects the merge rule applied to one schema column.
type FieldKind int

const (
	// KindCount accumulates by integer addition, nil treated as zero.
	KindCount FieldKind = iota
	// KindLongest keeps a running maximum, nil excluded from the max.
	KindLongest
	// KindFraction is the composite completions/attempts token, merged
	// by summing the two sides independently.
	KindFraction
)

// Field maps one position of the source's stat array onto a named
// column with a merge rule.
type Field struct {
	Column string
	Index  int
	Kind   FieldKind
}

// The source delivers stats as positional arrays. These tables are the
// only place the array layout is encoded; extraction, merging and the
// SQL column lists all read from them, so a layout change touches
// nothing but the schema. Index gaps are positions the source fills
// with derived per-game rates, which are intentionally discarded.
var schemas = map[Category][]Field{
	CategoryPassing: {
		{Column: "completions_attempts", Index: 0, Kind: KindFraction},
		{Column: "passing_yards", Index: 1, Kind: KindCount},
		{Column: "passing_touchdowns", Index: 3, Kind: KindCount},
		{Column: "interceptions", Index: 4, Kind: KindCount},
		{Column: "sacks", Index: 5, Kind: KindCount},
	},
	CategoryRushing: {
		{Column: "rushing_attempts", Index: 0, Kind: KindCount},
		{Column: "rushing_yards", Index: 1, Kind: KindCount},
		{Column: "rushing_touchdowns", Index: 3, Kind: KindCount},
		{Column: "longest_run", Index: 4, Kind: KindLongest},
	},
	CategoryReceiving: {
		{Column: "receptions", Index: 0, Kind: KindCount},
		{Column: "receiving_yards", Index: 1, Kind: KindCount},
		{Column: "receiving_touchdowns", Index: 3, Kind: KindCount},
		{Column: "longest_reception", Index: 4, Kind: KindLongest},
		{Column: "targets", Index: 5, Kind: KindCount},
	},
	CategoryFumbles: {
		{Column: "fumbles", Index: 0, Kind: KindCount},
		{Column: "fumbles_lost", Index: 1, Kind: KindCount},
		{Column: "fumbles_recovered", Index: 2, Kind: KindCount},
	},
	CategoryDefensive: {
		{Column: "total_tackles", Index: 0, Kind: KindCount},
		{Column: "solo_tackles", Index: 1, Kind: KindCount},
		{Column: "sacks", Index: 2, Kind: KindCount},
		{Column: "tackles_for_loss", Index: 3, Kind: KindCount},
		{Column: "passes_defended", Index: 4, Kind: KindCount},
		{Column: "qb_hits", Index: 5, Kind: KindCount},
		{Column: "defensive_touchdowns", Index: 6, Kind: KindCount},
	},
	CategoryInterceptions: {
		{Column: "interceptions", Index: 0, Kind: KindCount},
		{Column: "interception_yards", Index: 1, Kind: KindCount},
		{Column: "interception_touchdowns", Index: 2, Kind: KindCount},
	},
}

// Schema returns the ordered field layout for a category.
func Schema(c Category) []Field { return schemas[c] }

var rankColumns = map[Category]string{
	CategoryPassing:       "passing_yards",
	CategoryRushing:       "rushing_yards",
	CategoryReceiving:     "receiving_yards",
	CategoryFumbles:       "fumbles",
	CategoryDefensive:     "total_tackles",
	CategoryInterceptions: "interceptions",
}

// RankColumn returns the column the category's leaderboard orders by.
func (c Category) RankColumn() string { return rankColumns[c] }
