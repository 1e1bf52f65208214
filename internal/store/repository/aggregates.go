package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/calloway/gridfax/internal/stats"
	"github.com/calloway/gridfax/internal/store"
)

// AggregateRepository is the persistence gateway for the six per-player
// season aggregate tables. One implementation serves every category:
// table names, column lists and merge behavior all derive from the
// category schema, so a layout change never touches SQL code.
type AggregateRepository struct {
	db *store.Database
}

// NewAggregateRepository constructs the repository over an explicit
// database handle.
func NewAggregateRepository(db *store.Database) *AggregateRepository {
	return &AggregateRepository{db: db}
}

// identityColumns precede the schema columns in every aggregate table.
var identityColumns = []string{"team_id", "team_name", "player_id", "player_name", "player_headshot_url"}

func columnList(c stats.Category) []string {
	cols := append([]string{}, identityColumns...)
	for _, f := range stats.Schema(c) {
		cols = append(cols, f.Column)
	}
	return cols
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ",")
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Get returns the aggregate row for one player within a category, or
// nil when the player has no totals there yet.
func (r *AggregateRepository) Get(ctx context.Context, c stats.Category, playerID int64) (*store.SeasonAggregate, error) {
	agg, err := r.getRow(ctx, r.db.DB(), c, playerID, false)
	if err != nil {
		return nil, fmt.Errorf("get %s aggregate for player %d: %w", c, playerID, err)
	}
	return agg, nil
}

func (r *AggregateRepository) getRow(ctx context.Context, q rowQuerier, c stats.Category, playerID int64, lock bool) (*store.SeasonAggregate, error) {
	query := fmt.Sprintf(
		"SELECT id, %s, created_at, updated_at FROM %s WHERE player_id = $1",
		strings.Join(columnList(c), ", "), c.Table(),
	)
	if lock {
		query += " FOR UPDATE"
	}

	agg, err := scanAggregate(c, q.QueryRowContext(ctx, query, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// MergeGame applies one game's records for a category as a single
// transaction: each player's row is read under FOR UPDATE, merged by
// the category rules and written back, so either the whole batch
// commits or the prior state remains. Records without a player id are
// skipped. Returns the number of rows touched (created plus updated).
func (r *AggregateRepository) MergeGame(ctx context.Context, c stats.Category, records []stats.GameRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin %s merge batch: %w", c, err)
	}
	defer tx.Rollback()

	touched := 0
	for _, rec := range records {
		if rec.Identity.PlayerID == nil {
			continue
		}
		playerID := *rec.Identity.PlayerID

		existing, err := r.getRow(ctx, tx, c, playerID, true)
		if err != nil {
			return 0, fmt.Errorf("read %s aggregate for player %d: %w", c, playerID, err)
		}

		var prior *stats.Snapshot
		if existing != nil {
			snap := existing.Snapshot()
			prior = &snap
		}
		merged := stats.Apply(prior, rec)

		if existing == nil {
			err = r.insert(ctx, tx, c, playerID, merged)
		} else {
			err = r.update(ctx, tx, c, playerID, merged)
		}
		if err != nil {
			return 0, fmt.Errorf("write %s aggregate for player %d: %w", c, playerID, err)
		}
		touched++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s merge batch: %w", c, err)
	}
	return touched, nil
}

func (r *AggregateRepository) insert(ctx context.Context, tx *sql.Tx, c stats.Category, playerID int64, snap stats.Snapshot) error {
	cols := columnList(c)
	query := fmt.Sprintf(
		"INSERT INTO %s (%s, created_at, updated_at) VALUES (%s, NOW(), NOW())",
		c.Table(), strings.Join(cols, ", "), placeholders(len(cols)),
	)

	args := []interface{}{
		store.NullInt(snap.Identity.TeamID),
		store.NullStr(snap.Identity.TeamName),
		playerID,
		store.NullStr(snap.Identity.PlayerName),
		store.NullStr(snap.Identity.HeadshotURL),
	}
	args = append(args, lineArgs(c, snap.Line)...)

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func (r *AggregateRepository) update(ctx context.Context, tx *sql.Tx, c stats.Category, playerID int64, snap stats.Snapshot) error {
	sets := []string{"team_id = $1", "team_name = $2", "player_name = $3", "player_headshot_url = $4"}
	args := []interface{}{
		store.NullInt(snap.Identity.TeamID),
		store.NullStr(snap.Identity.TeamName),
		store.NullStr(snap.Identity.PlayerName),
		store.NullStr(snap.Identity.HeadshotURL),
	}

	for _, f := range stats.Schema(c) {
		args = append(args, lineArg(f, snap.Line))
		sets = append(sets, fmt.Sprintf("%s = $%d", f.Column, len(args)))
	}

	args = append(args, playerID)
	query := fmt.Sprintf(
		"UPDATE %s SET %s, updated_at = NOW() WHERE player_id = $%d",
		c.Table(), strings.Join(sets, ", "), len(args),
	)

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func lineArgs(c stats.Category, line stats.Line) []interface{} {
	fields := stats.Schema(c)
	args := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		args = append(args, lineArg(f, line))
	}
	return args
}

func lineArg(f stats.Field, line stats.Line) interface{} {
	if f.Kind == stats.KindFraction {
		return store.NullStr(line.Fraction)
	}
	return store.NullInt(line.Value(f.Column))
}

// ResetCategory wipes one category's aggregate table.
func (r *AggregateRepository) ResetCategory(ctx context.Context, c stats.Category) error {
	if _, err := r.db.DB().ExecContext(ctx, "DELETE FROM "+c.Table()); err != nil {
		return fmt.Errorf("reset %s aggregates: %w", c, err)
	}
	return nil
}

// ResetAll wipes every category table in one transaction. Compilation
// runs call this before ingesting week 1; skipping it would double
// every previously ingested total.
func (r *AggregateRepository) ResetAll(ctx context.Context) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, c := range stats.Categories() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+c.Table()); err != nil {
			return fmt.Errorf("reset %s aggregates: %w", c, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// TopN returns the category leaderboard ordered by its rank column,
// best first, ties broken by player name.
func (r *AggregateRepository) TopN(ctx context.Context, c stats.Category, n int) ([]*store.SeasonAggregate, error) {
	query := fmt.Sprintf(
		"SELECT id, %s, created_at, updated_at FROM %s ORDER BY %s DESC NULLS LAST, player_name ASC LIMIT $1",
		strings.Join(columnList(c), ", "), c.Table(), c.RankColumn(),
	)

	rows, err := r.db.DB().QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query %s leaderboard: %w", c, err)
	}
	defer rows.Close()

	var out []*store.SeasonAggregate
	for rows.Next() {
		agg, err := scanAggregate(c, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s leaderboard row: %w", c, err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func scanAggregate(c stats.Category, scanner interface {
	Scan(dest ...interface{}) error
}) (*store.SeasonAggregate, error) {
	agg := &store.SeasonAggregate{
		Category: c,
		Values:   make(map[string]sql.NullInt64),
	}

	dest := []interface{}{&agg.ID, &agg.TeamID, &agg.TeamName, &agg.PlayerID, &agg.PlayerName, &agg.HeadshotURL}

	fields := stats.Schema(c)
	nums := make([]sql.NullInt64, len(fields))
	for i, f := range fields {
		if f.Kind == stats.KindFraction {
			dest = append(dest, &agg.Fraction)
			continue
		}
		dest = append(dest, &nums[i])
	}
	dest = append(dest, &agg.CreatedAt, &agg.UpdatedAt)

	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	for i, f := range fields {
		if f.Kind == stats.KindFraction {
			continue
		}
		agg.Values[f.Column] = nums[i]
	}
	return agg, nil
}
