package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/calloway/gridfax/internal/metrics"
	"github.com/calloway/gridfax/internal/stats"
	"github.com/calloway/gridfax/internal/store"
)

// DefaultSizes is the number of rows each category leaderboard carries.
var DefaultSizes = map[stats.Category]int{
	stats.CategoryPassing:       100,
	stats.CategoryRushing:       300,
	stats.CategoryReceiving:     400,
	stats.CategoryFumbles:       300,
	stats.CategoryDefensive:     1200,
	stats.CategoryInterceptions: 150,
}

// AggregateReader is the slice of the store the service reads from.
type AggregateReader interface {
	TopN(ctx context.Context, c stats.Category, n int) ([]*store.SeasonAggregate, error)
	Get(ctx context.Context, c stats.Category, playerID int64) (*store.SeasonAggregate, error)
}

// BoardCache caches rendered leaderboards. A nil BoardCache disables
// caching.
type BoardCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Leaderboard is one category's ranked aggregate rows.
type Leaderboard struct {
	Category stats.Category           `json:"category"`
	Limit    int                      `json:"limit"`
	Players  []*store.SeasonAggregate `json:"players"`
}

// LeaderboardService serves ranked season aggregates, caching each
// category's full board and slicing smaller limits out of it.
type LeaderboardService struct {
	aggregates AggregateReader
	cache      BoardCache
	ttl        time.Duration
}

// NewLeaderboardService constructs the service. cache may be nil.
func NewLeaderboardService(aggregates AggregateReader, cache BoardCache, ttl time.Duration) *LeaderboardService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LeaderboardService{
		aggregates: aggregates,
		cache:      cache,
		ttl:        ttl,
	}
}

// Top returns one category's leaderboard. Limits outside 1..default are
// clamped to the category's default size.
func (s *LeaderboardService) Top(ctx context.Context, c stats.Category, limit int) (*Leaderboard, error) {
	size := DefaultSizes[c]
	if limit <= 0 || limit > size {
		limit = size
	}

	board, err := s.fullBoard(ctx, c)
	if err != nil {
		return nil, err
	}

	if limit < len(board.Players) {
		board.Players = board.Players[:limit]
	}
	board.Limit = limit
	return board, nil
}

// All returns every category at its default size, keyed by category name.
func (s *LeaderboardService) All(ctx context.Context) (map[string]*Leaderboard, error) {
	out := make(map[string]*Leaderboard, len(stats.Categories()))
	for _, c := range stats.Categories() {
		board, err := s.Top(ctx, c, 0)
		if err != nil {
			return nil, err
		}
		out[c.String()] = board
	}
	return out, nil
}

// PlayerStats returns the aggregates one player has rows for, keyed by
// category name. Categories without a row are omitted.
func (s *LeaderboardService) PlayerStats(ctx context.Context, playerID int64) (map[string]*store.SeasonAggregate, error) {
	out := make(map[string]*store.SeasonAggregate)
	for _, c := range stats.Categories() {
		row, err := s.aggregates.Get(ctx, c, playerID)
		if err != nil {
			return nil, fmt.Errorf("fetching %s stats for player %d: %w", c, playerID, err)
		}
		if row != nil {
			out[c.String()] = row
		}
	}
	return out, nil
}

// InvalidateLeaderboards drops every cached board. Compilation runs call
// this after rewriting the aggregate tables.
func (s *LeaderboardService) InvalidateLeaderboards(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	keys := make([]string, 0, len(stats.Categories()))
	for _, c := range stats.Categories() {
		keys = append(keys, boardKey(c))
	}
	return s.cache.Delete(ctx, keys...)
}

// fullBoard loads one category at its default size, through the cache
// when available. Cache failures degrade to direct reads.
func (s *LeaderboardService) fullBoard(ctx context.Context, c stats.Category) (*Leaderboard, error) {
	key := boardKey(c)

	if s.cache != nil {
		var cached Leaderboard
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.Printf("[leaderboard] ⚠ Cache read failed for %s: %v", key, err)
		} else if hit {
			metrics.RecordCacheHit()
			return &cached, nil
		}
	}
	metrics.RecordCacheMiss()

	size := DefaultSizes[c]
	rows, err := s.aggregates.TopN(ctx, c, size)
	if err != nil {
		return nil, fmt.Errorf("fetching %s leaderboard: %w", c, err)
	}
	board := &Leaderboard{Category: c, Limit: size, Players: rows}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, board, s.ttl); err != nil {
			log.Printf("[leaderboard] ⚠ Cache write failed for %s: %v", key, err)
		}
	}
	return board, nil
}

func boardKey(c stats.Category) string {
	return fmt.Sprintf("leaderboard:%s:%d", c, DefaultSizes[c])
}
