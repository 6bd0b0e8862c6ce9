package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StoreOptions configures the Redis result store.
type StoreOptions struct {
	TTL            time.Duration
	RecentLimit    int
	RedisKeyPrefix string
}

// Store keeps recently finished games in Redis: one JSON document per room
// code plus a sorted index of room codes by finish time.
type Store struct {
	redis       redis.UniversalClient
	logger      zerolog.Logger
	ttl         time.Duration
	recentLimit int
	prefix      string
}

// NewStore constructs a Redis-backed result store.
func NewStore(client redis.UniversalClient, logger zerolog.Logger, opts StoreOptions) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = 50
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "results"
	}

	return &Store{
		redis:       client,
		logger:      logger.With().Str("component", "results_store").Logger(),
		ttl:         ttl,
		recentLimit: limit,
		prefix:      prefix,
	}
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "redis" }

// Save writes a summary and trims the recent index to the configured size.
// A later game hosted under the same room code replaces the earlier one.
func (s *Store) Save(ctx context.Context, sum Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", sum.RoomID, err)
	}

	recentKey := s.recentKey()
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.resultKey(sum.RoomID), data, s.ttl)
	pipe.ZAdd(ctx, recentKey, redis.Z{
		Score:  float64(sum.FinishedAt.UnixMilli()),
		Member: sum.RoomID,
	})
	pipe.ZRemRangeByRank(ctx, recentKey, 0, -int64(s.recentLimit)-1)
	pipe.Expire(ctx, recentKey, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store result %s: %w", sum.RoomID, err)
	}
	return nil
}

// Get returns the archived summary for a room code.
func (s *Store) Get(ctx context.Context, roomID string) (*Summary, error) {
	data, err := s.redis.Get(ctx, s.resultKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch result %s: %w", roomID, err)
	}

	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", roomID, err)
	}
	return &sum, nil
}

// Recent returns up to limit summaries, most recently finished first.
// Index entries whose document already expired are skipped.
func (s *Store) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 || limit > s.recentLimit {
		limit = s.recentLimit
	}

	roomIDs, err := s.redis.ZRevRange(ctx, s.recentKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch recent results: %w", err)
	}
	if len(roomIDs) == 0 {
		return []Summary{}, nil
	}

	keys := make([]string, len(roomIDs))
	for i, id := range roomIDs {
		keys[i] = s.resultKey(id)
	}
	docs, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch recent results: %w", err)
	}

	out := make([]Summary, 0, len(docs))
	for i, doc := range docs {
		raw, ok := doc.(string)
		if !ok {
			continue
		}
		var sum Summary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			s.logger.Warn().Err(err).Str("room_id", roomIDs[i]).Msg("skipping undecodable result")
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Store) resultKey(roomID string) string {
	return fmt.Sprintf("%s:room:%s", s.prefix, roomID)
}

func (s *Store) recentKey() string {
	return fmt.Sprintf("%s:recent", s.prefix)
}
