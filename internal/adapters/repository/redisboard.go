package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "skillrate:leaderboard"

// RedisBoard is a read-side leaderboard projection on a Redis sorted
// set. The worker refreshes it after each applied match, so leaderboard
// queries can be served without touching the primary rating store.
// Scores carry ratings only; deviation and volatility stay in the store.
type RedisBoard struct {
	rdb *redis.Client
}

// NewRedisBoard wraps an existing Redis client.
func NewRedisBoard(rdb *redis.Client) *RedisBoard {
	return &RedisBoard{rdb: rdb}
}

// Publish sets a player's rating in the projection.
func (b *RedisBoard) Publish(ctx context.Context, playerID string, rating float64) error {
	err := b.rdb.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  rating,
		Member: playerID,
	}).Err()
	if err != nil {
		return fmt.Errorf("publish leaderboard entry: %w", err)
	}
	return nil
}

// TopN returns the top N projected entries ordered by rating desc.
func (b *RedisBoard) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	zs, err := b.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard projection: %w", err)
	}

	entries := make([]Entry, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries[i] = Entry{
			Rank:     i + 1,
			PlayerID: member,
			Rating:   z.Score,
		}
	}
	return entries, nil
}

// Rank returns a player's projected rank and rating.
func (b *RedisBoard) Rank(ctx context.Context, playerID string) (Entry, error) {
	rank, err := b.rdb.ZRevRank(ctx, leaderboardKey, playerID).Result()
	if err == redis.Nil {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read projected rank: %w", err)
	}

	score, err := b.rdb.ZScore(ctx, leaderboardKey, playerID).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("read projected rating: %w", err)
	}

	return Entry{
		Rank:     int(rank) + 1,
		PlayerID: playerID,
		Rating:   score,
	}, nil
}

// Reset drops the projection, e.g. at the start of a new season.
func (b *RedisBoard) Reset(ctx context.Context) error {
	if err := b.rdb.Del(ctx, leaderboardKey).Err(); err != nil {
		return fmt.Errorf("reset leaderboard projection: %w", err)
	}
	return nil
}
