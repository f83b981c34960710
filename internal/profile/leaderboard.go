package profile

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache keeps a per-mode ZSET of player ratings so the
// game-over leaderboard fetch never touches postgres.
type LeaderboardCache struct {
	client *redis.Client
}

func NewLeaderboardCache(client *redis.Client) *LeaderboardCache {
	return &LeaderboardCache{client: client}
}

func (c *LeaderboardCache) key(mode string) string {
	return fmt.Sprintf("lb:%s", mode)
}

func (c *LeaderboardCache) UpdateRating(ctx context.Context, mode, playerID string, elo int) error {
	return c.client.ZAdd(ctx, c.key(mode), redis.Z{
		Score:  float64(elo),
		Member: playerID,
	}).Err()
}

func (c *LeaderboardCache) Top(ctx context.Context, mode string, limit int) ([]Entry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(mode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(results))
	for i, z := range results {
		entries[i] = Entry{
			PlayerID: z.Member.(string),
			Elo:      int(z.Score),
			Rank:     i + 1,
		}
	}
	return entries, nil
}

func (c *LeaderboardCache) Rank(ctx context.Context, mode, playerID string) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, c.key(mode), playerID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	return rank + 1, err
}
