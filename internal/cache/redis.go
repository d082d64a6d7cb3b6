package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/actuallystonmai/progress-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func progressKey(userID, titleID string) string {
	return fmt.Sprintf("progress:user:%s:title:%s", userID, titleID)
}

func continueWatchingKey(userID string, limit int) string {
	return fmt.Sprintf("cw:user:%s:limit:%d", userID, limit)
}

func watchlistKey(userID string) string {
	return fmt.Sprintf("wl:user:%s", userID)
}

// Get a progress record from cache; nil, nil on miss
func (c *Cache) GetProgress(ctx context.Context, userID, titleID string) (*domain.WatchProgress, error) {
	key := progressKey(userID, titleID)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress from cache: %w", err)
	}

	var p domain.WatchProgress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress %s: %w", key, err)
	}
	return &p, nil
}

func (c *Cache) SetProgress(ctx context.Context, p domain.WatchProgress) error {
	val, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	if err := c.client.Set(ctx, progressKey(p.UserID, p.TitleID), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set progress in cache: %w", err)
	}
	return nil
}

func (c *Cache) DeleteProgress(ctx context.Context, userID, titleID string) error {
	if err := c.client.Del(ctx, progressKey(userID, titleID)).Err(); err != nil {
		return fmt.Errorf("cache delete progress: %w", err)
	}
	return nil
}

// Get continue-watching list from cache
func (c *Cache) GetContinueWatching(ctx context.Context, userID string, limit int) ([]domain.ContinueWatchingItem, bool, error) {
	key := continueWatchingKey(userID, limit)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get continue watching from cache: %w", err)
	}

	var items []domain.ContinueWatchingItem
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal continue watching %s: %w", key, err)
	}
	return items, true, nil
}

func (c *Cache) SetContinueWatching(ctx context.Context, userID string, limit int, items []domain.ContinueWatchingItem) error {
	val, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal continue watching: %w", err)
	}
	if err := c.client.Set(ctx, continueWatchingKey(userID, limit), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set continue watching in cache: %w", err)
	}
	return nil
}

// Get watchlist from cache
func (c *Cache) GetWatchlist(ctx context.Context, userID string) ([]domain.WatchlistItem, bool, error) {
	key := watchlistKey(userID)
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get watchlist from cache: %w", err)
	}

	var items []domain.WatchlistItem
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal watchlist %s: %w", key, err)
	}
	return items, true, nil
}

func (c *Cache) SetWatchlist(ctx context.Context, userID string, items []domain.WatchlistItem) error {
	val, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal watchlist: %w", err)
	}
	if err := c.client.Set(ctx, watchlistKey(userID), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set watchlist in cache: %w", err)
	}
	return nil
}

// Clear user list caches: used when a progress record or the watchlist changes
func (c *Cache) ClearUserCache(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, watchlistKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", watchlistKey(userID), err)
	}
	pattern := fmt.Sprintf("cw:user:%s:limit:*", userID)
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Ping connectivity
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
