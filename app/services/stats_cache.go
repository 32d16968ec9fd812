package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CampaignStatsCache caches per-campaign status counts in redis. Callers
// treat the cache as advisory: misses and errors fall through to the
// database, and invalidation is fire and forget.
type CampaignStatsCache interface {
	Get(ctx context.Context, customerID, campaignID uint, out any) (bool, error)
	Set(ctx context.Context, customerID, campaignID uint, value any) error
	Invalidate(ctx context.Context, customerID, campaignID uint)
}

// RedisCampaignStatsCache implements CampaignStatsCache
type RedisCampaignStatsCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCampaignStatsCache creates a redis-backed stats cache
func NewCampaignStatsCache(client *redis.Client, prefix string, ttl time.Duration) CampaignStatsCache {
	return &RedisCampaignStatsCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCampaignStatsCache) key(customerID, campaignID uint) string {
	return fmt.Sprintf("%scampaign_stats:%d:%d", c.prefix, customerID, campaignID)
}

// Get loads cached stats into out; false means a miss
func (c *RedisCampaignStatsCache) Get(ctx context.Context, customerID, campaignID uint, out any) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(customerID, campaignID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores stats with the configured TTL
func (c *RedisCampaignStatsCache) Set(ctx context.Context, customerID, campaignID uint, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(customerID, campaignID), raw, c.ttl).Err()
}

// Invalidate drops the cached stats. Errors are ignored; a webhook must
// never block on cache health.
func (c *RedisCampaignStatsCache) Invalidate(ctx context.Context, customerID, campaignID uint) {
	_ = c.client.Del(ctx, c.key(customerID, campaignID)).Err()
}

// NoopCampaignStatsCache is used when no cache is configured
type NoopCampaignStatsCache struct{}

// Get always misses
func (NoopCampaignStatsCache) Get(ctx context.Context, customerID, campaignID uint, out any) (bool, error) {
	return false, nil
}

// Set does nothing
func (NoopCampaignStatsCache) Set(ctx context.Context, customerID, campaignID uint, value any) error {
	return nil
}

// Invalidate does nothing
func (NoopCampaignStatsCache) Invalidate(ctx context.Context, customerID, campaignID uint) {}
