package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"checkout-service/internal/clients"
	"checkout-service/internal/models"
)

const keyPrefix = "payment_methods:"

// SettingsCache caches store payment method settings in Redis. A nil client
// degrades to no caching.
type SettingsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

var _ clients.PaymentMethodsCache = (*SettingsCache)(nil)

// NewSettingsCache creates a settings cache on an already connected client.
func NewSettingsCache(client *redis.Client, ttl time.Duration, logger *logrus.Entry) *SettingsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsCache{
		client: client,
		ttl:    ttl,
		logger: logger.WithField("component", "cache.settings"),
	}
}

func (c *SettingsCache) cacheKey(storeKey string) string {
	return keyPrefix + storeKey
}

// GetPaymentMethods returns cached settings for a store. Misses and Redis
// failures both report false.
func (c *SettingsCache) GetPaymentMethods(ctx context.Context, storeKey string) (models.PaymentMethods, bool) {
	if c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.cacheKey(storeKey)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read cached payment methods")
		return nil, false
	}

	var methods models.PaymentMethods
	if err := json.Unmarshal(data, &methods); err != nil {
		c.logger.WithError(err).Warn("Discarding malformed cached payment methods")
		return nil, false
	}
	return methods, true
}

// SetPaymentMethods caches settings for a store.
func (c *SettingsCache) SetPaymentMethods(ctx context.Context, storeKey string, methods models.PaymentMethods) {
	if c.client == nil {
		return
	}

	data, err := json.Marshal(methods)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode payment methods")
		return
	}
	if err := c.client.Set(ctx, c.cacheKey(storeKey), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to cache payment methods")
	}
}

// Invalidate drops the cached settings of one store.
func (c *SettingsCache) Invalidate(ctx context.Context, storeKey string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.cacheKey(storeKey)).Err()
}

// InvalidateAll drops every cached store.
func (c *SettingsCache) InvalidateAll(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached payment methods: %w", err)
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Close closes the Redis connection
func (c *SettingsCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if Redis is connected
func (c *SettingsCache) IsAvailable() bool {
	return c.client != nil
}
