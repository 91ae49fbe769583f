package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sguter90/sensormaestro/pkg/models"
	"go.uber.org/zap"
)

const keyPrefix = "sensor:last:"

// ErrMiss is returned when no latest sample is cached for a kind
var ErrMiss = errors.New("no cached sample")

// Latest is the most recent broadcast payload of one sample kind
type Latest struct {
	Kind      models.Kind     `json:"kind"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LatestCache keeps the last stored sample per kind in redis
type LatestCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLatestCache creates a new LatestCache on top of client
func NewLatestCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *LatestCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LatestCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Connect opens a redis client and verifies it with a ping
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func key(kind models.Kind) string {
	return keyPrefix + string(kind)
}

// Set replaces the cached sample of kind
func (c *LatestCache) Set(ctx context.Context, kind models.Kind, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s sample: %w", kind, err)
	}

	entry, err := json.Marshal(Latest{
		Kind:      kind,
		Data:      raw,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if err := c.client.Set(ctx, key(kind), entry, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s sample: %w", kind, err)
	}
	return nil
}

// Get returns the cached sample of kind or ErrMiss
func (c *LatestCache) Get(ctx context.Context, kind models.Kind) (*Latest, error) {
	raw, err := c.client.Get(ctx, key(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached %s sample: %w", kind, err)
	}

	var entry Latest
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("Discarding malformed cache entry", zap.String("key", key(kind)), zap.Error(err))
		return nil, ErrMiss
	}
	return &entry, nil
}

// All returns every cached kind, skipping misses
func (c *LatestCache) All(ctx context.Context) (map[models.Kind]*Latest, error) {
	out := make(map[models.Kind]*Latest)
	for _, kind := range []models.Kind{models.KindEnvironmental, models.KindVibration} {
		entry, err := c.Get(ctx, kind)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[kind] = entry
	}
	return out, nil
}
