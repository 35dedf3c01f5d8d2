package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// PredictionTTL bounds how long the latest predictions of a sport are served
// from cache.
const PredictionTTL = 24 * time.Hour

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

// RedisCache handles caching and fast state storage
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Set stores a key-value pair with TTL. It also serves as the page cache of
// the fetch client.
func (rc *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rc.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value by key
func (rc *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

// Delete removes a key
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// PredictionsKey is the cache key of a sport's latest predictions.
func PredictionsKey(s sport.Sport) string {
	return "predictions:" + s.String()
}

// SetPredictions replaces the cached predictions of a sport.
func (rc *RedisCache) SetPredictions(ctx context.Context, s sport.Sport, predictions []store.Prediction) error {
	data, err := json.Marshal(predictions)
	if err != nil {
		return fmt.Errorf("encoding predictions: %w", err)
	}
	return rc.Set(ctx, PredictionsKey(s), data, PredictionTTL)
}

// Predictions returns the cached predictions of a sport, or ErrMiss.
func (rc *RedisCache) Predictions(ctx context.Context, s sport.Sport) ([]store.Prediction, error) {
	data, err := rc.Get(ctx, PredictionsKey(s))
	if err != nil {
		return nil, err
	}
	var predictions []store.Prediction
	if err := json.Unmarshal([]byte(data), &predictions); err != nil {
		return nil, fmt.Errorf("decoding cached predictions: %w", err)
	}
	return predictions, nil
}

// InvalidatePredictions drops the cached predictions of a sport.
func (rc *RedisCache) InvalidatePredictions(ctx context.Context, s sport.Sport) error {
	return rc.Delete(ctx, PredictionsKey(s))
}
