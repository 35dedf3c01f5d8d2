package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// MaxStreamLen caps each stream; older entries are trimmed approximately.
const MaxStreamLen = 10000

// Settlement is the message published when an event's result is recorded.
type Settlement struct {
	EventID string    `json:"event_id"`
	Sport   string    `json:"sport"`
	Winner  string    `json:"winner"`
	Team1   string    `json:"team1"`
	Team2   string    `json:"team2"`
	Date    time.Time `json:"date"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		now:    time.Now,
	}
}

// PredictionStream is the stream predictions of a sport are published to.
func PredictionStream(s sport.Sport) string {
	return "predictions." + s.String()
}

// SettlementStream is the stream settlements of a sport are published to.
func SettlementStream(s sport.Sport) string {
	return "settlements." + s.String()
}

// PublishPrediction publishes an event with its model prices.
func (rsp *RedisStreamPublisher) PublishPrediction(ctx context.Context, s sport.Sport, p store.Prediction) error {
	return rsp.publish(ctx, PredictionStream(s), p)
}

// PublishSettlement publishes a recorded result.
func (rsp *RedisStreamPublisher) PublishSettlement(ctx context.Context, s sport.Sport, st Settlement) error {
	return rsp.publish(ctx, SettlementStream(s), st)
}

func (rsp *RedisStreamPublisher) publish(ctx context.Context, stream string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", stream, err)
	}

	err = rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		Values: Values(data, rsp.now()),
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", stream, err)
	}
	return nil
}

// Values is the stream entry layout shared by every stream.
func Values(data []byte, at time.Time) map[string]interface{} {
	return map[string]interface{}{
		"data":      string(data),
		"timestamp": at.Unix(),
	}
}
