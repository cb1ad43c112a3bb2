package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamOddsImported receives one entry per committed import.
const StreamOddsImported = "odds.imported"

// ImportEvent announces that an import changed games and odds.
type ImportEvent struct {
	JobID       string `json:"job_id,omitempty"`
	Source      string `json:"source"`
	Games       int    `json:"games"`
	Odds        int    `json:"odds"`
	SkippedOdds int    `json:"skipped_odds"`
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamPublisher creates a publisher from an existing client.
// Streams are trimmed to roughly maxLen entries; zero keeps everything.
func NewRedisStreamPublisher(client *redis.Client, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		maxLen: maxLen,
	}
}

// PublishImport appends an import event to the odds.imported stream
func (p *RedisStreamPublisher) PublishImport(ctx context.Context, event ImportEvent) error {
	return p.client.XAdd(ctx, importArgs(event, p.maxLen, time.Now())).Err()
}

func importArgs(event ImportEvent, maxLen int64, now time.Time) *redis.XAddArgs {
	data, _ := json.Marshal(event)

	return &redis.XAddArgs{
		Stream: StreamOddsImported,
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": now.Unix(),
		},
	}
}
