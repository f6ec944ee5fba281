package publisher

import (
	"context"
	"encoding/base64"

	"github.com/redis/go-redis/v9"

	"github.com/beatrizuezu/maria-quiteria/logger"
)

// RedisPublisher implements Publisher on Redis streams, one stream per
// spider (e.g. maria-quiteria:cityhall_bids). Consumers read with consumer
// groups so each record is processed once.
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	streamPrefix    string
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a publisher talking to the given Redis server
func NewRedisPublisher(ctx context.Context, addr string, db int, streamPrefix string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		streamPrefix:    streamPrefix,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Publish appends one record to the spider's stream. The payload is base64
// encoded so consumers never trip over framing issues.
func (p *RedisPublisher) Publish(spider string, record []byte) error {
	encoded := base64.StdEncoding.EncodeToString(record)
	stream := p.streamPrefix + ":" + spider

	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"record": encoded,
		},
	}).Err()
}

// TrimStreams caps every spider stream at the configured maximum length
func (p *RedisPublisher) TrimStreams() error {
	pattern := p.streamPrefix + ":*"
	streams, err := p.client.Keys(p.ctx, pattern).Result()
	if err != nil {
		return err
	}

	for _, stream := range streams {
		if err := p.client.XTrimMaxLen(p.ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return err
		}
	}

	p.log.Debug().Int("streams", len(streams)).Int("max_length", p.streamMaxLength).Msg("Trimmed streams")
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
