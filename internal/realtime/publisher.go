package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, e Event)
}

// RedisPublisher broadcast lewat Redis pub/sub. Error cuma dicatat:
// delivery best-effort, konsistensi dijaga oleh store, bukan oleh push.
type RedisPublisher struct {
	Redis  *redis.Client
	Logger *logrus.Logger
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, e Event) {
	b, err := json.Marshal(e)
	if err != nil {
		p.Logger.WithError(err).WithField("topic", topic).Warn("marshal realtime event")
		return
	}
	if err := p.Redis.Publish(ctx, topic, b).Err(); err != nil {
		p.Logger.WithError(err).WithField("topic", topic).Warn("publish realtime event")
	}
}
