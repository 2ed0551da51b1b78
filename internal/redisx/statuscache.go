package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// StatusCache menghapus entri cache status order. Setiap mutasi yang
// mengubah apa yang dilihat jalur pull wajib drop, kalau tidak query
// status bisa nyajiin data basi sampai TTL habis.
type StatusCache struct {
	Client *redis.Client
	Logger *logrus.Logger
}

func (c *StatusCache) Drop(ctx context.Context, orderID string) {
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	if err := c.Client.Del(ctx, key).Err(); err != nil {
		c.Logger.WithError(err).WithField("order_id", orderID).Warn("drop status cache")
	}
}
