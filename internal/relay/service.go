package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-tickethub.git/internal/kafka"
	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/realtime"
	"github.com/ariefcatur/go-tickethub.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Deduper menandai event yang sudah pernah diproses. Seen mengembalikan true
// kalau event_id sudah tercatat, dan mencatatnya kalau belum.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// RedisDeduper menyimpan marker dedup di Redis dengan TTL. Service jadi
// segmen key supaya consumer lain tidak saling injak marker.
type RedisDeduper struct {
	Client  *redis.Client
	Service string
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyDedup, d.Service, eventID)
	exists, err := redisx.Exists(ctx, d.Client, key)
	if err != nil || exists {
		return exists, err
	}
	return false, d.Client.Set(ctx, key, "1", redisx.TTLDedup).Err()
}

// Service meneruskan event order dari stream Kafka ke topic realtime milik
// buyer. Relay ini layer convenience: kalau push-nya hilang, buyer reconcile
// lewat order-status query.
type Service struct {
	Dedup     Deduper
	Publisher realtime.Publisher
	Logger    *logrus.Logger
}

// HandleOrderEvent dipasang sebagai handler consumer.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env ledger.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != ledger.EventOrderPaid {
		return nil
	}

	// consumer kafka at-least-once, jadi dedup dulu via event_id
	seen, err := s.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		// marker gagal ditulis/dibaca bukan alasan drop: paling buruk buyer
		// dapat push dobel, layer push memang at-most-once
		s.Logger.WithError(err).WithField("event_id", env.EventID).Warn("relay dedup check")
	}
	if seen {
		return nil
	}

	p, err := kafka.UnwrapPayload[ledger.OrderPaidPayload](env.Payload)
	if err != nil {
		return err
	}

	s.Publisher.Publish(ctx, realtime.UserTopic(p.BuyerID),
		realtime.NewEvent(realtime.TypeOrderPaid, realtime.OrderPaidPayload{
			OrderID: p.OrderID,
			EventID: p.EventID,
		}))

	s.Logger.WithFields(logrus.Fields{
		"order_id": p.OrderID,
		"buyer_id": p.BuyerID,
	}).Debug("order.paid relayed to buyer topic")
	return nil
}
