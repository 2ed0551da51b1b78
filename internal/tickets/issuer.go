package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/kafka"
	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// ErrOversold: stok keburu habis oleh order lain yang paid duluan.
// Dilaporkan untuk refund manual, tidak di-retry otomatis.
var ErrOversold = errors.New("order lost the stock race, flagged for manual refund")

type Store interface {
	FindByOrderID(ctx context.Context, orderID string) ([]Ticket, error)
	IssueBatch(ctx context.Context, eventID, orderID string, ts []Ticket) ([]Ticket, bool, error)
}

type OrderFailer interface {
	ForceFail(ctx context.Context, orderID string, oversold bool) error
}

type EventSink interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Issuer struct {
	Store          Store
	Orders         OrderFailer
	ProducerIssued EventSink // topic ticket.issued
	ProducerFailed EventSink // topic order.failed
	ServiceName    string
	Logger         *logrus.Logger
}

// Issue mencetak tepat quantity tiket untuk order yang sudah PAID.
// Idempotent di order_id: delivery webhook ke-N cuma dapat tiket yang sama.
// Flag kedua true hanya kalau pemanggilan ini yang benar-benar mencetak;
// caller pakai itu untuk tahu apakah publish hilir masih hutang.
func (i *Issuer) Issue(ctx context.Context, o ledger.Order) ([]Ticket, bool, error) {
	if existing, err := i.Store.FindByOrderID(ctx, o.ID); err != nil {
		return nil, false, err
	} else if len(existing) > 0 {
		return existing, false, nil
	}

	now := time.Now().UTC()
	batch := make([]Ticket, 0, o.Quantity)
	for n := 0; n < o.Quantity; n++ {
		code, err := NewCode()
		if err != nil {
			return nil, false, fmt.Errorf("generate ticket code: %w", err)
		}
		batch = append(batch, Ticket{
			ID:       uuid.NewString(),
			OrderID:  o.ID,
			BuyerID:  o.BuyerID,
			EventID:  o.EventID,
			Code:     code,
			Status:   StatusActive,
			IssuedAt: now,
		})
	}

	issued, minted, err := i.Store.IssueBatch(ctx, o.EventID, o.ID, batch)
	if errors.Is(err, ErrInsufficientStock) {
		// race webhook bikin oversell: order ini kalah, paksa FAILED + flag,
		// alert ke stream. Jangan pernah diam-diam drop.
		if ferr := i.Orders.ForceFail(ctx, o.ID, true); ferr != nil {
			return nil, false, ferr
		}
		i.publishFailed(o)
		i.Logger.WithFields(logrus.Fields{
			"order_id": o.ID,
			"event_id": o.EventID,
			"quantity": o.Quantity,
		}).Error("oversold order flagged for manual refund")
		return nil, false, ErrOversold
	}
	if err != nil {
		return nil, false, err
	}

	if minted {
		i.publishIssued(o, len(issued))
	}
	return issued, minted, nil
}

func (i *Issuer) publishIssued(o ledger.Order, count int) {
	ev := ledger.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ledger.EventTicketIssued,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      i.ServiceName,
		CorrelationID: o.ID,
		Payload:       kafka.MustMarshal(ledger.TicketIssuedPayload{OrderID: o.ID, EventID: o.EventID, Count: count}),
	}
	i.ProducerIssued.Publish(ledger.PartitionKey(o.ID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(ledger.EventTicketIssued)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (i *Issuer) publishFailed(o ledger.Order) {
	ev := ledger.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ledger.EventOrderFailed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      i.ServiceName,
		CorrelationID: o.ID,
		Payload: kafka.MustMarshal(ledger.OrderFailedPayload{
			OrderID: o.ID, BuyerID: o.BuyerID, Reason: "OVERSOLD", Oversold: true,
		}),
	}
	i.ProducerFailed.Publish(ledger.PartitionKey(o.ID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(ledger.EventOrderFailed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
