package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/fees"
	"github.com/ariefcatur/go-tickethub.git/internal/gateway"
	"github.com/ariefcatur/go-tickethub.git/internal/kafka"
	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/redisx"
	"github.com/ariefcatur/go-tickethub.git/internal/tickets"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

var ErrUnauthenticated = errors.New("webhook signature mismatch")

type Ledger interface {
	FindByExternalRef(ctx context.Context, ref string) (ledger.Order, error)
	MarkPaid(ctx context.Context, orderID string, b fees.Breakdown, now time.Time) (bool, error)
	Transition(ctx context.Context, orderID string, from, to ledger.Status) (bool, error)
	SetPaymentInstrument(ctx context.Context, orderID, instrument string) error
}

type TicketIssuer interface {
	Issue(ctx context.Context, o ledger.Order) ([]tickets.Ticket, bool, error)
}

type EventSink interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Ingestor menerima callback status pembayaran dari gateway dan mendorong
// mesin status ledger secara idempotent. Gateway mengirim at-least-once dan
// tanpa jaminan urutan; kebenaran dijaga guard per-row, bukan dedup cache.
type Ingestor struct {
	Ledger         Ledger
	Issuer         TicketIssuer
	Fees           fees.Calculator
	ProducerPaid   EventSink // topic order.paid
	ProducerFailed EventSink // topic order.failed
	Redis          *redis.Client
	ServerKey      string
	ServiceName    string
	Logger         *logrus.Logger
}

func (s *Ingestor) HandleNotification(ctx context.Context, n gateway.Notification) error {
	if !gateway.ValidSignature(n, s.ServerKey) {
		s.Logger.WithField("external_ref", n.OrderID).Warn("rejecting webhook with bad signature")
		return ErrUnauthenticated
	}

	order, err := s.Ledger.FindByExternalRef(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownOrder) {
			s.Logger.WithField("external_ref", n.OrderID).Warn("webhook for unknown order")
		}
		return err
	}

	// nomor VA dipersist begitu ada, apapun status akhirnya, supaya buyer
	// bisa lihat cara bayar sebelum settlement
	if inst := n.Instrument(); inst != "" {
		if err := s.Ledger.SetPaymentInstrument(ctx, order.ID, inst); err != nil {
			return err
		}
	}

	to, ok := gateway.MapStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		return nil // callback informatif saja, tidak ada transisi
	}

	if order.Status != ledger.StatusPending {
		// replay idempotent. Kalau sudah PAID, pastikan tiketnya memang ada:
		// delivery sebelumnya bisa gagal di tengah antara transisi & issuance.
		if order.Status == ledger.StatusPaid {
			return s.ensureIssued(ctx, order)
		}
		s.Logger.WithFields(logrus.Fields{
			"order_id": order.ID, "status": order.Status,
		}).Info("webhook replay on settled order, no-op")
		return nil
	}

	if to == ledger.StatusPaid {
		return s.settle(ctx, order, n)
	}
	return s.reject(ctx, order, to, n.TransactionStatus)
}

func (s *Ingestor) settle(ctx context.Context, order ledger.Order, n gateway.Notification) error {
	method := n.PaymentType
	if method == "" {
		method = order.PaymentMethod
	}
	breakdown, err := s.Fees.Calculate(order.GrossAmount, method, -1)
	if err != nil {
		return fmt.Errorf("fee breakdown for order %s: %w", order.ID, err)
	}

	won, err := s.Ledger.MarkPaid(ctx, order.ID, breakdown, time.Now().UTC())
	if err != nil {
		return err
	}
	if !won {
		// kalah race (reaper atau delivery lain). Re-check hasil akhirnya.
		current, err := s.Ledger.FindByExternalRef(ctx, n.OrderID)
		if err != nil {
			return err
		}
		if current.Status == ledger.StatusPaid {
			return s.ensureIssued(ctx, current)
		}
		return nil
	}

	order.Status = ledger.StatusPaid
	order.GatewayFee = breakdown.GatewayFee
	order.PlatformFee = breakdown.PlatformFee
	order.NetPayout = breakdown.NetPayout

	// issuance sinkron sebelum ack; gagal transient -> error -> gateway retry,
	// replay di atas yang menyembuhkan
	_, minted, err := s.Issuer.Issue(ctx, order)
	if err != nil {
		if errors.Is(err, tickets.ErrOversold) {
			// issuer sudah flag FAILED + alert; ack supaya gateway berhenti
			// retry, jalurnya refund manual
			s.dropStatusCache(ctx, order.ID)
			return nil
		}
		return err
	}

	// publish nempel ke mint supaya order.paid keluar tepat sekali:
	// kalau delivery lain yang keburu mencetak, dia juga yang publish
	if minted {
		s.publishPaid(order)
	}
	s.dropStatusCache(ctx, order.ID)
	return nil
}

func (s *Ingestor) reject(ctx context.Context, order ledger.Order, to ledger.Status, gatewayStatus string) error {
	won, err := s.Ledger.Transition(ctx, order.ID, ledger.StatusPending, to)
	if err != nil {
		return err
	}
	if !won {
		return nil // sudah diputus aktor lain
	}
	if to == ledger.StatusFailed {
		s.publishFailed(order, gatewayStatus)
	}
	s.dropStatusCache(ctx, order.ID)
	return nil
}

func (s *Ingestor) ensureIssued(ctx context.Context, order ledger.Order) error {
	_, minted, err := s.Issuer.Issue(ctx, order)
	if errors.Is(err, tickets.ErrOversold) {
		// sudah di-flag & di-alert oleh issuer; di sini di-ack supaya gateway
		// tidak retry, penanganannya refund manual
		s.dropStatusCache(ctx, order.ID)
		return nil
	}
	if err != nil {
		return err
	}
	if minted {
		// delivery sebelumnya mati sesudah transisi tapi sebelum publish;
		// sembuhkan juga stream dan cache, bukan cuma tiketnya
		s.publishPaid(order)
		s.dropStatusCache(ctx, order.ID)
	}
	return nil
}

func (s *Ingestor) publishPaid(o ledger.Order) {
	ev := ledger.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ledger.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafka.MustMarshal(ledger.OrderPaidPayload{
			OrderID: o.ID, ExternalRef: o.ExternalRef, BuyerID: o.BuyerID,
			EventID: o.EventID, GrossAmount: o.GrossAmount, NetPayout: o.NetPayout,
		}),
	}
	s.ProducerPaid.Publish(ledger.PartitionKey(o.ID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(ledger.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Ingestor) publishFailed(o ledger.Order, reason string) {
	ev := ledger.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ledger.EventOrderFailed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafka.MustMarshal(ledger.OrderFailedPayload{
			OrderID: o.ID, BuyerID: o.BuyerID, Reason: "GATEWAY_" + strings.ToUpper(reason),
		}),
	}
	s.ProducerFailed.Publish(ledger.PartitionKey(o.ID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(ledger.EventOrderFailed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Ingestor) dropStatusCache(ctx context.Context, orderID string) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if err := s.Redis.Del(ctx, key).Err(); err != nil {
		s.Logger.WithError(err).WithField("order_id", orderID).Warn("drop status cache")
	}
}
