package webhook

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/fees"
	"github.com/ariefcatur/go-tickethub.git/internal/gateway"
	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
	"github.com/ariefcatur/go-tickethub.git/internal/tickets"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const serverKey = "test-server-key"

type fakeLedger struct {
	mu     sync.Mutex
	orders map[string]*ledger.Order // keyed by id
	byRef  map[string]string
}

func newFakeLedger(orders ...ledger.Order) *fakeLedger {
	l := &fakeLedger{orders: map[string]*ledger.Order{}, byRef: map[string]string{}}
	for _, o := range orders {
		c := o
		l.orders[o.ID] = &c
		l.byRef[o.ExternalRef] = o.ID
	}
	return l
}

func (l *fakeLedger) FindByExternalRef(_ context.Context, ref string) (ledger.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byRef[ref]
	if !ok {
		return ledger.Order{}, ledger.ErrUnknownOrder
	}
	return *l.orders[id], nil
}

func (l *fakeLedger) MarkPaid(_ context.Context, orderID string, b fees.Breakdown, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o := l.orders[orderID]
	if o == nil || o.Status != ledger.StatusPending {
		return false, nil
	}
	o.Status = ledger.StatusPaid
	o.GatewayFee = b.GatewayFee
	o.PlatformFee = b.PlatformFee
	o.NetPayout = b.NetPayout
	o.CompletedAt = &now
	return true, nil
}

func (l *fakeLedger) Transition(_ context.Context, orderID string, from, to ledger.Status) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o := l.orders[orderID]
	if o == nil || o.Status != from || !ledger.CanTransition(from, to) {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (l *fakeLedger) SetPaymentInstrument(_ context.Context, orderID, instrument string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o := l.orders[orderID]; o != nil {
		o.PaymentInstrument = &instrument
	}
	return nil
}

func (l *fakeLedger) get(orderID string) ledger.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.orders[orderID]
}

type fakeIssuer struct {
	mu       sync.Mutex
	minted   map[string][]tickets.Ticket
	failNext error
	oversold bool
}

func (f *fakeIssuer) Issue(_ context.Context, o ledger.Order) ([]tickets.Ticket, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, false, err
	}
	if f.oversold {
		return nil, false, tickets.ErrOversold
	}
	if ts, ok := f.minted[o.ID]; ok {
		return ts, false, nil
	}
	ts := make([]tickets.Ticket, o.Quantity)
	for n := range ts {
		ts[n] = tickets.Ticket{OrderID: o.ID, Status: tickets.StatusActive}
	}
	if f.minted == nil {
		f.minted = map[string][]tickets.Ticket{}
	}
	f.minted[o.ID] = ts
	return ts, true, nil
}

type fakeSink struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (s *fakeSink) Publish(_, value []byte, _ ...kafkago.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, value)
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func newIngestor(l *fakeLedger, issuer *fakeIssuer) (*Ingestor, *fakeSink, *fakeSink) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	paid := &fakeSink{}
	failed := &fakeSink{}
	return &Ingestor{
		Ledger:         l,
		Issuer:         issuer,
		Fees:           fees.Calculator{PlatformFeePercent: 2},
		ProducerPaid:   paid,
		ProducerFailed: failed,
		ServerKey:      serverKey,
		ServiceName:    "test",
		Logger:         logger,
	}, paid, failed
}

func pendingOrder(id, ref string) ledger.Order {
	return ledger.Order{
		ID: id, ExternalRef: ref, BuyerID: "buyer-1", EventID: "ev-1",
		Quantity: 2, UnitPrice: 50000, GrossAmount: 100000,
		Status: ledger.StatusPending, PaymentMethod: "bank_transfer",
		ExpiresAt: time.Now().Add(24 * time.Hour), CreatedAt: time.Now(),
	}
}

func signedNotification(ref, txStatus string) gateway.Notification {
	n := gateway.Notification{
		TransactionID:     "mid-1",
		OrderID:           ref,
		StatusCode:        "200",
		GrossAmount:       "100000.00",
		TransactionStatus: txStatus,
		PaymentType:       "bank_transfer",
	}
	n.SignatureKey = gateway.Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return n
}

func TestBadSignatureRejectedWithoutMutation(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	ing, paid, _ := newIngestor(l, &fakeIssuer{})

	n := signedNotification("ref-1", "settlement")
	n.SignatureKey = "bogus"
	if err := ing.HandleNotification(context.Background(), n); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
	if got := l.get("ord-1").Status; got != ledger.StatusPending {
		t.Fatalf("order must stay pending, got %s", got)
	}
	if paid.count() != 0 {
		t.Fatal("nothing may be published on auth failure")
	}
}

func TestUnknownOrder(t *testing.T) {
	ing, _, _ := newIngestor(newFakeLedger(), &fakeIssuer{})
	err := ing.HandleNotification(context.Background(), signedNotification("ref-missing", "settlement"))
	if !errors.Is(err, ledger.ErrUnknownOrder) {
		t.Fatalf("want ErrUnknownOrder, got %v", err)
	}
}

func TestPendingCallbackPersistsInstrumentWithoutTransition(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	ing, paid, _ := newIngestor(l, &fakeIssuer{})

	n := signedNotification("ref-1", "pending")
	n.VANumbers = []gateway.VANumber{{Bank: "bca", VANumber: "8888001234"}}
	if err := ing.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("pending callback: %v", err)
	}

	o := l.get("ord-1")
	if o.Status != ledger.StatusPending {
		t.Fatalf("pending callback must not transition, got %s", o.Status)
	}
	if o.PaymentInstrument == nil || *o.PaymentInstrument != "8888001234" {
		t.Fatalf("VA must be persisted while pending, got %+v", o.PaymentInstrument)
	}
	if paid.count() != 0 {
		t.Fatal("no events on informational callback")
	}
}

func TestSettlementPaysAndIssues(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	issuer := &fakeIssuer{}
	ing, paid, _ := newIngestor(l, issuer)

	if err := ing.HandleNotification(context.Background(), signedNotification("ref-1", "settlement")); err != nil {
		t.Fatalf("settlement: %v", err)
	}

	o := l.get("ord-1")
	if o.Status != ledger.StatusPaid {
		t.Fatalf("want PAID, got %s", o.Status)
	}
	if o.PlatformFee != 2000 || o.GatewayFee != 4000 || o.NetPayout != 94000 {
		t.Fatalf("fee breakdown not attached: %+v", o)
	}
	if o.GrossAmount-(o.GatewayFee+o.PlatformFee) != o.NetPayout {
		t.Fatalf("fee invariant broken: %+v", o)
	}
	if len(issuer.minted["ord-1"]) != 2 {
		t.Fatalf("want 2 tickets issued, got %d", len(issuer.minted["ord-1"]))
	}
	if paid.count() != 1 {
		t.Fatalf("want 1 order.paid event, got %d", paid.count())
	}
}

func TestReplayAfterPaidIsNoOpButHealsIssuance(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	issuer := &fakeIssuer{}
	ing, paid, _ := newIngestor(l, issuer)

	n := signedNotification("ref-1", "settlement")
	for range [3]int{} {
		if err := ing.HandleNotification(context.Background(), n); err != nil {
			t.Fatalf("delivery: %v", err)
		}
	}

	if len(issuer.minted["ord-1"]) != 2 {
		t.Fatalf("tickets must be minted exactly once, got %d", len(issuer.minted["ord-1"]))
	}
	if paid.count() != 1 {
		t.Fatalf("order.paid must be published once, got %d", paid.count())
	}
}

func TestIssuanceFailureFailsDeliveryThenRetryHeals(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	issuer := &fakeIssuer{failNext: errors.New("store hiccup")}
	ing, paid, _ := newIngestor(l, issuer)

	n := signedNotification("ref-1", "settlement")
	if err := ing.HandleNotification(context.Background(), n); err == nil {
		t.Fatal("first delivery must fail so the gateway retries")
	}
	if got := l.get("ord-1").Status; got != ledger.StatusPaid {
		t.Fatalf("order is paid even though issuance failed, got %s", got)
	}
	if paid.count() != 0 {
		t.Fatalf("failed delivery must not publish order.paid, got %d", paid.count())
	}

	// delivery ulang dari gateway
	if err := ing.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(issuer.minted["ord-1"]) != 2 {
		t.Fatalf("retry must heal issuance, got %d tickets", len(issuer.minted["ord-1"]))
	}
	if paid.count() != 1 {
		t.Fatalf("healing retry must also publish order.paid, got %d", paid.count())
	}

	// replay berikutnya tidak boleh publish lagi
	if err := ing.HandleNotification(context.Background(), n); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if paid.count() != 1 {
		t.Fatalf("replay after heal must not re-publish, got %d", paid.count())
	}
}

func TestPaidVersusCancelledEitherOrder(t *testing.T) {
	run := func(first, second string) ledger.Status {
		l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
		ing, _, _ := newIngestor(l, &fakeIssuer{})
		if err := ing.HandleNotification(context.Background(), signedNotification("ref-1", first)); err != nil {
			t.Fatalf("%s: %v", first, err)
		}
		if err := ing.HandleNotification(context.Background(), signedNotification("ref-1", second)); err != nil {
			t.Fatalf("%s: %v", second, err)
		}
		return l.get("ord-1").Status
	}

	if got := run("settlement", "cancel"); got != ledger.StatusPaid {
		t.Fatalf("paid first: final must be PAID, got %s", got)
	}
	if got := run("cancel", "settlement"); got != ledger.StatusCancelled {
		t.Fatalf("cancel first: final must be CANCELLED, got %s", got)
	}
}

func TestConcurrentSettlementsMintOnce(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	issuer := &fakeIssuer{}
	ing, paid, _ := newIngestor(l, issuer)

	n := signedNotification("ref-1", "settlement")
	var wg sync.WaitGroup
	for range [8]int{} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ing.HandleNotification(context.Background(), n); err != nil {
				t.Errorf("delivery: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(issuer.minted["ord-1"]) != 2 {
		t.Fatalf("tickets must exist exactly once, got %d", len(issuer.minted["ord-1"]))
	}
	if paid.count() != 1 {
		t.Fatalf("order.paid must be published exactly once, got %d", paid.count())
	}
}

func TestOversoldSettlementAcksWithoutRetry(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	ing, paid, _ := newIngestor(l, &fakeIssuer{oversold: true})

	if err := ing.HandleNotification(context.Background(), signedNotification("ref-1", "settlement")); err != nil {
		t.Fatalf("oversold must be acked, not retried: %v", err)
	}
	if paid.count() != 0 {
		t.Fatal("no order.paid event for an oversold order")
	}
}

func TestDenyFailsOrder(t *testing.T) {
	l := newFakeLedger(pendingOrder("ord-1", "ref-1"))
	ing, _, failed := newIngestor(l, &fakeIssuer{})

	if err := ing.HandleNotification(context.Background(), signedNotification("ref-1", "deny")); err != nil {
		t.Fatalf("deny: %v", err)
	}
	if got := l.get("ord-1").Status; got != ledger.StatusFailed {
		t.Fatalf("want FAILED, got %s", got)
	}
	if failed.count() != 1 {
		t.Fatalf("want 1 order.failed event, got %d", failed.count())
	}
}
