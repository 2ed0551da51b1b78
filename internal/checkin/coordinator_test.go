package checkin

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-tickethub.git/internal/realtime"
	"github.com/ariefcatur/go-tickethub.git/internal/tickets"
	"github.com/sirupsen/logrus"
)

type fakeTicketStore struct {
	mu     sync.Mutex
	byCode map[string]tickets.Ticket
}

func newFakeTicketStore(ts ...tickets.Ticket) *fakeTicketStore {
	s := &fakeTicketStore{byCode: map[string]tickets.Ticket{}}
	for _, t := range ts {
		s.byCode[t.Code] = t
	}
	return s
}

func (s *fakeTicketStore) FindByCode(_ context.Context, code string) (tickets.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byCode[code]
	if !ok {
		return tickets.Ticket{}, tickets.ErrUnknownTicket
	}
	return t, nil
}

func (s *fakeTicketStore) MarkScanned(_ context.Context, code, operatorID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byCode[code]
	if !ok || t.Status != tickets.StatusActive {
		return false, nil
	}
	t.Status = tickets.StatusScanned
	t.ScannedAt = &at
	t.ScannedBy = &operatorID
	s.byCode[code] = t
	return true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []struct {
		topic string
		event realtime.Event
	}
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, e realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, struct {
		topic string
		event realtime.Event
	}{topic, e})
}

func (p *recordingPublisher) byType(eventType string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.Event
	for _, e := range p.events {
		if e.event.Type == eventType {
			out = append(out, e.event)
		}
	}
	return out
}

type recordingCache struct {
	mu      sync.Mutex
	dropped []string
}

func (c *recordingCache) Drop(_ context.Context, orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = append(c.dropped, orderID)
}

func newCoordinator(store *fakeTicketStore) (*Coordinator, *recordingPublisher, *recordingCache) {
	pub := &recordingPublisher{}
	cache := &recordingCache{}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Coordinator{Tickets: store, Publisher: pub, Cache: cache, Logger: l}, pub, cache
}

func activeTicket(code string) tickets.Ticket {
	return tickets.Ticket{
		ID: "tick-1", OrderID: "ord-1", BuyerID: "buyer-1", EventID: "ev-1",
		Code: code, Status: tickets.StatusActive, IssuedAt: time.Now(),
	}
}

func TestScanSuccess(t *testing.T) {
	store := newFakeTicketStore(activeTicket("TKT-AAA"))
	c, pub, cache := newCoordinator(store)

	res, snap, err := c.Scan(context.Background(), "TKT-AAA", "op-7")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res != ResultSuccess {
		t.Fatalf("want success, got %s", res)
	}
	if snap.Status != tickets.StatusScanned || snap.ScannedBy == nil || *snap.ScannedBy != "op-7" {
		t.Fatalf("snapshot not updated: %+v", snap)
	}
	if got := pub.byType(realtime.TypeTicketScanned); len(got) != 2 {
		t.Fatalf("scanned event goes to operator + buyer topics, got %d publishes", len(got))
	}
	// jalur pull harus lihat SCANNED segera, bukan nunggu TTL cache
	if len(cache.dropped) != 1 || cache.dropped[0] != "ord-1" {
		t.Fatalf("winning scan must drop the order status cache, got %v", cache.dropped)
	}
}

func TestScanUnknownCode(t *testing.T) {
	c, pub, cache := newCoordinator(newFakeTicketStore())

	res, _, err := c.Scan(context.Background(), "TKT-NOPE", "op-7")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res != ResultUnknown {
		t.Fatalf("want unknown, got %s", res)
	}
	if len(pub.events) != 0 {
		t.Fatal("unknown code must not publish anything")
	}
	if len(cache.dropped) != 0 {
		t.Fatal("unknown code must not touch the status cache")
	}
}

func TestScanDuplicateCarriesOriginalScanInfo(t *testing.T) {
	store := newFakeTicketStore(activeTicket("TKT-AAA"))
	c, pub, cache := newCoordinator(store)

	if res, _, _ := c.Scan(context.Background(), "TKT-AAA", "op-1"); res != ResultSuccess {
		t.Fatalf("first scan should win, got %s", res)
	}
	res, snap, err := c.Scan(context.Background(), "TKT-AAA", "op-2")
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if res != ResultAlreadyUsed {
		t.Fatalf("want already_used, got %s", res)
	}
	if snap.ScannedBy == nil || *snap.ScannedBy != "op-1" {
		t.Fatalf("snapshot must keep original operator, got %+v", snap.ScannedBy)
	}

	alerts := pub.byType(realtime.TypeDuplicateAlert)
	if len(alerts) != 1 {
		t.Fatalf("want 1 duplicate alert, got %d", len(alerts))
	}
	var p realtime.DuplicateAlertPayload
	if err := json.Unmarshal(alerts[0].Payload, &p); err != nil {
		t.Fatalf("decode alert payload: %v", err)
	}
	if p.ScannedBy == nil || *p.ScannedBy != "op-1" || p.AttemptedBy != "op-2" {
		t.Fatalf("alert must carry original scanner and attempter: %+v", p)
	}
	// cuma pemenang yang memutasi, jadi cuma dia yang drop cache
	if len(cache.dropped) != 1 {
		t.Fatalf("losing scan must not drop the cache again, got %v", cache.dropped)
	}
}

func TestScanRefundedTicket(t *testing.T) {
	tk := activeTicket("TKT-AAA")
	tk.Status = tickets.StatusRefunded
	c, pub, _ := newCoordinator(newFakeTicketStore(tk))

	res, _, err := c.Scan(context.Background(), "TKT-AAA", "op-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res != ResultRefunded {
		t.Fatalf("want refunded, got %s", res)
	}
	if len(pub.byType(realtime.TypeDuplicateAlert)) != 1 {
		t.Fatal("non-active scan must raise a duplicate alert")
	}
}

func TestConcurrentScansExactlyOneWinner(t *testing.T) {
	store := newFakeTicketStore(activeTicket("TKT-AAA"))
	c, _, cache := newCoordinator(store)

	const scanners = 6
	results := make([]Result, scanners)
	var wg sync.WaitGroup
	for n := 0; n < scanners; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, _, err := c.Scan(context.Background(), "TKT-AAA", "op")
			if err != nil {
				t.Errorf("scan %d: %v", n, err)
				return
			}
			results[n] = res
		}(n)
	}
	wg.Wait()

	var wins, dups int
	for _, r := range results {
		switch r {
		case ResultSuccess:
			wins++
		case ResultAlreadyUsed:
			dups++
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one scan may win, got %d", wins)
	}
	if dups != scanners-1 {
		t.Fatalf("others must see already_used, got %d", dups)
	}
	if len(cache.dropped) != 1 {
		t.Fatalf("cache dropped once by the sole winner, got %d", len(cache.dropped))
	}
}
