package realtime

import (
	"encoding/json"
	"time"
)

const (
	TypeTicketScanned  = "ticket.scanned"
	TypeDuplicateAlert = "ticket.duplicate_alert"
	TypeOrderPaid      = "order.paid"
)

// Event adalah payload push best-effort, at-most-once. Bukan sumber kebenaran;
// client yang ketinggalan push wajib reconcile lewat order-status query.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type TicketScannedPayload struct {
	Code      string    `json:"code"`
	OrderID   string    `json:"order_id"`
	EventID   string    `json:"event_id"`
	BuyerID   string    `json:"buyer_id"`
	ScannedAt time.Time `json:"scanned_at"`
	ScannedBy string    `json:"scanned_by"`
}

type DuplicateAlertPayload struct {
	Code        string     `json:"code"`
	EventID     string     `json:"event_id"`
	Status      string     `json:"status"` // SCANNED | CANCELLED | REFUNDED
	ScannedAt   *time.Time `json:"scanned_at,omitempty"`
	ScannedBy   *string    `json:"scanned_by,omitempty"`
	AttemptedBy string     `json:"attempted_by"`
}

type OrderPaidPayload struct {
	OrderID           string  `json:"order_id"`
	EventID           string  `json:"event_id"`
	PaymentInstrument *string `json:"payment_instrument,omitempty"`
}

func NewEvent(eventType string, payload any) Event {
	b, _ := json.Marshal(payload)
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: b}
}
