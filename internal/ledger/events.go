package ledger

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPaid    = "OrderPaid"
	EventOrderFailed  = "OrderFailed"
	EventTicketIssued = "TicketIssued"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPaidPayload struct {
	OrderID     string `json:"order_id"`
	ExternalRef string `json:"external_ref"`
	BuyerID     string `json:"buyer_id"`
	EventID     string `json:"event_id"`
	GrossAmount int64  `json:"gross_amount"`
	NetPayout   int64  `json:"net_payout"`
}

type OrderFailedPayload struct {
	OrderID  string `json:"order_id"`
	BuyerID  string `json:"buyer_id"`
	Reason   string `json:"reason"` // e.g. OVERSOLD, GATEWAY_DENY
	Oversold bool   `json:"oversold"`
}

type TicketIssuedPayload struct {
	OrderID string `json:"order_id"`
	EventID string `json:"event_id"`
	Count   int    `json:"count"`
}
