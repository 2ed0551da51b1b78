package tickets

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusScanned   Status = "SCANNED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

type Ticket struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"order_id"`
	BuyerID   string     `json:"buyer_id"`
	EventID   string     `json:"event_id"`
	Code      string     `json:"code"`
	Status    Status     `json:"status"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
	ScannedBy *string    `json:"scanned_by,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
}

// QRPayload adalah isi QR di e-ticket: cukup untuk resolve & cross-check
// di gate tanpa harus bawa seluruh row.
type QRPayload struct {
	Code    string `json:"code"`
	OrderID string `json:"order_id"`
	EventID string `json:"event_id"`
}

func (t Ticket) QR() string {
	b, _ := json.Marshal(QRPayload{Code: t.Code, OrderID: t.OrderID, EventID: t.EventID})
	return string(b)
}
