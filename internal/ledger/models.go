package ledger

import "time"

type Order struct {
	ID                string
	ExternalRef       string // id order di sisi gateway, unik
	BuyerID           string
	EventID           string
	Quantity          int
	UnitPrice         int64
	GrossAmount       int64
	GatewayFee        int64
	PlatformFee       int64
	NetPayout         int64
	Status            Status
	PaymentMethod     string
	PaymentInstrument *string // nomor VA / kode toko, nil sampai gateway kasih
	Oversold          bool
	ExpiresAt         time.Time
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

type Event struct {
	ID             string
	Name           string
	UnitPrice      int64
	TotalStock     int
	RemainingStock int
}

// FeeAudit ditulis sekali, tepat saat order jadi PAID. Tidak pernah di-update.
type FeeAudit struct {
	OrderID       string
	GrossAmount   int64
	GatewayFee    int64
	PlatformFee   int64
	NetPayout     int64
	PaymentMethod string
	RecordedAt    time.Time
}
