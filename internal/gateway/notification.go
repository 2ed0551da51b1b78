package gateway

type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// Notification adalah payload callback dari gateway pembayaran.
// Field mengikuti vocabulary gateway apa adanya; mapping ke status internal
// ada di MapStatus.
type Notification struct {
	TransactionID     string     `json:"transaction_id"`
	OrderID           string     `json:"order_id"` // = external_ref di ledger
	StatusCode        string     `json:"status_code"`
	GrossAmount       string     `json:"gross_amount"`
	SignatureKey      string     `json:"signature_key"`
	TransactionStatus string     `json:"transaction_status"`
	FraudStatus       string     `json:"fraud_status"`
	PaymentType       string     `json:"payment_type"`
	PermataVANumber   string     `json:"permata_va_number,omitempty"`
	VANumbers         []VANumber `json:"va_numbers,omitempty"`
	BillKey           string     `json:"bill_key,omitempty"`
	StoreCode         string     `json:"store,omitempty"`
}

// Instrument mengambil identitas bayar yang sudah di-assign gateway
// (nomor VA / bill key / kode toko). Kosong kalau belum ada.
func (n Notification) Instrument() string {
	if len(n.VANumbers) > 0 {
		return n.VANumbers[0].VANumber
	}
	if n.PermataVANumber != "" {
		return n.PermataVANumber
	}
	if n.BillKey != "" {
		return n.BillKey
	}
	return n.StoreCode
}
