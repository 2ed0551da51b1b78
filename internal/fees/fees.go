package fees

import "errors"

var ErrInvalidAmount = errors.New("gross amount must be positive")

// Breakdown dipersist atomik bersama transisi ke PAID, dan disalin ke
// fee_audit sebagai jejak append-only.
type Breakdown struct {
	GatewayFee  int64 `json:"gateway_fee"`
	PlatformFee int64 `json:"platform_fee"`
	TotalFee    int64 `json:"total_fee"`
	NetPayout   int64 `json:"net_payout"`
}

type Calculator struct {
	PlatformFeePercent int64
}

// Calculate murni & deterministik. Platform fee = floor(gross * percent / 100);
// sisa pembulatan terserap ke platform fee, tidak pernah menambah net payout.
func (c Calculator) Calculate(gross int64, paymentMethod string, gatewayFee int64) (Breakdown, error) {
	if gross <= 0 {
		return Breakdown{}, ErrInvalidAmount
	}
	if gatewayFee < 0 {
		gatewayFee = DefaultGatewayFee(paymentMethod)
	}

	platform := gross * c.PlatformFeePercent / 100 // floor, integer division
	total := gatewayFee + platform
	return Breakdown{
		GatewayFee:  gatewayFee,
		PlatformFee: platform,
		TotalFee:    total,
		NetPayout:   gross - total,
	}, nil
}

// DefaultGatewayFee dipakai bila callback gateway tidak menyebut nominal fee.
// Tarif flat per metode, satuan rupiah.
func DefaultGatewayFee(paymentMethod string) int64 {
	switch paymentMethod {
	case "bank_transfer", "echannel":
		return 4000
	case "cstore":
		return 5000
	default:
		return 4000
	}
}
