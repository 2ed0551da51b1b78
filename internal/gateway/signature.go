package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Sign menghitung signature callback ala gateway:
// sha512(order_id + status_code + gross_amount + server_key), hex lowercase.
func Sign(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// ValidSignature memverifikasi keaslian notifikasi dengan shared secret.
func ValidSignature(n Notification, serverKey string) bool {
	want := Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) == 1
}
