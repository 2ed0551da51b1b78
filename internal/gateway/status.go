package gateway

import "github.com/ariefcatur/go-tickethub.git/internal/ledger"

// MapStatus menerjemahkan vocabulary gateway ke status ledger.
// ok=false artinya callback tidak memicu transisi (mis. "pending" yang cuma
// membawa nomor VA).
func MapStatus(transactionStatus, fraudStatus string) (to ledger.Status, ok bool) {
	switch transactionStatus {
	case "settlement":
		return ledger.StatusPaid, true
	case "capture":
		if fraudStatus == "challenge" {
			return "", false
		}
		return ledger.StatusPaid, true
	case "cancel", "expire":
		return ledger.StatusCancelled, true
	case "deny", "failure":
		return ledger.StatusFailed, true
	default: // "pending", "authorize", dll.
		return "", false
	}
}
