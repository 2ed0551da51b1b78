package gateway

import (
	"testing"

	"github.com/ariefcatur/go-tickethub.git/internal/ledger"
)

func TestValidSignature(t *testing.T) {
	const serverKey = "sb-server-key"
	n := Notification{
		OrderID:     "ref-123",
		StatusCode:  "200",
		GrossAmount: "100000.00",
	}
	n.SignatureKey = Sign(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)

	if !ValidSignature(n, serverKey) {
		t.Fatal("signature with the right server key must verify")
	}
	if ValidSignature(n, "wrong-key") {
		t.Fatal("signature with the wrong server key must not verify")
	}

	tampered := n
	tampered.GrossAmount = "1.00"
	if ValidSignature(tampered, serverKey) {
		t.Fatal("tampered amount must not verify")
	}
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		txStatus, fraud string
		want            ledger.Status
		ok              bool
	}{
		{"settlement", "", ledger.StatusPaid, true},
		{"capture", "accept", ledger.StatusPaid, true},
		{"capture", "challenge", "", false},
		{"cancel", "", ledger.StatusCancelled, true},
		{"expire", "", ledger.StatusCancelled, true},
		{"deny", "", ledger.StatusFailed, true},
		{"failure", "", ledger.StatusFailed, true},
		{"pending", "", "", false},
		{"authorize", "", "", false},
	}
	for _, tc := range cases {
		got, ok := MapStatus(tc.txStatus, tc.fraud)
		if got != tc.want || ok != tc.ok {
			t.Errorf("MapStatus(%q, %q) = (%s, %v), want (%s, %v)",
				tc.txStatus, tc.fraud, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNotificationInstrument(t *testing.T) {
	n := Notification{VANumbers: []VANumber{{Bank: "bca", VANumber: "1234567890"}}}
	if got := n.Instrument(); got != "1234567890" {
		t.Fatalf("va_numbers first entry wins, got %q", got)
	}
	n = Notification{PermataVANumber: "999000111"}
	if got := n.Instrument(); got != "999000111" {
		t.Fatalf("permata fallback, got %q", got)
	}
	n = Notification{}
	if got := n.Instrument(); got != "" {
		t.Fatalf("no instrument yet, got %q", got)
	}
}
