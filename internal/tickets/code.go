package tickets

import (
	"crypto/rand"
	"encoding/base32"
)

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewCode menghasilkan kode tiket 160-bit dari crypto/rand: tidak bisa
// ditebak, unik secara praktis, dan tetap enak dibaca scanner.
func NewCode() (string, error) {
	var buf [20]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "TKT-" + codeEncoding.EncodeToString(buf[:]), nil
}
