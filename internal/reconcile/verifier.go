package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks webhook signatures against the gateway's shared key
// secret. In sandbox mode, or when the gateway sends no signature, events
// are accepted unconditionally. That relaxed-trust mode exists for local and
// integration testing and must not be enabled in production.
type Verifier struct {
	secret  string
	sandbox bool
}

// NewVerifier builds a signature verifier from the shared secret.
func NewVerifier(secret string, sandbox bool) *Verifier {
	return &Verifier{secret: secret, sandbox: sandbox}
}

// Verify reports whether the raw payload carries a valid HMAC-SHA256
// signature. The comparison is constant-time.
func (v *Verifier) Verify(payload []byte, signature string) bool {
	if v.sandbox || signature == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
