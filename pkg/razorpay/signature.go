package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Signer computes and checks payment signatures with the server-side secret.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer for secret.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errKeySecretRequired
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns hex(HMAC-SHA256(secret, providerOrderID + "|" + providerPaymentID)).
func (s *Signer) Sign(providerOrderID, providerPaymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches. The comparison is constant time.
func (s *Signer) Verify(providerOrderID, providerPaymentID, signature string) bool {
	if s == nil || signature == "" {
		return false
	}
	expected := s.Sign(providerOrderID, providerPaymentID)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}
