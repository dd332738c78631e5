package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CallbackSigner authenticates the query parameters embedded in checkout
// callback URLs. A nil or secretless signer signs nothing and accepts all.
type CallbackSigner struct {
	secret []byte
}

func NewCallbackSigner(secret string) *CallbackSigner {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil
	}
	return &CallbackSigner{secret: []byte(s)}
}

func (s *CallbackSigner) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Sign returns the hex HMAC-SHA256 over the canonical parameter string.
func (s *CallbackSigner) Sign(p CallbackParams) string {
	if !s.Enabled() {
		return ""
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(p.canonical()))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *CallbackSigner) Verify(p CallbackParams, signature string) bool {
	if !s.Enabled() {
		return true
	}
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return false
	}
	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(p.canonical()))
	return hmac.Equal(mac.Sum(nil), decoded)
}
