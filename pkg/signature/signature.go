package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const prefix = "sha256="

// Outcome is the result of a webhook signature check.
type Outcome int

const (
	Invalid Outcome = iota
	Valid
	// Unconfigured means no shared secret is available; the caller owns the policy.
	Unconfigured
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Unconfigured:
		return "unconfigured"
	default:
		return "invalid"
	}
}

// Sign returns the signature header value for body, formatted as "sha256=<lowercase hex>".
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against the HMAC-SHA256 of the exact raw body bytes.
// An empty secret or header is treated as absent. The comparison is constant time.
func Verify(body []byte, header, secret string) Outcome {
	if secret == "" {
		return Unconfigured
	}
	if header == "" {
		return Invalid
	}
	expected := Sign(body, secret)
	if !hmac.Equal([]byte(expected), []byte(header)) {
		return Invalid
	}
	return Valid
}
