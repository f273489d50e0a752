package event

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	HeaderSignature = "X-Hub-Signature-256"
	HeaderEventType = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
)

// Request is the gateway-shaped envelope delivered by every transport.
type Request struct {
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

// Header looks a header up ignoring case. Missing headers return "".
func (r *Request) Header(name string) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (r *Request) EventType() string  { return strings.TrimSpace(r.Header(HeaderEventType)) }
func (r *Request) Signature() string  { return strings.TrimSpace(r.Header(HeaderSignature)) }
func (r *Request) DeliveryID() string { return r.Header(HeaderDelivery) }

// DecodeBody returns the raw body bytes, base64 decoded when the envelope says so.
// The signature is computed over these bytes.
func (r *Request) DecodeBody() ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil request")
	}
	if !r.IsBase64Encoded {
		return []byte(r.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 body: %w", err)
	}
	return b, nil
}
