package detector

import (
	"time"

	"github.com/ca-risken/secretops/pkg/identity"
	"github.com/ca-risken/secretops/pkg/pattern"
)

type Status string

const (
	StatusNoKeysDetected  Status = "no_keys_detected"
	StatusProcessed       Status = "processed"
	StatusSignatureFailed Status = "signature_failed"
	StatusInvalidPayload  Status = "invalid_payload"
	StatusEventIgnored    Status = "event_ignored"
	StatusError           Status = "error"
)

// Response is the outcome of one handled event.
type Response struct {
	Status       Status `json:"status"`
	KeysDetected int    `json:"keys_detected"`
	Findings     int    `json:"findings"`
	Message      string `json:"message,omitempty"`

	Results []RemediationResult `json:"-"`
}

type Action string

const (
	ActionDeactivated        Action = "deactivated"
	ActionDeactivationFailed Action = "deactivation-failed"
	ActionOwnerNotFound      Action = "owner-not-found"
)

// Label is the form used in alert subjects.
func (a Action) Label() string {
	switch a {
	case ActionDeactivated:
		return "DEACTIVATED"
	case ActionDeactivationFailed:
		return "DEACTIVATION_FAILED"
	case ActionOwnerNotFound:
		return "KEY_NOT_FOUND_IN_IAM"
	default:
		return "UNKNOWN"
	}
}

type RemediationResult struct {
	Credential pattern.CredentialMatch
	Owner      *identity.Owner
	Action     Action
	Err        error
	Timestamp  time.Time
}
