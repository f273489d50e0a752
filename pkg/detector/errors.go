package detector

import (
	"errors"
	"fmt"

	"github.com/ca-risken/secretops/pkg/signature"
)

// AuthenticationError is a rejected or unverifiable signature.
type AuthenticationError struct {
	Outcome signature.Outcome
}

func (e *AuthenticationError) Error() string {
	switch e.Outcome {
	case signature.Unconfigured:
		return "webhook secret is not configured, unsigned events are not allowed"
	default:
		return "signature mismatch"
	}
}

// PayloadError is a body that cannot be decoded, parsed or validated.
type PayloadError struct {
	Err error
}

func (e *PayloadError) Error() string { return fmt.Sprintf("invalid payload: %v", e.Err) }
func (e *PayloadError) Unwrap() error { return e.Err }

// ScanError is a part of the corpus that could not be scanned. It never aborts a scan.
type ScanError struct {
	Stage string
	Err   error
}

func (e *ScanError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *ScanError) Unwrap() error { return e.Err }

type LookupError struct {
	Err error
}

func (e *LookupError) Error() string { return fmt.Sprintf("owner lookup failed: %v", e.Err) }
func (e *LookupError) Unwrap() error { return e.Err }

type RemediationError struct {
	Err error
}

func (e *RemediationError) Error() string { return fmt.Sprintf("deactivation failed: %v", e.Err) }
func (e *RemediationError) Unwrap() error { return e.Err }

func statusFor(err error) Status {
	var (
		authErr    *AuthenticationError
		payloadErr *PayloadError
	)
	switch {
	case err == nil:
		return StatusNoKeysDetected
	case errors.As(err, &authErr):
		return StatusSignatureFailed
	case errors.As(err, &payloadErr):
		return StatusInvalidPayload
	default:
		return StatusError
	}
}
