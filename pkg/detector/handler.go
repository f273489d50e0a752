package detector

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/google/uuid"

	"github.com/ca-risken/secretops/pkg/alert"
	"github.com/ca-risken/secretops/pkg/event"
	"github.com/ca-risken/secretops/pkg/identity"
	"github.com/ca-risken/secretops/pkg/pattern"
	"github.com/ca-risken/secretops/pkg/signature"
)

const (
	defaultRemediationTimeout     = 30 * time.Second
	defaultRemediationConcurrency = 4
)

type ContentScanner interface {
	Scan(ctx context.Context, text string) (added, removed []pattern.Finding)
	ScanFlat(ctx context.Context, text string) []pattern.Finding
	ExtractCredentials(ctx context.Context, text string) []pattern.CredentialMatch
}

type SupplementalScanner interface {
	Scan(ctx context.Context, text string) ([]pattern.Finding, error)
}

type DiffFetcher interface {
	FetchCommitDiff(ctx context.Context, repoFullName, sha string) (string, error)
}

// OwnerResolver separates a failed lookup from a missing owner so that results can
// carry a LookupError.
type OwnerResolver interface {
	LookupOwner(ctx context.Context, cred pattern.CredentialMatch) (*identity.Owner, error)
}

type Remediator interface {
	Deactivate(ctx context.Context, owner *identity.Owner, cred pattern.CredentialMatch) error
}

type Option func(*Handler)

// WithGitleaks adds a supplemental scan over the added content.
func WithGitleaks(s SupplementalScanner) Option {
	return func(h *Handler) { h.gitleaks = s }
}

// WithDiffFetcher enables fetching diffs of commits delivered without one.
func WithDiffFetcher(f DiffFetcher) Option {
	return func(h *Handler) { h.diffFetcher = f }
}

type Handler struct {
	webhookSecret          string
	allowUnsigned          bool
	alertOnClean           bool
	alertOnInvalidPayload  bool
	remediationTimeout     time.Duration
	remediationConcurrency int

	scanner     ContentScanner
	gitleaks    SupplementalScanner
	diffFetcher DiffFetcher
	owners      OwnerResolver
	remediator  Remediator
	dispatcher  alert.Dispatcher
	logger      logging.Logger
}

func NewHandler(
	conf *AppConfig,
	scanner ContentScanner,
	owners OwnerResolver,
	remediator Remediator,
	dispatcher alert.Dispatcher,
	l logging.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		webhookSecret:          conf.GithubWebhookSecret,
		allowUnsigned:          conf.AllowUnsignedEvents,
		alertOnClean:           conf.AlertOnClean,
		alertOnInvalidPayload:  conf.AlertOnInvalidPayload,
		remediationTimeout:     conf.RemediationTimeout,
		remediationConcurrency: conf.RemediationConcurrency,
		scanner:                scanner,
		owners:                 owners,
		remediator:             remediator,
		dispatcher:             dispatcher,
		logger:                 l,
	}
	if h.remediationTimeout <= 0 {
		h.remediationTimeout = defaultRemediationTimeout
	}
	if h.remediationConcurrency <= 0 {
		h.remediationConcurrency = defaultRemediationConcurrency
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle runs one event through the pipeline. It always returns a response and never panics.
func (h *Handler) Handle(ctx context.Context, req *event.Request) (resp *Response) {
	deliveryID := req.DeliveryID()
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	var summary *event.Summary
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorf(ctx, "Recovered from panic: delivery_id=%s, panic=%v, stack=%s", deliveryID, r, string(debug.Stack()))
			resp = h.fail(ctx, fmt.Errorf("panic: %v", r), summary)
		}
	}()

	eventType := req.EventType()
	if eventType != event.EventPush {
		h.logger.Infof(ctx, "Ignored event: delivery_id=%s, event_type=%q", deliveryID, eventType)
		return &Response{Status: StatusEventIgnored, Message: fmt.Sprintf("event type %q is not scanned", eventType)}
	}

	body, err := req.DecodeBody()
	if err != nil {
		return h.rejectPayload(ctx, deliveryID, err)
	}
	if err := h.verify(ctx, deliveryID, body, req.Signature()); err != nil {
		h.logger.Warnf(ctx, "Rejected event: delivery_id=%s, err=%+v", deliveryID, err)
		h.dispatcher.Dispatch(ctx, alert.NewSignatureFailureAlert(err.Error(), deliveryID))
		return &Response{Status: statusFor(err), Message: err.Error()}
	}

	ev, err := event.ParsePush(body)
	if err != nil {
		var commitErr *event.CommitError
		if errors.As(err, &commitErr) {
			return h.rejectCommits(ctx, deliveryID, body, err)
		}
		return h.rejectPayload(ctx, deliveryID, err)
	}
	s := ev.Summary()
	summary = &s
	h.logger.Infof(ctx, "Processing push: delivery_id=%s, repository=%s, pusher=%s, ref=%s, commits=%d",
		deliveryID, s.Repository, s.Pusher, s.Ref, s.CommitsCount)

	result := h.scan(ctx, ev)
	resp = &Response{
		KeysDetected: len(result.credentials),
		Findings:     len(result.added) + len(result.removed),
	}
	if len(result.credentials) == 0 && resp.Findings == 0 {
		resp.Status = StatusNoKeysDetected
		switch {
		case len(result.warnings) > 0:
			h.dispatcher.Dispatch(ctx, alert.NewPartialScanAlert(s, result.warningMessages()))
			resp.Message = "scan incomplete"
		case h.alertOnClean:
			h.dispatcher.Dispatch(ctx, alert.NewCleanAlert(s))
		}
		h.logger.Infof(ctx, "No secrets detected: delivery_id=%s, warnings=%d", deliveryID, len(result.warnings))
		return resp
	}

	resp.Status = StatusProcessed
	if len(result.credentials) > 0 {
		resp.Results = h.remediateAll(ctx, result.credentials)
		for _, r := range resp.Results {
			h.dispatcher.Dispatch(ctx, alert.NewCredentialAlert(s, toRemediation(r), result.findingsOf(r.Credential.PatternName)))
		}
	}
	if others := result.unremediable(); len(others) > 0 {
		h.dispatcher.Dispatch(ctx, alert.NewDetectionAlert(s, others))
	}
	h.logger.Infof(ctx, "Processed push: delivery_id=%s, keys_detected=%d, findings=%d, warnings=%d",
		deliveryID, resp.KeysDetected, resp.Findings, len(result.warnings))
	return resp
}

func (h *Handler) verify(ctx context.Context, deliveryID string, body []byte, header string) error {
	switch outcome := signature.Verify(body, header, h.webhookSecret); outcome {
	case signature.Valid:
		return nil
	case signature.Unconfigured:
		if h.allowUnsigned {
			h.logger.Warnf(ctx, "Webhook secret is not configured, accepting unsigned event: delivery_id=%s", deliveryID)
			return nil
		}
		return &AuthenticationError{Outcome: outcome}
	default:
		return &AuthenticationError{Outcome: outcome}
	}
}

func (h *Handler) rejectPayload(ctx context.Context, deliveryID string, err error) *Response {
	perr := &PayloadError{Err: err}
	h.logger.Warnf(ctx, "Invalid payload: delivery_id=%s, err=%+v", deliveryID, err)
	if h.alertOnInvalidPayload {
		h.dispatcher.Dispatch(ctx, alert.NewInvalidPayloadAlert(err.Error(), deliveryID))
	}
	return &Response{Status: statusFor(perr), Message: perr.Error()}
}

// rejectCommits always alerts: the payload is authentic, so a bad commit list must not hide a secret.
func (h *Handler) rejectCommits(ctx context.Context, deliveryID string, body []byte, err error) *Response {
	perr := &PayloadError{Err: err}
	findings := h.scanner.ScanFlat(ctx, string(body))
	h.logger.Warnf(ctx, "Malformed commit list: delivery_id=%s, findings=%d, err=%+v", deliveryID, len(findings), err)
	h.dispatcher.Dispatch(ctx, alert.NewMalformedPushAlert(err.Error(), deliveryID, findings))
	return &Response{Status: statusFor(perr), Findings: len(findings), Message: perr.Error()}
}

func (h *Handler) fail(ctx context.Context, err error, summary *event.Summary) *Response {
	h.logger.Notifyf(ctx, logging.ErrorLevel, "Failed to handle event: err=%+v", err)
	h.dispatcher.Dispatch(ctx, alert.NewErrorAlert(err.Error(), summary))
	return &Response{Status: statusFor(err), Message: err.Error()}
}

func toRemediation(r RemediationResult) alert.Remediation {
	rem := alert.Remediation{
		KeyID:  r.Credential.Value,
		Action: r.Action.Label(),
	}
	if r.Owner != nil {
		rem.Owner = r.Owner.UserName
	}
	if r.Err != nil {
		rem.Error = r.Err.Error()
	}
	return rem
}
