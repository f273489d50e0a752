package alert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ca-risken/secretops/pkg/event"
	"github.com/ca-risken/secretops/pkg/pattern"
)

type Kind string

const (
	KindCredential       Kind = "credential_detected"
	KindDetection        Kind = "secrets_detected"
	KindSignatureFailure Kind = "signature_failed"
	KindInvalidPayload   Kind = "invalid_payload"
	KindPartialScan      Kind = "partial_scan"
	KindClean            Kind = "clean"
	KindError            Kind = "error"
	KindGistSecret       Kind = "gist_secret_detected"
)

// Alert is a notification record. It is never modified after creation.
type Alert struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Subject   string         `json:"subject"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func newAlert(kind Kind, subject, message string, payload map[string]any) *Alert {
	return &Alert{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Message:   message,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Body is the published text: the human readable message followed by the JSON payload.
func (a *Alert) Body() string {
	if len(a.Payload) == 0 {
		return a.Message
	}
	buf, err := json.MarshalIndent(a.Payload, "", "  ")
	if err != nil {
		return a.Message
	}
	return fmt.Sprintf("%s\n\nDetails:\n%s", a.Message, string(buf))
}

// Remediation describes what happened to one detected cloud credential.
type Remediation struct {
	KeyID  string
	Owner  string
	Action string
	Error  string
}

func NewCredentialAlert(summary event.Summary, r Remediation, findings []pattern.Finding) *Alert {
	owner := r.Owner
	if owner == "" {
		owner = "UNKNOWN (not found in IAM)"
	}
	rec := recommendFor(pattern.CategoryCloudKey)
	var b strings.Builder
	b.WriteString("SECURITY ALERT: AWS Access Key Detected in Git Commit\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", now())
	fmt.Fprintf(&b, "Access Key ID: %s\n", r.KeyID)
	fmt.Fprintf(&b, "Owner: %s\n", owner)
	fmt.Fprintf(&b, "Action Taken: %s\n", r.Action)
	if r.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", r.Error)
	}
	writeSummary(&b, summary)
	b.WriteString("\n")
	b.WriteString(rec.Recommendation)

	payload := map[string]any{
		"commit_info":   summary,
		"access_key_id": r.KeyID,
		"owner":         r.Owner,
		"action":        r.Action,
		"risk":          rec.Risk,
	}
	if r.Error != "" {
		payload["error"] = r.Error
	}
	if len(findings) > 0 {
		payload["findings"] = findings
	}
	return newAlert(KindCredential, fmt.Sprintf("AWS Key Detected: %s - %s", r.KeyID, r.Action), b.String(), payload)
}

// NewDetectionAlert reports secrets that cannot be remediated automatically.
func NewDetectionAlert(summary event.Summary, findings []pattern.Finding) *Alert {
	var b strings.Builder
	b.WriteString("SECURITY ALERT: Secrets Detected in Git Push\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", now())
	writeSummary(&b, summary)
	b.WriteString("\nFindings:\n")
	categories := []string{}
	seen := map[string]struct{}{}
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s (%s, %s)", f.PatternName, f.Category, f.Direction)
		if f.Masked != "" {
			fmt.Fprintf(&b, " %s", f.Masked)
		}
		b.WriteString("\n")
		if _, ok := seen[f.Category]; !ok {
			seen[f.Category] = struct{}{}
			categories = append(categories, f.Category)
		}
	}
	recs := make([]*Recommend, 0, len(categories))
	for _, c := range categories {
		rec := recommendFor(c)
		recs = append(recs, &rec)
	}
	b.WriteString("\n")
	b.WriteString(recommendFor("").Recommendation)
	return newAlert(KindDetection,
		fmt.Sprintf("Secrets Detected: %s (%d findings)", summary.Repository, len(findings)),
		b.String(),
		map[string]any{
			"commit_info":     summary,
			"findings":        findings,
			"recommendations": recs,
		})
}

func NewSignatureFailureAlert(reason, deliveryID string) *Alert {
	msg := fmt.Sprintf(`SECURITY WARNING: GitHub webhook signature verification failed

Timestamp: %s
Reason: %s

This may indicate:
1. Webhook secret mismatch between GitHub and the detector
2. Request tampering
3. Replay attack attempt

Please verify GITHUB_WEBHOOK_SECRET configuration.`, now(), reason)
	return newAlert(KindSignatureFailure, "Webhook Signature Verification Failed", msg,
		map[string]any{"reason": reason, "delivery_id": deliveryID})
}

func NewInvalidPayloadAlert(reason, deliveryID string) *Alert {
	msg := fmt.Sprintf("WARNING: Received a webhook payload that could not be parsed\n\nTimestamp: %s\nReason: %s", now(), reason)
	return newAlert(KindInvalidPayload, "Invalid Webhook Payload", msg,
		map[string]any{"reason": reason, "delivery_id": deliveryID})
}

// NewMalformedPushAlert reports a push whose commit list could not be accepted, with the
// findings of a flat scan over the raw payload.
func NewMalformedPushAlert(reason, deliveryID string, findings []pattern.Finding) *Alert {
	var b strings.Builder
	b.WriteString("WARNING: Received a push with a malformed commit list\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\nReason: %s\n", now(), reason)
	if len(findings) > 0 {
		b.WriteString("\nSecrets found in the raw payload:\n")
		for _, f := range findings {
			fmt.Fprintf(&b, "- %s (%s) %s\n", f.PatternName, f.Category, f.Masked)
		}
		b.WriteString("\nThe push was not remediated automatically. Review it manually.")
	}
	subject := "Malformed Push Payload"
	if len(findings) > 0 {
		subject = fmt.Sprintf("Secrets Detected in Malformed Push (%d findings)", len(findings))
	}
	return newAlert(KindInvalidPayload, subject, b.String(),
		map[string]any{"reason": reason, "delivery_id": deliveryID, "findings": findings})
}

// NewPartialScanAlert reports that part of a push could not be scanned.
func NewPartialScanAlert(summary event.Summary, warnings []string) *Alert {
	var b strings.Builder
	b.WriteString("WARNING: Secrets scan completed with gaps\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", now())
	writeSummary(&b, summary)
	b.WriteString("\nWarnings:\n")
	for _, w := range warnings {
		fmt.Fprintf(&b, "- %s\n", w)
	}
	b.WriteString("\nNo secrets were found in the content that could be scanned. Review the commits above manually.")
	return newAlert(KindPartialScan, fmt.Sprintf("Secrets Scan Incomplete: %s", summary.Repository), b.String(),
		map[string]any{"commit_info": summary, "warnings": warnings})
}

func NewCleanAlert(summary event.Summary) *Alert {
	var b strings.Builder
	b.WriteString("No secrets detected in Git push\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", now())
	writeSummary(&b, summary)
	return newAlert(KindClean, fmt.Sprintf("No Secrets Detected: %s", summary.Repository), b.String(),
		map[string]any{"commit_info": summary})
}

// NewErrorAlert reports an unexpected failure. summary may be nil when the event was never parsed.
func NewErrorAlert(errMsg string, summary *event.Summary) *Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "Secrets Detector Error: %s\n\nTimestamp: %s\n", errMsg, now())
	payload := map[string]any{"error": errMsg}
	if summary != nil {
		writeSummary(&b, *summary)
		payload["commit_info"] = *summary
	}
	return newAlert(KindError, "Secrets Detector Error", b.String(), payload)
}

// NewGistAlert reports secrets found in one file of a public gist.
func NewGistAlert(gistURL, fileName string, findings []pattern.Finding) *Alert {
	var b strings.Builder
	b.WriteString("SECURITY ALERT: Secret Detected in Public Gist\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", now())
	fmt.Fprintf(&b, "Gist: %s\n", gistURL)
	fmt.Fprintf(&b, "File: %s\n", fileName)
	b.WriteString("\nFindings:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s (%s) %s\n", f.PatternName, f.Category, f.Masked)
	}
	return newAlert(KindGistSecret, fmt.Sprintf("Public Gist Secret Detected: %s", fileName), b.String(),
		map[string]any{
			"source":   "GitHub Public Gist",
			"gist_url": gistURL,
			"file":     fileName,
			"findings": findings,
		})
}

func writeSummary(b *strings.Builder, s event.Summary) {
	b.WriteString("\nCommit Information:\n")
	fmt.Fprintf(b, "  Repository: %s\n", s.Repository)
	fmt.Fprintf(b, "  Pusher: %s\n", s.Pusher)
	fmt.Fprintf(b, "  Ref: %s\n", s.Ref)
	fmt.Fprintf(b, "  Commits: %d\n", s.CommitsCount)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
