package alert

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ca-risken/secretops/pkg/event"
	"github.com/ca-risken/secretops/pkg/pattern"
)

var testSummary = event.Summary{Repository: "owner/repo", Pusher: "alice", Ref: "refs/heads/main", CommitsCount: 1}

func TestNewCredentialAlert(t *testing.T) {
	cases := []struct {
		name        string
		input       Remediation
		wantSubject string
		wantText    []string
	}{
		{
			name:        "OK deactivated",
			input:       Remediation{KeyID: "AKIA2E4G6J8K3M5P7R9T", Owner: "bob", Action: "DEACTIVATED"},
			wantSubject: "AWS Key Detected: AKIA2E4G6J8K3M5P7R9T - DEACTIVATED",
			wantText:    []string{"Owner: bob", "Action Taken: DEACTIVATED", "IMMEDIATE ACTIONS REQUIRED", "Repository: owner/repo"},
		},
		{
			name:        "OK owner not found",
			input:       Remediation{KeyID: "AKIA2E4G6J8K3M5P7R9T", Action: "OWNER_NOT_FOUND"},
			wantSubject: "AWS Key Detected: AKIA2E4G6J8K3M5P7R9T - OWNER_NOT_FOUND",
			wantText:    []string{"UNKNOWN (not found in IAM)"},
		},
		{
			name:        "OK failure carries error",
			input:       Remediation{KeyID: "AKIA2E4G6J8K3M5P7R9T", Owner: "bob", Action: "DEACTIVATION_FAILED", Error: "access denied"},
			wantSubject: "AWS Key Detected: AKIA2E4G6J8K3M5P7R9T - DEACTIVATION_FAILED",
			wantText:    []string{"Error: access denied"},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NewCredentialAlert(testSummary, c.input, nil)
			if got.Kind != KindCredential {
				t.Errorf("Unexpected kind: %s", got.Kind)
			}
			if got.Subject != c.wantSubject {
				t.Errorf("Unexpected subject: want=%q, got=%q", c.wantSubject, got.Subject)
			}
			for _, w := range c.wantText {
				if !strings.Contains(got.Message, w) {
					t.Errorf("Message does not contain %q:\n%s", w, got.Message)
				}
			}
			if _, err := uuid.Parse(got.ID); err != nil {
				t.Errorf("Unexpected id: %s", got.ID)
			}
		})
	}
}

func TestNewDetectionAlert(t *testing.T) {
	findings := []pattern.Finding{
		{PatternName: "GITHUB_TOKEN", Category: pattern.CategoryToken, Direction: pattern.DirectionAdded, Masked: "ghp_aB...zA4"},
		{PatternName: "PRIVATE_KEY", Category: pattern.CategoryPrivateKey, Direction: pattern.DirectionRemoved},
	}
	got := NewDetectionAlert(testSummary, findings)
	if got.Subject != "Secrets Detected: owner/repo (2 findings)" {
		t.Errorf("Unexpected subject: %s", got.Subject)
	}
	for _, w := range []string{"- GITHUB_TOKEN (token, added) ghp_aB...zA4", "- PRIVATE_KEY (private-key, removed)"} {
		if !strings.Contains(got.Message, w) {
			t.Errorf("Message does not contain %q:\n%s", w, got.Message)
		}
	}
	var decoded map[string]any
	body := got.Body()
	idx := strings.Index(body, "{")
	if err := json.Unmarshal([]byte(body[idx:]), &decoded); err != nil {
		t.Fatalf("Body payload is not JSON: %+v", err)
	}
	if recs, ok := decoded["recommendations"].([]any); !ok || len(recs) != 2 {
		t.Errorf("Unexpected recommendations: %+v", decoded["recommendations"])
	}
}

func TestOtherAlerts(t *testing.T) {
	cases := []struct {
		name     string
		input    *Alert
		wantKind Kind
		wantText string
	}{
		{name: "signature", input: NewSignatureFailureAlert("signature mismatch", "d-1"), wantKind: KindSignatureFailure, wantText: "Replay attack attempt"},
		{name: "invalid payload", input: NewInvalidPayloadAlert("unexpected EOF", "d-1"), wantKind: KindInvalidPayload, wantText: "unexpected EOF"},
		{name: "partial scan", input: NewPartialScanAlert(testSummary, []string{"diff fetch failed: c1"}), wantKind: KindPartialScan, wantText: "- diff fetch failed: c1"},
		{name: "clean", input: NewCleanAlert(testSummary), wantKind: KindClean, wantText: "Repository: owner/repo"},
		{name: "error with summary", input: NewErrorAlert("boom", &testSummary), wantKind: KindError, wantText: "Pusher: alice"},
		{name: "error without summary", input: NewErrorAlert("boom", nil), wantKind: KindError, wantText: "Secrets Detector Error: boom"},
		{
			name:     "gist",
			input:    NewGistAlert("https://gist.github.com/g1", "creds.env", []pattern.Finding{{PatternName: "GITHUB_TOKEN", Category: pattern.CategoryToken, Masked: "ghp_ab...wxyz"}}),
			wantKind: KindGistSecret,
			wantText: "- GITHUB_TOKEN (token) ghp_ab...wxyz",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.input.Kind != c.wantKind {
				t.Errorf("Unexpected kind: want=%s, got=%s", c.wantKind, c.input.Kind)
			}
			if !strings.Contains(c.input.Message, c.wantText) {
				t.Errorf("Message does not contain %q:\n%s", c.wantText, c.input.Message)
			}
		})
	}
}
