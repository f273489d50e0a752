package detector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ca-risken/secretops/pkg/event"
	"github.com/ca-risken/secretops/pkg/pattern"
)

const diffFetchConcurrency = 4

type scanResult struct {
	added       []pattern.Finding
	removed     []pattern.Finding
	credentials []pattern.CredentialMatch
	warnings    []*ScanError
}

func (r *scanResult) warningMessages() []string {
	msgs := make([]string, 0, len(r.warnings))
	for _, w := range r.warnings {
		msgs = append(msgs, w.Error())
	}
	return msgs
}

func (r *scanResult) findingsOf(patternName string) []pattern.Finding {
	var list []pattern.Finding
	for _, f := range append(append([]pattern.Finding{}, r.added...), r.removed...) {
		if f.PatternName == patternName {
			list = append(list, f)
		}
	}
	return list
}

// unremediable returns the findings of patterns that produced no credential to deactivate.
func (r *scanResult) unremediable() []pattern.Finding {
	remediable := map[string]struct{}{}
	for _, c := range r.credentials {
		remediable[c.PatternName] = struct{}{}
	}
	var list []pattern.Finding
	for _, f := range append(append([]pattern.Finding{}, r.added...), r.removed...) {
		if _, ok := remediable[f.PatternName]; !ok {
			list = append(list, f)
		}
	}
	return list
}

func (h *Handler) scan(ctx context.Context, ev *event.Event) *scanResult {
	result := &scanResult{}
	corpus := event.ExtractCorpus(ev)
	if len(corpus.MissingDiffs) > 0 && h.diffFetcher != nil {
		diffs, warnings := h.fetchDiffs(ctx, ev, corpus.MissingDiffs)
		result.warnings = append(result.warnings, warnings...)
		if len(diffs) > 0 {
			corpus = event.ExtractCorpus(ev.WithDiffs(diffs))
		}
	}

	diffText := corpus.Diff()
	added, removed := h.scanner.Scan(ctx, diffText)
	addedSet := pattern.NewFindingSet()
	for _, f := range added {
		addedSet.Add(f)
	}
	for _, f := range h.scanner.ScanFlat(ctx, corpus.Metadata()) {
		addedSet.Add(f)
	}
	if h.gitleaks != nil {
		findings, err := h.gitleaks.Scan(ctx, changedContent(corpus.Metadata(), diffText, false))
		if err != nil {
			h.logger.Warnf(ctx, "Failed to run gitleaks: err=%+v", err)
			result.warnings = append(result.warnings, &ScanError{Stage: "gitleaks", Err: err})
		}
		for _, f := range findings {
			addedSet.Add(f)
		}
	}
	result.added = addedSet.Findings()
	result.removed = removed
	result.credentials = h.scanner.ExtractCredentials(ctx, changedContent(corpus.Metadata(), diffText, true))
	return result
}

func (h *Handler) fetchDiffs(ctx context.Context, ev *event.Event, commitIDs []string) (map[string]string, []*ScanError) {
	var (
		mu       sync.Mutex
		diffs    = make(map[string]string, len(commitIDs))
		warnings []*ScanError
	)
	if ev.Repository == "" {
		return diffs, []*ScanError{{Stage: "diff fetch", Err: fmt.Errorf("repository is unknown, %d commit(s) scanned without diff", len(commitIDs))}}
	}
	var g errgroup.Group
	g.SetLimit(diffFetchConcurrency)
	for _, id := range commitIDs {
		id := id
		g.Go(func() error {
			diff, err := h.diffFetcher.FetchCommitDiff(ctx, ev.Repository, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.logger.Warnf(ctx, "Failed to fetch diff: repository=%s, commit=%s, err=%+v", ev.Repository, id, err)
				warnings = append(warnings, &ScanError{Stage: "diff fetch " + id, Err: err})
				return nil
			}
			diffs[id] = diff
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Stage < warnings[j].Stage })
	return diffs, warnings
}

// changedContent is the metadata followed by the diff lines the push added, and also
// the removed ones when withRemoved is set. Context lines and file headers are left out.
func changedContent(metadata, diff string, withRemoved bool) string {
	var b strings.Builder
	b.WriteString(metadata)
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"), withRemoved && strings.HasPrefix(line, "-"):
			b.WriteString("\n")
			b.WriteString(line[1:])
		}
	}
	return b.String()
}
