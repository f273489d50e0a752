package pattern

import (
	"context"
	"sort"
	"strings"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/ca-risken/secretops/pkg/common"
)

const DefaultEntropyThreshold = 3.7

// Scanner applies a registry to text. It holds no mutable state and is safe for concurrent use.
type Scanner struct {
	registry  *Registry
	threshold float64
	logger    logging.Logger
}

// NewScanner returns a scanner. A threshold of 0 disables the entropy gate.
func NewScanner(registry *Registry, threshold float64, l logging.Logger) *Scanner {
	return &Scanner{
		registry:  registry,
		threshold: threshold,
		logger:    l,
	}
}

// Scan scans diff formatted text. Lines starting with "+" are added content, lines
// starting with "-" are removed content, file headers and context lines are skipped.
func (s *Scanner) Scan(ctx context.Context, text string) (added, removed []Finding) {
	addedSet, removedSet := NewFindingSet(), NewFindingSet()
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+"):
			s.scanLine(ctx, line[1:], DirectionAdded, addedSet)
		case strings.HasPrefix(line, "-"):
			s.scanLine(ctx, line[1:], DirectionRemoved, removedSet)
		}
	}
	return addedSet.Findings(), removedSet.Findings()
}

// ScanFlat scans every line of text and reports findings as added content.
func (s *Scanner) ScanFlat(ctx context.Context, text string) []Finding {
	set := NewFindingSet()
	for _, line := range strings.Split(text, "\n") {
		s.scanLine(ctx, line, DirectionAdded, set)
	}
	return set.Findings()
}

func (s *Scanner) scanLine(ctx context.Context, line string, d Direction, set *FindingSet) {
	for i := range s.registry.patterns {
		p := &s.registry.patterns[i]
		if set.Has(p.Name, d) {
			continue
		}
		for _, m := range p.Regex.FindAllStringSubmatch(line, -1) {
			secret := p.secret(m)
			entropy, ok := s.passGate(ctx, p, secret)
			if !ok {
				continue
			}
			set.Add(Finding{
				PatternName: p.Name,
				Category:    p.Category,
				Direction:   d,
				Masked:      common.MaskSecret(secret),
				Entropy:     entropy,
			})
			break
		}
	}
}

// ExtractCredentials returns the literal values of remediable patterns found anywhere
// in text, deduplicated and sorted.
func (s *Scanner) ExtractCredentials(ctx context.Context, text string) []CredentialMatch {
	seen := map[string]struct{}{}
	var matches []CredentialMatch
	for i := range s.registry.patterns {
		p := &s.registry.patterns[i]
		if !p.Remediable {
			continue
		}
		for _, m := range p.Regex.FindAllStringSubmatch(text, -1) {
			value := p.secret(m)
			if _, ok := seen[value]; ok {
				continue
			}
			if _, ok := s.passGate(ctx, p, value); !ok {
				continue
			}
			seen[value] = struct{}{}
			matches = append(matches, CredentialMatch{Value: value, PatternName: p.Name})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Value < matches[j].Value })
	return matches
}

func (s *Scanner) passGate(ctx context.Context, p *SignaturePattern, value string) (float64, bool) {
	if !p.Extract {
		return 0, true
	}
	entropy := ShannonEntropy(value)
	if s.threshold <= 0 || entropy > s.threshold {
		return entropy, true
	}
	if s.logger != nil {
		s.logger.Debugf(ctx, "Rejected low entropy candidate: pattern=%s, entropy=%.2f, threshold=%.2f", p.Name, entropy, s.threshold)
	}
	return entropy, false
}
