package gitleaks

import (
	"github.com/zricethezav/gitleaks/v8/report"

	"github.com/ca-risken/secretops/pkg/common"
	"github.com/ca-risken/secretops/pkg/pattern"
)

const (
	findingPrefix = "gitleaks:"
	category      = "gitleaks"
)

// toFindings keeps one finding per rule, like the pattern scanner does per pattern.
func toFindings(leaks []report.Finding) []pattern.Finding {
	set := pattern.NewFindingSet()
	for _, leak := range leaks {
		set.Add(pattern.Finding{
			PatternName: findingPrefix + leak.RuleID,
			Category:    category,
			Direction:   pattern.DirectionAdded,
			Masked:      common.MaskSecret(leak.Secret),
			Entropy:     float64(leak.Entropy),
		})
	}
	return set.Findings()
}
