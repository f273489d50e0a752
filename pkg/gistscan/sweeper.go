package gistscan

import (
	"context"

	"github.com/ca-risken/common/pkg/logging"

	"github.com/ca-risken/secretops/pkg/alert"
	"github.com/ca-risken/secretops/pkg/github"
	"github.com/ca-risken/secretops/pkg/pattern"
)

const DefaultLimit = 10

type GistSource interface {
	ListPublicGistIDs(ctx context.Context, limit int) ([]string, error)
	GetGist(ctx context.Context, id string) (*github.PublicGist, error)
}

type FlatScanner interface {
	ScanFlat(ctx context.Context, text string) []pattern.Finding
}

type SupplementalScanner interface {
	Scan(ctx context.Context, text string) ([]pattern.Finding, error)
}

type Result struct {
	Gists        int
	Files        int
	FilesFlagged int
	Errors       int
}

type Sweeper struct {
	source     GistSource
	scanner    FlatScanner
	gitleaks   SupplementalScanner
	dispatcher alert.Dispatcher
	limit      int
	logger     logging.Logger
}

// NewSweeper scans the latest limit public gists per sweep. gitleaks may be nil.
func NewSweeper(source GistSource, scanner FlatScanner, gitleaks SupplementalScanner, dispatcher alert.Dispatcher, limit int, l logging.Logger) *Sweeper {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Sweeper{
		source:     source,
		scanner:    scanner,
		gitleaks:   gitleaks,
		dispatcher: dispatcher,
		limit:      limit,
		logger:     l,
	}
}

// Sweep alerts once per gist file with findings. A gist that cannot be read is
// counted and skipped; only a failed listing aborts the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	s.logger.Info(ctx, "Start public gist sweep")
	ids, err := s.source.ListPublicGistIDs(ctx, s.limit)
	if err != nil {
		return nil, err
	}
	s.logger.Infof(ctx, "Fetched public gists: count=%d", len(ids))

	result := &Result{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		gist, err := s.source.GetGist(ctx, id)
		if err != nil {
			s.logger.Warnf(ctx, "Failed to get gist: id=%s, err=%+v", id, err)
			result.Errors++
			continue
		}
		result.Gists++
		for _, f := range gist.Files {
			result.Files++
			findings := s.scanFile(ctx, f)
			if len(findings) == 0 {
				continue
			}
			result.FilesFlagged++
			s.logger.Warnf(ctx, "Secret found in public gist: url=%s, file=%s, findings=%d", gist.HTMLURL, f.Name, len(findings))
			s.dispatcher.Dispatch(ctx, alert.NewGistAlert(gist.HTMLURL, f.Name, findings))
		}
	}
	s.logger.Infof(ctx, "Completed public gist sweep: gists=%d, files=%d, flagged=%d, errors=%d",
		result.Gists, result.Files, result.FilesFlagged, result.Errors)
	return result, nil
}

func (s *Sweeper) scanFile(ctx context.Context, f github.GistFile) []pattern.Finding {
	set := pattern.NewFindingSet()
	for _, finding := range s.scanner.ScanFlat(ctx, f.Content) {
		set.Add(finding)
	}
	if s.gitleaks != nil {
		findings, err := s.gitleaks.Scan(ctx, f.Content)
		if err != nil {
			s.logger.Warnf(ctx, "Failed to run gitleaks: file=%s, err=%+v", f.Name, err)
		}
		for _, finding := range findings {
			set.Add(finding)
		}
	}
	return set.Findings()
}
