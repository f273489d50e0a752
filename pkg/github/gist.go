package github

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v44/github"
)

const maxGistsPerPage = 100

type GitHubGistService interface {
	ListAll(ctx context.Context, opts *github.GistListOptions) ([]*github.Gist, *github.Response, error)
	Get(ctx context.Context, id string) (*github.Gist, *github.Response, error)
}

type PublicGist struct {
	ID      string
	HTMLURL string
	Files   []GistFile
}

type GistFile struct {
	Name    string
	Content string
}

// ListPublicGistIDs returns the IDs of the most recent public gists, newest first.
func (g *riskenGitHubClient) ListPublicGistIDs(ctx context.Context, limit int) ([]string, error) {
	if g.gists == nil {
		return nil, errors.New("gist service is not configured")
	}
	if limit <= 0 || limit > maxGistsPerPage {
		limit = maxGistsPerPage
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var gists []*github.Gist
	operation := func() error {
		var (
			resp *github.Response
			err  error
		)
		gists, resp, err = g.gists.ListAll(ctx, &github.GistListOptions{ListOptions: github.ListOptions{PerPage: limit}})
		if err != nil && isPermanent(resp) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := g.retry(ctx, "github list public gists", operation); err != nil {
		return nil, fmt.Errorf("failed to list public gists: %w", err)
	}
	ids := make([]string, 0, len(gists))
	for _, gist := range gists {
		if gist.GetID() == "" {
			continue
		}
		ids = append(ids, gist.GetID())
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// GetGist returns the gist with the content of every file, ordered by file name.
func (g *riskenGitHubClient) GetGist(ctx context.Context, id string) (*PublicGist, error) {
	if g.gists == nil {
		return nil, errors.New("gist service is not configured")
	}
	if id == "" {
		return nil, errors.New("gist id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var gist *github.Gist
	operation := func() error {
		var (
			resp *github.Response
			err  error
		)
		gist, resp, err = g.gists.Get(ctx, id)
		if err != nil && isPermanent(resp) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := g.retry(ctx, "github get gist", operation); err != nil {
		return nil, fmt.Errorf("failed to get gist: id=%s, err=%w", id, err)
	}
	pg := &PublicGist{ID: gist.GetID(), HTMLURL: gist.GetHTMLURL()}
	for name, f := range gist.Files {
		fileName := f.GetFilename()
		if fileName == "" {
			fileName = string(name)
		}
		pg.Files = append(pg.Files, GistFile{Name: fileName, Content: f.GetContent()})
	}
	sort.Slice(pg.Files, func(i, j int) bool { return pg.Files[i].Name < pg.Files[j].Name })
	return pg, nil
}
