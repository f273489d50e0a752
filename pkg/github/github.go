package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v44/github"
	"golang.org/x/oauth2"
)

const (
	RETRY_NUM      uint64 = 3
	defaultTimeout        = 10 * time.Second
	filesPerPage          = 100
)

type GithubServiceClient interface {
	FetchCommitDiff(ctx context.Context, repoFullName, sha string) (string, error)
}

type GitHubRepoService interface {
	GetCommit(ctx context.Context, owner, repo, sha string, opts *github.ListOptions) (*github.RepositoryCommit, *github.Response, error)
}

type riskenGitHubClient struct {
	repositories GitHubRepoService
	gists        GitHubGistService
	timeout      time.Duration
	retryNum     uint64
	logger       logging.Logger
}

// NewGithubClient returns a REST v3 client. An empty baseURL targets https://api.github.com/.
func NewGithubClient(ctx context.Context, token, baseURL string, timeout time.Duration, logger logging.Logger) (*riskenGitHubClient, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		))
	}
	client := github.NewClient(httpClient)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		client.BaseURL = u
	}
	c := newGithubClient(client.Repositories, timeout, logger)
	c.gists = client.Gists
	return c, nil
}

func newGithubClient(repositories GitHubRepoService, timeout time.Duration, logger logging.Logger) *riskenGitHubClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &riskenGitHubClient{
		repositories: repositories,
		timeout:      timeout,
		retryNum:     RETRY_NUM,
		logger:       logger,
	}
}

// FetchCommitDiff returns the unified diff of every file touched by the commit.
// The whole fetch, retries included, is bounded by the client timeout.
func (g *riskenGitHubClient) FetchCommitDiff(ctx context.Context, repoFullName, sha string) (string, error) {
	owner, repo, err := splitRepositoryName(repoFullName)
	if err != nil {
		return "", err
	}
	if sha == "" {
		return "", errors.New("commit sha is required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var files []*github.CommitFile
	opt := &github.ListOptions{PerPage: filesPerPage}
	for {
		var (
			commit *github.RepositoryCommit
			resp   *github.Response
		)
		operation := func() error {
			var err error
			commit, resp, err = g.repositories.GetCommit(ctx, owner, repo, sha, opt)
			if err != nil && isPermanent(resp) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := g.retry(ctx, "github get commit", operation); err != nil {
			return "", fmt.Errorf("failed to get commit: repository=%s, sha=%s, err=%w", repoFullName, sha, err)
		}
		files = append(files, commit.Files...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	g.logger.Debugf(ctx, "Fetched commit files: repository=%s, sha=%s, files=%d", repoFullName, sha, len(files))
	return formatDiff(files), nil
}

func formatDiff(files []*github.CommitFile) string {
	var b strings.Builder
	for _, f := range files {
		if f.GetPatch() == "" {
			continue
		}
		name := f.GetFilename()
		fmt.Fprintf(&b, "--- a/%s\n+++ b/%s\n%s\n", name, name, f.GetPatch())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func splitRepositoryName(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name format: %s, expected 'owner/repo'", fullName)
	}
	return parts[0], parts[1], nil
}

func isPermanent(resp *github.Response) bool {
	if resp == nil || resp.Response == nil {
		return false
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func (g *riskenGitHubClient) retry(ctx context.Context, funcName string, operation func() error) error {
	retryer := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.retryNum), ctx)
	return backoff.RetryNotify(operation, retryer, g.newRetryLogger(ctx, funcName))
}

func (g *riskenGitHubClient) newRetryLogger(ctx context.Context, funcName string) func(error, time.Duration) {
	return func(err error, ti time.Duration) {
		g.logger.Warnf(ctx, "[RetryLogger] %s error: duration=%+v, err=%+v", funcName, ti, err)
	}
}
