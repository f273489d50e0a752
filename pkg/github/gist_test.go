package github

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ca-risken/common/pkg/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v44/github"
)

type fakeGitHubGistService struct {
	list      []*github.Gist
	gists     map[string]*github.Gist
	listOpts  *github.GistListOptions
	status    int
	err       error
	listCalls int
}

func (f *fakeGitHubGistService) ListAll(ctx context.Context, opts *github.GistListOptions) ([]*github.Gist, *github.Response, error) {
	f.listCalls++
	f.listOpts = opts
	if f.err != nil {
		return nil, &github.Response{Response: &http.Response{StatusCode: f.status}}, f.err
	}
	return f.list, &github.Response{Response: &http.Response{StatusCode: http.StatusOK}}, nil
}

func (f *fakeGitHubGistService) Get(ctx context.Context, id string) (*github.Gist, *github.Response, error) {
	gist, ok := f.gists[id]
	if !ok {
		return nil, &github.Response{Response: &http.Response{StatusCode: http.StatusNotFound}}, errors.New("not found")
	}
	return gist, &github.Response{Response: &http.Response{StatusCode: http.StatusOK}}, nil
}

func TestListPublicGistIDs(t *testing.T) {
	cases := []struct {
		name        string
		limit       int
		service     *fakeGitHubGistService
		want        []string
		wantPerPage int
		wantCalls   int
		wantError   bool
	}{
		{
			name:  "OK",
			limit: 2,
			service: &fakeGitHubGistService{list: []*github.Gist{
				{ID: PointerString("g1")}, {}, {ID: PointerString("g2")}, {ID: PointerString("g3")},
			}},
			want:        []string{"g1", "g2"},
			wantPerPage: 2,
			wantCalls:   1,
		},
		{
			name:        "OK limit out of range",
			limit:       0,
			service:     &fakeGitHubGistService{list: []*github.Gist{{ID: PointerString("g1")}}},
			want:        []string{"g1"},
			wantPerPage: maxGistsPerPage,
			wantCalls:   1,
		},
		{
			name:      "NG unauthorized is not retried",
			limit:     10,
			service:   &fakeGitHubGistService{status: http.StatusUnauthorized, err: errors.New("bad credentials")},
			wantCalls: 1,
			wantError: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := newGithubClient(nil, 0, logging.NewLogger())
			client.gists = c.service
			got, err := client.ListPublicGistIDs(context.Background(), c.limit)
			if c.wantError && err == nil {
				t.Fatal("Expected error but got nil")
			}
			if !c.wantError && err != nil {
				t.Fatalf("Unexpected error: %+v", err)
			}
			if diff := cmp.Diff(c.want, got); !c.wantError && diff != "" {
				t.Errorf("Unexpected ids (-want +got):\n%s", diff)
			}
			if !c.wantError && c.service.listOpts.PerPage != c.wantPerPage {
				t.Errorf("Unexpected per_page: want=%d, got=%d", c.wantPerPage, c.service.listOpts.PerPage)
			}
			if c.service.listCalls != c.wantCalls {
				t.Errorf("Unexpected calls: want=%d, got=%d", c.wantCalls, c.service.listCalls)
			}
		})
	}
}

func TestGetGist(t *testing.T) {
	service := &fakeGitHubGistService{gists: map[string]*github.Gist{
		"g1": {
			ID:      PointerString("g1"),
			HTMLURL: PointerString("https://gist.github.com/g1"),
			Files: map[github.GistFilename]github.GistFile{
				"z.env":  {Filename: PointerString("z.env"), Content: PointerString("KEY=1")},
				"a.py":   {Filename: PointerString("a.py"), Content: PointerString("print(1)")},
				"noname": {Content: PointerString("x")},
			},
		},
	}}
	client := newGithubClient(nil, 0, logging.NewLogger())
	client.gists = service

	got, err := client.GetGist(context.Background(), "g1")
	if err != nil {
		t.Fatalf("Unexpected error: %+v", err)
	}
	want := &PublicGist{
		ID:      "g1",
		HTMLURL: "https://gist.github.com/g1",
		Files: []GistFile{
			{Name: "a.py", Content: "print(1)"},
			{Name: "noname", Content: "x"},
			{Name: "z.env", Content: "KEY=1"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected gist (-want +got):\n%s", diff)
	}

	if _, err := client.GetGist(context.Background(), "missing"); err == nil {
		t.Error("Expected error for missing gist")
	}
	if _, err := client.GetGist(context.Background(), ""); err == nil {
		t.Error("Expected error for empty id")
	}
}
