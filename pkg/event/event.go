package event

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// EventPush is the only event type that is scanned.
const EventPush = "push"

// Event is the typed form of a push payload. It is never mutated after parsing.
type Event struct {
	Repository string   `json:"repository"`
	Pusher     string   `json:"pusher"`
	Ref        string   `json:"ref,omitempty"`
	Commits    []Commit `json:"commits" validate:"dive"`

	raw []byte
}

// Commit is one commit of a push. Diff is nil when the payload carried no patch
// and the content has to be fetched out of band.
type Commit struct {
	ID       string   `json:"id" validate:"required"`
	Message  string   `json:"message"`
	Added    []string `json:"added,omitempty"`
	Modified []string `json:"modified,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Diff     *string  `json:"diff,omitempty"`
}

// HasDiff reports whether the commit carries an inline diff body.
func (c *Commit) HasDiff() bool {
	return c.Diff != nil && *c.Diff != ""
}

// RepositoryName returns the repository full name, or "unknown" when the payload had none.
func (e *Event) RepositoryName() string {
	if e.Repository == "" {
		return "unknown"
	}
	return e.Repository
}

// PusherName returns the pusher, or "unknown" when the payload had none.
func (e *Event) PusherName() string {
	if e.Pusher == "" {
		return "unknown"
	}
	return e.Pusher
}

// Serialize returns the original payload bytes when available, otherwise the JSON form of the event.
func (e *Event) Serialize() string {
	if len(e.raw) > 0 {
		return string(e.raw)
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("%+v", *e)
	}
	return string(buf)
}

// WithDiffs returns a copy of the event where commits without an inline diff take the
// diff found in diffs (keyed by commit ID). The receiver is left untouched.
func (e *Event) WithDiffs(diffs map[string]string) *Event {
	cp := *e
	cp.Commits = make([]Commit, len(e.Commits))
	for i, c := range e.Commits {
		if d, ok := diffs[c.ID]; ok && !c.HasDiff() {
			diff := d
			c.Diff = &diff
		}
		cp.Commits[i] = c
	}
	return &cp
}

// Summary is the commit information attached to alerts.
type Summary struct {
	Repository   string `json:"repository"`
	Pusher       string `json:"pusher"`
	Ref          string `json:"ref"`
	CommitsCount int    `json:"commits_count"`
}

func (e *Event) Summary() Summary {
	ref := e.Ref
	if ref == "" {
		ref = "unknown"
	}
	return Summary{
		Repository:   e.RepositoryName(),
		Pusher:       e.PusherName(),
		Ref:          ref,
		CommitsCount: len(e.Commits),
	}
}

type pushPayload struct {
	Ref        *string `json:"ref"`
	Repository *struct {
		FullName *string `json:"full_name"`
	} `json:"repository"`
	Pusher *struct {
		Name *string `json:"name"`
	} `json:"pusher"`
	Commits []struct {
		ID       *string  `json:"id"`
		Message  *string  `json:"message"`
		Added    []string `json:"added"`
		Modified []string `json:"modified"`
		Removed  []string `json:"removed"`
		Diff     *string  `json:"diff"`
		Patch    *string  `json:"patch"`
	} `json:"commits"`
}

var validate = validator.New()

// CommitError is a push that decodes but whose commit list is malformed.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return e.Err.Error() }
func (e *CommitError) Unwrap() error { return e.Err }

// ParsePush decodes a push payload into an Event. Absent optional fields stay empty;
// commits without an id or with duplicated ids are rejected with a *CommitError.
func ParsePush(body []byte) (*Event, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	var p pushPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse push payload: %w", err)
	}
	ev := &Event{
		Ref:     deref(p.Ref),
		Commits: make([]Commit, 0, len(p.Commits)),
		raw:     body,
	}
	if p.Repository != nil {
		ev.Repository = deref(p.Repository.FullName)
	}
	if p.Pusher != nil {
		ev.Pusher = deref(p.Pusher.Name)
	}
	seen := make(map[string]struct{}, len(p.Commits))
	for _, c := range p.Commits {
		commit := Commit{
			ID:       deref(c.ID),
			Message:  deref(c.Message),
			Added:    c.Added,
			Modified: c.Modified,
			Removed:  c.Removed,
		}
		switch {
		case c.Diff != nil && *c.Diff != "":
			commit.Diff = c.Diff
		case c.Patch != nil && *c.Patch != "":
			commit.Diff = c.Patch
		}
		if _, ok := seen[commit.ID]; ok && commit.ID != "" {
			return nil, &CommitError{Err: fmt.Errorf("duplicated commit id in payload: %s", commit.ID)}
		}
		seen[commit.ID] = struct{}{}
		ev.Commits = append(ev.Commits, commit)
	}
	if err := validate.Struct(ev); err != nil {
		return nil, &CommitError{Err: fmt.Errorf("invalid push payload: %w", err)}
	}
	return ev, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
