package event

import "strings"

type SegmentKind int

const (
	SegmentMetadata SegmentKind = iota
	SegmentDiff
)

type Segment struct {
	Kind     SegmentKind
	CommitID string
	Text     string
}

// Corpus is the scannable text of an event, kept in event order.
type Corpus struct {
	Segments []Segment
	// MissingDiffs lists commits that carried no inline diff.
	MissingDiffs []string
	// Fallback is set when the event had no commits and the serialized event was used.
	Fallback bool
}

func (c *Corpus) String() string {
	return c.join(func(Segment) bool { return true })
}

// Metadata returns commit messages and file paths only.
func (c *Corpus) Metadata() string {
	return c.join(func(s Segment) bool { return s.Kind == SegmentMetadata })
}

// Diff returns the concatenated diff bodies only.
func (c *Corpus) Diff() string {
	return c.join(func(s Segment) bool { return s.Kind == SegmentDiff })
}

func (c *Corpus) join(keep func(Segment) bool) string {
	parts := make([]string, 0, len(c.Segments))
	for _, s := range c.Segments {
		if keep(s) {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Extract flattens an event into a single scannable text.
func Extract(ev *Event) string {
	return ExtractCorpus(ev).String()
}

// ExtractCorpus builds the corpus of an event. It never fetches anything; commits
// without an inline diff are listed in MissingDiffs.
func ExtractCorpus(ev *Event) *Corpus {
	c := &Corpus{}
	if ev == nil {
		return c
	}
	if len(ev.Commits) == 0 {
		c.Fallback = true
		c.Segments = append(c.Segments, Segment{Kind: SegmentMetadata, Text: ev.Serialize()})
		return c
	}
	for _, commit := range ev.Commits {
		var b strings.Builder
		b.WriteString("Commit message: ")
		b.WriteString(commit.Message)
		for _, paths := range [][]string{commit.Added, commit.Modified, commit.Removed} {
			for _, p := range paths {
				b.WriteString("\nFile: ")
				b.WriteString(p)
			}
		}
		c.Segments = append(c.Segments, Segment{Kind: SegmentMetadata, CommitID: commit.ID, Text: b.String()})
		if commit.HasDiff() {
			c.Segments = append(c.Segments, Segment{Kind: SegmentDiff, CommitID: commit.ID, Text: *commit.Diff})
		} else {
			c.MissingDiffs = append(c.MissingDiffs, commit.ID)
		}
	}
	return c
}
