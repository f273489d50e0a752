package pattern

type Direction string

const (
	DirectionAdded   Direction = "added"
	DirectionRemoved Direction = "removed"
)

type Finding struct {
	PatternName string    `json:"pattern"`
	Category    string    `json:"category"`
	Direction   Direction `json:"direction"`
	Masked      string    `json:"masked,omitempty"`
	Entropy     float64   `json:"entropy,omitempty"`
}

// FindingSet keeps at most one Finding per (pattern, direction), in insertion order.
type FindingSet struct {
	keys  map[string]struct{}
	items []Finding
}

func NewFindingSet() *FindingSet {
	return &FindingSet{keys: map[string]struct{}{}}
}

// Add returns false when an equivalent finding was already recorded.
func (s *FindingSet) Add(f Finding) bool {
	key := f.PatternName + "\x00" + string(f.Direction)
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	s.items = append(s.items, f)
	return true
}

func (s *FindingSet) Has(name string, d Direction) bool {
	_, ok := s.keys[name+"\x00"+string(d)]
	return ok
}

func (s *FindingSet) Len() int { return len(s.items) }

func (s *FindingSet) Findings() []Finding {
	cp := make([]Finding, len(s.items))
	copy(cp, s.items)
	return cp
}

// CredentialMatch is the literal value of a remediable credential.
type CredentialMatch struct {
	Value       string `json:"-"`
	PatternName string `json:"pattern"`
}
