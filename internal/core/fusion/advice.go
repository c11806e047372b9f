package fusion

const (
	MaxIndicators      = 20
	MaxRecommendations = 10
)

// List is an ordered, de-duplicating, capped list of human-readable lines.
type List struct {
	items []string
	seen  map[string]struct{}
	max   int
}

func NewList(max int) *List {
	return &List{seen: make(map[string]struct{}), max: max}
}

// Add appends lines in order, skipping blanks, duplicates and anything past the cap.
func (l *List) Add(lines ...string) *List {
	for _, line := range lines {
		if line == "" || len(l.items) >= l.max {
			continue
		}
		if _, dup := l.seen[line]; dup {
			continue
		}
		l.seen[line] = struct{}{}
		l.items = append(l.items, line)
	}
	return l
}

func (l *List) Len() int { return len(l.items) }

// Items never returns nil so that JSON renders an empty array.
func (l *List) Items() []string {
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}
