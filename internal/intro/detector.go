package intro

import "strings"

// Match is the span of text recognised as an introduction.
type Match struct {
	Start, End int
	// Who is the fixed identity carried by the matching pattern, or "".
	Who       string
	Confirmed bool
}

// Detector recognises introductions by node id or by pattern.
type Detector struct {
	patterns  Patterns
	confirmed map[string]bool
}

// NewDetector builds a detector over compiled, year-filtered patterns and
// a set of node ids already confirmed to be introductions.
func NewDetector(patterns Patterns, confirmed []string) *Detector {
	d := &Detector{patterns: patterns, confirmed: make(map[string]bool, len(confirmed))}
	for _, id := range confirmed {
		if id = strings.TrimSpace(id); id != "" {
			d.confirmed[id] = true
		}
	}
	return d
}

// Detect reports whether text (belonging to node or segment id) is an
// introduction. Confirmed ids take precedence; the match then covers the
// text up to and including its first colon.
func (d *Detector) Detect(id, text string) (Match, bool) {
	if id != "" && d.confirmed[id] {
		end := len(text)
		if i := strings.IndexByte(text, ':'); i >= 0 {
			end = i + 1
		}
		return Match{Start: 0, End: end, Confirmed: true}, true
	}
	for _, p := range d.patterns {
		if p.re == nil {
			continue
		}
		if loc := p.re.FindStringIndex(text); loc != nil {
			return Match{Start: loc[0], End: loc[1], Who: p.Who}, true
		}
	}
	return Match{}, false
}

// Boundary returns the offset just past the colon that ends the
// introduction: the last colon inside the match, else the first colon
// after it. It returns -1 when there is none.
func Boundary(text string, m Match) int {
	if i := strings.LastIndexByte(text[m.Start:m.End], ':'); i >= 0 {
		return m.Start + i + 1
	}
	if i := strings.IndexByte(text[m.End:], ':'); i >= 0 {
		return m.End + i + 1
	}
	return -1
}
