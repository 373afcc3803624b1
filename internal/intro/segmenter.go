package intro

import (
	"io"
	"log/slog"
	"strings"

	"github.com/dgallion1/protorefine/internal/tei"
)

// Stats counts the edits made by one segmentation run.
type Stats struct {
	Reclassified int `json:"reclassified"`
	Split        int `json:"split"`
	Cleared      int `json:"cleared"`
}

func (s *Stats) add(o Stats) {
	s.Reclassified += o.Reclassified
	s.Split += o.Split
	s.Cleared += o.Cleared
}

// Segmenter splits introductions out of notes and utterances.
type Segmenter struct {
	Detector *Detector
	// RemoveStale clears the speaker subtype from notes that no longer
	// match any introduction.
	RemoveStale bool
	Log         *slog.Logger
}

// Segment rewrites every ordinary section of doc. Comment sections are
// left alone.
func (s *Segmenter) Segment(doc *tei.Document) Stats {
	log := s.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var total Stats
	for _, sec := range doc.Sections {
		if sec.IsComment() {
			continue
		}
		nodes, st := s.SegmentSection(sec)
		sec.Nodes = nodes
		total.add(st)
	}
	log.Debug("segmented introductions", "protocol", doc.Protocol,
		"reclassified", total.Reclassified, "split", total.Split, "cleared", total.Cleared)
	return total
}

// SegmentSection returns a new node list for sec. Nodes that change are
// copied; sec itself is not modified.
func (s *Segmenter) SegmentSection(sec *tei.Section) ([]*tei.Node, Stats) {
	var st Stats
	out := make([]*tei.Node, 0, len(sec.Nodes))
	for _, n := range sec.Nodes {
		switch n.Kind {
		case tei.KindNote:
			out = append(out, s.note(n, &st)...)
		case tei.KindUtterance:
			out = append(out, s.utterance(n, &st)...)
		default:
			out = append(out, n)
		}
	}
	return out, st
}

func (s *Segmenter) note(n *tei.Node, st *Stats) []*tei.Node {
	text := collapse(n.Text)
	m, ok := s.Detector.Detect(n.ID, text)

	if n.Type == tei.SubtypeSpeaker {
		if !ok && s.RemoveStale {
			c := *n
			c.Type = ""
			st.Cleared++
			return []*tei.Node{&c}
		}
		return []*tei.Node{n}
	}
	if !ok {
		return []*tei.Node{n}
	}

	c := *n
	c.Type = tei.SubtypeSpeaker
	st.Reclassified++

	b := Boundary(text, m)
	if b < 0 {
		return []*tei.Node{&c}
	}
	head, tail := n.Inline.Split(b)
	c.Text, c.Inline = strings.TrimSpace(text[:b]), head
	rest := strings.TrimSpace(text[b:])
	if rest == "" {
		return []*tei.Node{&c}
	}
	st.Split++
	u := tei.NewUtterance(speaker(m), rest)
	u.Segments[0].Inline = tail
	return append([]*tei.Node{&c}, s.split(u, false, st)...)
}

// utterance lifts introduction segments out of u. Each lifted segment
// becomes a speaker note followed by a new utterance holding the text
// after the colon and every later segment. u itself stays in place, empty
// when its first segment was an introduction.
func (s *Segmenter) utterance(u *tei.Node, st *Stats) []*tei.Node {
	return s.split(u, true, st)
}

// split does the work of utterance. keep is false for utterances built
// from a note remainder, which are dropped once emptied.
func (s *Segmenter) split(u *tei.Node, keep bool, st *Stats) []*tei.Node {
	var out []*tei.Node
	cur := *u
	cur.Segments = nil
	pending := append([]*tei.Segment(nil), u.Segments...)

	for len(pending) > 0 {
		seg := pending[0]
		pending = pending[1:]

		text := collapse(seg.Text)
		m, ok := s.Detector.Detect(seg.ID, text)
		if !ok {
			cur.Segments = append(cur.Segments, seg)
			continue
		}

		note := tei.NewNote(tei.SubtypeSpeaker, text)
		note.ID = seg.ID
		note.Inline = seg.Inline
		st.Reclassified++
		if b := Boundary(text, m); b >= 0 {
			head, tail := seg.Inline.Split(b)
			note.Text, note.Inline = strings.TrimSpace(text[:b]), head
			if rest := strings.TrimSpace(text[b:]); rest != "" {
				pending = append([]*tei.Segment{{Text: rest, Inline: tail}}, pending...)
				st.Split++
			}
		}

		if len(cur.Segments) > 0 || keep {
			done := cur
			out = append(out, &done)
		}
		keep = false
		cur = *tei.NewUtterance(speaker(m))
		out = append(out, note)
	}
	if len(cur.Segments) > 0 || keep {
		out = append(out, &cur)
	}
	return out
}

func speaker(m Match) string {
	if m.Who != "" {
		return m.Who
	}
	return tei.Unknown
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
