package intro

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/protorefine/internal/tei"
)

func testDoc(nodes ...*tei.Node) *tei.Document {
	return &tei.Document{
		Metadata: tei.Metadata{Protocol: "prot-1933--fk--12", Year: 1933},
		Sections: []*tei.Section{{Type: "debateSection", Nodes: nodes}},
	}
}

func segmenter(confirmed ...string) *Segmenter {
	return &Segmenter{Detector: NewDetector(DefaultPatterns().ForYear(1933), confirmed)}
}

func TestSegment_SplitsNote(t *testing.T) {
	doc := testDoc(tei.NewNote("", "Herr LINDMAN (h):   Jag yrkar bifall."))
	st := segmenter().Segment(doc)

	nodes := doc.Sections[0].Nodes
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].Type != tei.SubtypeSpeaker || nodes[0].Text != "Herr LINDMAN (h):" {
		t.Errorf("unexpected announcement %+v", nodes[0])
	}
	if nodes[1].Kind != tei.KindUtterance || nodes[1].Who != tei.Unknown {
		t.Fatalf("expected new utterance, got %+v", nodes[1])
	}
	if got := nodes[1].PlainText(); got != "Jag yrkar bifall." {
		t.Errorf("expected remainder %q, got %q", "Jag yrkar bifall.", got)
	}
	if st.Reclassified != 1 || st.Split != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestSegment_Idempotent(t *testing.T) {
	doc := testDoc(
		tei.NewNote("", "Herr talmannen: Ordet lämnas till herr Lindman."),
		tei.NewUtterance(tei.Unknown, "Jag instämmer.", "Herr LINDMAN (h): Jag yrkar bifall.", "Mera text."),
	)
	s := segmenter()
	s.Segment(doc)
	first := len(doc.Sections[0].Nodes)

	st := s.Segment(doc)
	if st != (Stats{}) {
		t.Errorf("expected no edits on second run, got %+v", st)
	}
	if len(doc.Sections[0].Nodes) != first {
		t.Errorf("expected %d nodes after second run, got %d", first, len(doc.Sections[0].Nodes))
	}
}

func TestSegment_UtteranceSegment(t *testing.T) {
	orig := tei.NewUtterance("i-a", "Jag instämmer.", "Herr talmannen: Ordet lämnas.", "Mera text.")
	orig.ID = "i-u1"
	doc := testDoc(orig)
	segmenter().Segment(doc)

	nodes := doc.Sections[0].Nodes
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != "i-u1" || nodes[0].PlainText() != "Jag instämmer." {
		t.Errorf("expected original utterance first, got %+v", nodes[0])
	}
	if nodes[1].Kind != tei.KindNote || nodes[1].Type != tei.SubtypeSpeaker || nodes[1].Text != "Herr talmannen:" {
		t.Errorf("unexpected announcement %+v", nodes[1])
	}
	if nodes[2].Kind != tei.KindUtterance || nodes[2].Who != tei.Unknown || len(nodes[2].Segments) != 2 {
		t.Fatalf("expected continuation utterance with 2 segments, got %+v", nodes[2])
	}
	if nodes[2].Segments[0].Text != "Ordet lämnas." || nodes[2].Segments[1].Text != "Mera text." {
		t.Errorf("unexpected continuation %q", nodes[2].PlainText())
	}
	if len(orig.Segments) != 3 {
		t.Error("expected original node to be left untouched")
	}
}

func TestSegment_LeadingIntroKeepsUtterance(t *testing.T) {
	u := tei.NewUtterance("i-earlier", "Herr talmannen: Ordet lämnas.")
	u.ID = "i-u1"
	doc := testDoc(u)
	segmenter().Segment(doc)

	nodes := doc.Sections[0].Nodes
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != "i-u1" || nodes[0].Who != "i-earlier" || len(nodes[0].Segments) != 0 {
		t.Errorf("expected the emptied original utterance first, got %+v", nodes[0])
	}
	if nodes[1].Kind != tei.KindNote || nodes[1].Text != "Herr talmannen:" {
		t.Errorf("unexpected announcement %+v", nodes[1])
	}
	if nodes[2].Who != tei.Unknown || nodes[2].PlainText() != "Ordet lämnas." {
		t.Errorf("expected continuation with the announced speaker, got %+v", nodes[2])
	}

	again, st := segmenter().SegmentSection(doc.Sections[0])
	if st != (Stats{}) || len(again) != 3 {
		t.Errorf("expected a stable second pass, got %d nodes and %+v", len(again), st)
	}
}

func TestSegment_IntroOnlySegmentKeepsUtterance(t *testing.T) {
	u := tei.NewUtterance(tei.Unknown, "Herr talmannen:")
	u.ID = "i-u1"
	u.Segments[0].ID = "i-s1"
	doc := testDoc(u)
	segmenter().Segment(doc)

	nodes := doc.Sections[0].Nodes
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].ID != "i-u1" || nodes[0].Kind != tei.KindUtterance {
		t.Errorf("expected original utterance to stay, got %+v", nodes[0])
	}
	if nodes[1].ID != "i-s1" || nodes[1].Type != tei.SubtypeSpeaker {
		t.Errorf("expected announcement to take the segment id, got %+v", nodes[1])
	}
}

const markedUp = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body><div>
<note>Herr <hi rend="spaced">LINDMAN</hi> (h): Jag yrkar<lb/> bifall.</note>
</div></body></text></TEI>`

func TestSegment_KeepsMarkup(t *testing.T) {
	doc, err := tei.Decode(strings.NewReader(markedUp), "prot-1933--fk--12.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := segmenter().Segment(doc)
	if st.Split != 1 {
		t.Fatalf("expected one split, got %+v", st)
	}

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`<note type="speaker">Herr <hi rend="spaced">LINDMAN</hi> (h):</note>`,
		`<seg>Jag yrkar<lb/> bifall.</seg>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSegment_ConfirmedWithoutColon(t *testing.T) {
	n := tei.NewNote("", "Herr Lindman anförde")
	n.ID = "i-n1"
	doc := testDoc(n)
	st := segmenter("i-n1").Segment(doc)

	nodes := doc.Sections[0].Nodes
	if len(nodes) != 1 {
		t.Fatalf("expected no split, got %d nodes", len(nodes))
	}
	if nodes[0].Type != tei.SubtypeSpeaker || nodes[0].Text != "Herr Lindman anförde" {
		t.Errorf("expected reclassified unsplit note, got %+v", nodes[0])
	}
	if st.Split != 0 {
		t.Errorf("expected no split, got %d", st.Split)
	}
}

func TestSegment_RemoveStale(t *testing.T) {
	stale := tei.NewNote(tei.SubtypeSpeaker, "Anförande av okänd")

	doc := testDoc(stale)
	segmenter().Segment(doc)
	if doc.Sections[0].Nodes[0].Type != tei.SubtypeSpeaker {
		t.Error("expected stale marking kept without RemoveStale")
	}

	s := segmenter()
	s.RemoveStale = true
	st := s.Segment(doc)
	if doc.Sections[0].Nodes[0].Type != "" || st.Cleared != 1 {
		t.Errorf("expected stale marking cleared, got %q (%+v)", doc.Sections[0].Nodes[0].Type, st)
	}
}

func TestSegment_SkipsCommentSection(t *testing.T) {
	doc := testDoc()
	doc.Sections[0].Type = tei.CommentSection
	doc.Sections[0].Nodes = []*tei.Node{tei.NewNote("", "Herr talmannen: Ordet lämnas.")}
	segmenter().Segment(doc)
	if n := doc.Sections[0].Nodes; len(n) != 1 || n[0].Type != "" {
		t.Error("expected comment section to be left alone")
	}
}

func TestBoundary(t *testing.T) {
	text := "Herr Lindman, ledamot: text"
	if got := Boundary(text, Match{Start: 0, End: 12}); got != 22 {
		t.Errorf("expected boundary after trailing colon at 22, got %d", got)
	}
	text = "Herr Lindman: sade: text"
	if got := Boundary(text, Match{Start: 0, End: 19}); got != 19 {
		t.Errorf("expected last colon in span, got %d", got)
	}
	if got := Boundary("Herr Lindman", Match{Start: 0, End: 12}); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Guess
	}{
		{"Herr talmannen:", Guess{Role: "talman", Gender: "man"}},
		{"Herr förste vice talmannen:", Guess{Role: "förste vice talman", Gender: "man"}},
		{"Statsrådet Wigforss:", Guess{Name: "wigforss", Role: "statsråd"}},
		{"Herr statsministern HANSSON:", Guess{Name: "hansson", Role: "statsminister", Gender: "man"}},
		{"Herr LINDMAN i Stockholm (h):", Guess{Name: "lindman", Party: "h", Gender: "man", Specifier: "stockholm"}},
		{"Fru Per Albin Hansson (s) yttrade:", Guess{Name: "per albin hansson", Party: "s", Gender: "woman", Other: "yttrade"}},
		{"Herr Olsson i Bäckäng, ledamot:", Guess{Name: "olsson", Gender: "man", Specifier: "bäckäng", Other: "ledamot"}},
		{"", Guess{}},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q): expected %+v, got %+v", tt.in, tt.want, got)
		}
	}
}

func TestPatterns_ForYearAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.toml")
	content := `
[[pattern]]
expr = '^Herr talmannen:'
start = 1867
end = 1970

[[pattern]]
expr = '^Fru talmannen:'
start = 1971
who = "i-speaker"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	ps, err := LoadPatterns(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ps.ForYear(1933); len(got) != 1 || got[0].Start != 1867 {
		t.Errorf("expected one pattern for 1933, got %+v", got)
	}
	if got := ps.ForYear(1990); len(got) != 1 || got[0].Who != "i-speaker" {
		t.Errorf("expected open-ended pattern for 1990, got %+v", got)
	}

	m, ok := NewDetector(ps.ForYear(1990), nil).Detect("", "Fru talmannen: Ja.")
	if !ok || m.Who != "i-speaker" {
		t.Errorf("expected match carrying who, got %+v (%v)", m, ok)
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(bad, []byte("[[pattern]]\nexpr = '('\n"), 0o644)
	if _, err := LoadPatterns(bad); err == nil {
		t.Error("expected error for invalid expression")
	}
}
