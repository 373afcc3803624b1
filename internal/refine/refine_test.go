package refine

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/protorefine/internal/intro"
	"github.com/dgallion1/protorefine/internal/registry"
	"github.com/dgallion1/protorefine/internal/tei"
)

const protocol = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader><fileDesc><titleStmt><title>prot-1933--fk--12</title></titleStmt></fileDesc></teiHeader>
  <text>
    <front><div type="preface"><head>Första kammaren 1933</head></div></front>
    <body>
      <div type="debateSection">
        <pb facs="https://betalab.kb.se/prot-1933--fk--12/page-1.jpg"/>
        <note>Tisdagen den 14 februari 1933</note>
        <note>Herr LINDMAN (h): Herr talman! Jag yrkar bifall.</note>
        <note>Herr OKÄND: Jag instämmer.</note>
      </div>
      <div type="commentSection">
        <u who="i-x" prev="i-old"><seg>Ingen talare.</seg></u>
      </div>
    </body>
  </text>
</TEI>`

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func refiner() *Refiner {
	return &Refiner{
		Patterns: intro.DefaultPatterns(),
		Tables: registry.Tables{
			Members: registry.Table{
				{PersonID: "i-lindman", Name: "arvid lindman", Start: day("1905-01-01"), End: day("1935-01-01"), Chamber: tei.ChamberFirst},
				{PersonID: "i-lindman-late", Name: "sven lindman", Start: day("1950-01-01"), Chamber: tei.ChamberFirst},
			},
		},
	}
}

func TestRefine_EndToEnd(t *testing.T) {
	doc, err := tei.Decode(strings.NewReader(protocol), "prot-1933--fk--12.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := refiner().Refine(doc, Options{Seed: "prot-1933--fk--12"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Dates) != 1 || res.Dates[0] != "1933-02-14" {
		t.Errorf("expected dates [1933-02-14], got %v", res.Dates)
	}
	if !res.Window.Start.Equal(day("1933-02-14")) || !res.Window.End.Equal(day("1933-02-14")) {
		t.Errorf("unexpected window %+v", res.Window)
	}
	if res.Segmentation.Split != 2 {
		t.Errorf("expected 2 splits, got %+v", res.Segmentation)
	}
	if res.Utterances != 3 {
		t.Errorf("expected 3 utterances, got %d", res.Utterances)
	}
	if len(res.Unknowns) != 1 || res.Unknowns[0].Name != "okänd" {
		t.Errorf("expected one unknown observation, got %+v", res.Unknowns)
	}

	nodes := doc.Sections[0].Nodes
	if nodes[3].Kind != tei.KindUtterance || nodes[3].Who != "i-lindman" {
		t.Fatalf("expected Lindman utterance after the announcement, got %+v", nodes[3])
	}
	if nodes[5].Who != tei.Unknown {
		t.Errorf("expected unknown speaker, got %q", nodes[5].Who)
	}

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`who="i-lindman"`, `<docDate when="1933-02-14">`, `type="speaker"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %s", want)
		}
	}
	if strings.Contains(out, "i-old") || strings.Contains(out, `prev="delete"`) {
		t.Error("expected stale pointers to be stripped")
	}
}

func TestRefine_Deterministic(t *testing.T) {
	encode := func() string {
		doc, err := tei.Decode(strings.NewReader(protocol), "prot-1933--fk--12.xml")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := refiner().Refine(doc, Options{Seed: "seed"}); err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if err := doc.Encode(&buf); err != nil {
			t.Fatal(err)
		}
		return buf.String()
	}
	if a, b := encode(), encode(); a != b {
		t.Error("expected identical output for identical input and seed")
	}
}

func TestRefine_NoYear(t *testing.T) {
	if _, err := refiner().Refine(&tei.Document{}, Options{}); err != ErrNoYear {
		t.Errorf("expected ErrNoYear, got %v", err)
	}
}

func TestWindowFor(t *testing.T) {
	doc := &tei.Document{Metadata: tei.Metadata{Year: 1933, SecondaryYear: 1934}}
	doc.Dates = []string{"1934-03-01", "1850-01-01", "1933-11-02"}
	w := WindowFor(doc)
	if !w.Start.Equal(day("1933-11-02")) || !w.End.Equal(day("1934-03-01")) {
		t.Errorf("unexpected window %+v", w)
	}

	doc.Dates = nil
	w = WindowFor(doc)
	if !w.Start.Equal(day("1933-01-01")) || !w.End.Equal(day("1934-12-31")) {
		t.Errorf("expected whole-year window, got %+v", w)
	}
}

func TestNoisyDigitization(t *testing.T) {
	prefixes := []string{"https://betalab.kb.se/"}
	if !NoisyDigitization("https://betalab.kb.se/x/page-1.jpg", prefixes) {
		t.Error("expected betalab source to be noisy")
	}
	if NoisyDigitization("https://data.riksdagen.se/x.jpg", prefixes) || NoisyDigitization("", prefixes) {
		t.Error("expected other sources not to be noisy")
	}
}
