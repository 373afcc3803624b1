// Package dates infers the session dates of a transcript from short
// date-like notes ("Tisdagen den 3 januari 1900").
package dates

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/dgallion1/protorefine/internal/tei"
)

const (
	maxNoteLen = 50
	maxDenLen  = 30

	// removeMarker stands in for a date subtype that has not been
	// confirmed yet during the scan.
	removeMarker = "REMOVE"
)

var (
	weekdayYearRe = regexp.MustCompile(`\p{L}{3,5}dagen den (\d{1,2})\.? (\p{L}{3,9}) (\d{4})`)
	weekdayRe     = regexp.MustCompile(`\p{L}{3,5}dagen den (\d{1,2})\.? (\p{L}{3,9})`)
	dayYearRe     = regexp.MustCompile(`(\d{1,2})\.? (\p{L}{3,9}) (\d{4})`)
	denRe         = regexp.MustCompile(`[Dd]en (\d{1,2})\.? (\p{L}{3,9})`)

	certificateRe = regexp.MustCompile(`(?i)(läkar|sjuk)(in|be)tyg`)
)

// Parser turns a phrase such as "3 januari 1900" into a date.
type Parser interface {
	Parse(s string) (time.Time, bool)
}

// SwedishParser parses Swedish natural-language dates.
type SwedishParser struct {
	cfg *dps.Configuration
}

func NewSwedishParser() *SwedishParser {
	return &SwedishParser{cfg: &dps.Configuration{Languages: []string{"sv"}}}
}

func (p *SwedishParser) Parse(s string) (time.Time, bool) {
	d, err := dps.Parse(p.cfg, s)
	if err != nil || d.Time.IsZero() {
		return time.Time{}, false
	}
	t := d.Time
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// Inferencer rewrites a document's session dates.
type Inferencer struct {
	Parser Parser
	// SkipCertificates ignores dates inside medical certificates quoted
	// in the transcript.
	SkipCertificates bool
	Log              *slog.Logger
}

// Infer scans every short note, writes the sorted result to doc.Dates and
// returns it. Without any usable date the result is "<year>-01-01" and
// inferred is false.
func (inf *Inferencer) Infer(doc *tei.Document) (dates []string, inferred bool) {
	log := inf.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	parser := inf.Parser
	if parser == nil {
		parser = NewSwedishParser()
	}

	years := doc.Years()
	inYears := func(t time.Time) bool { return slices.Contains(years, t.Year()) }

	var (
		withWeekday []time.Time // weekday + day + month + year
		plain       []time.Time // day + month + year
		yearless    []string
	)
	addYearless := func(s string) {
		if !slices.Contains(yearless, s) {
			yearless = append(yearless, s)
		}
	}

	for _, sec := range doc.Sections {
		for i, n := range sec.Nodes {
			if n.Kind != tei.KindNote || n.Text == "" {
				continue
			}
			text := strings.Join(strings.Fields(n.Text), " ")
			length := utf8.RuneCountInString(text)
			if length >= maxNoteLen {
				continue
			}
			if n.Type == tei.SubtypeDate {
				n.Type = removeMarker
			}
			markDate := func() {
				if n.Type != tei.SubtypeTitle {
					n.Type = tei.SubtypeDate
				}
			}
			cert := func() bool { return inf.SkipCertificates && inCertificate(sec.Nodes, i) }

			if m := weekdayYearRe.FindStringSubmatch(n.Text); m != nil {
				markDate()
				if t, ok := parser.Parse(m[1] + " " + m[2] + " " + m[3]); ok && !cert() && inYears(t) {
					withWeekday = append(withWeekday, t)
				}
			} else if m := dayYearRe.FindStringSubmatch(n.Text); m != nil && !cert() {
				if t, ok := parser.Parse(m[1] + " " + m[2] + " " + m[3]); ok && inYears(t) {
					plain = append(plain, t)
				}
			} else if m := weekdayRe.FindStringSubmatch(n.Text); m != nil && !cert() {
				markDate()
				addYearless(m[1] + " " + m[2])
			} else if m := denRe.FindStringSubmatch(n.Text); m != nil && !cert() {
				if length < maxDenLen {
					markDate()
					addYearless(m[1] + " " + m[2])
				}
			}

			if n.Type == removeMarker {
				n.Type = ""
			}
		}
	}

	// Weekday phrasing is trusted over a bare day and year.
	found := withWeekday
	if len(found) == 0 {
		found = plain
	}
	found = sortDedupe(found)

	year := doc.Year
	if len(found) > 0 {
		year = found[0].Year()
	}
	for _, s := range yearless {
		if t, ok := parser.Parse(fmt.Sprintf("%s %d", s, year)); ok {
			found = append(found, t)
		} else {
			log.Debug("discarded date phrase", "protocol", doc.Protocol, "phrase", s)
		}
	}
	found = sortDedupe(found)

	out := make([]string, 0, len(found))
	for _, t := range found {
		out = append(out, t.Format(time.DateOnly))
	}
	inferred = len(out) > 0
	if !inferred {
		out = []string{fmt.Sprintf("%d-01-01", doc.Year)}
	}
	doc.Dates = out
	return out, inferred
}

// inCertificate scans backwards from nodes[i] to the nearest title note
// looking for a certificate heading.
func inCertificate(nodes []*tei.Node, i int) bool {
	for j := i - 1; j >= 0; j-- {
		n := nodes[j]
		if certificateRe.MatchString(n.Text) {
			return true
		}
		if n.Kind == tei.KindNote && n.Type == tei.SubtypeTitle {
			return false
		}
	}
	return false
}

func sortDedupe(ts []time.Time) []time.Time {
	slices.SortFunc(ts, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(ts, func(a, b time.Time) bool { return a.Equal(b) })
}
