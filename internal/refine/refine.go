// Package refine runs the full annotation pass over one transcript:
// introduction segmentation, id assignment, date inference and speaker
// attribution.
package refine

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgallion1/protorefine/internal/attribute"
	"github.com/dgallion1/protorefine/internal/dates"
	"github.com/dgallion1/protorefine/internal/ident"
	"github.com/dgallion1/protorefine/internal/intro"
	"github.com/dgallion1/protorefine/internal/registry"
	"github.com/dgallion1/protorefine/internal/tei"
)

// ErrNoYear is returned for documents whose year could not be inferred.
var ErrNoYear = errors.New("refine: document has no year")

// Options are the per-document switches.
type Options struct {
	// ConfirmedIntros are node ids known to be introductions.
	ConfirmedIntros []string
	// Seed makes generated ids reproducible.
	Seed string
	// Fuzzy allows approximate name matching for noisy digitizations.
	Fuzzy            bool
	RemoveStale      bool
	SkipCertificates bool
}

// Window is the date range registries are filtered to.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Result summarises one refinement.
type Result struct {
	Protocol     string                  `json:"protocol"`
	IDs          int                     `json:"ids"`
	Dates        []string                `json:"dates"`
	Window       Window                  `json:"window"`
	Segmentation intro.Stats             `json:"segmentation"`
	Utterances   int                     `json:"utterances"`
	Unknowns     []attribute.Observation `json:"unknowns"`
}

// Refiner holds the read-only resources shared by every document.
// A Refiner is safe for concurrent use; each call works on its own
// document and its own filtered registry slices.
type Refiner struct {
	Patterns intro.Patterns
	Tables   registry.Tables
	Dates    dates.Parser
	Log      *slog.Logger
}

func (r *Refiner) log() *slog.Logger {
	if r.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Log
}

// Refine annotates doc in place.
func (r *Refiner) Refine(doc *tei.Document, opts Options) (Result, error) {
	if doc.Year == 0 {
		return Result{}, ErrNoYear
	}
	log := r.log().With("protocol", doc.Protocol)

	seg := &intro.Segmenter{
		Detector:    intro.NewDetector(r.Patterns.ForYear(doc.Year), opts.ConfirmedIntros),
		RemoveStale: opts.RemoveStale,
		Log:         log,
	}
	segStats := seg.Segment(doc)

	ids := (&ident.Assigner{Seed: opts.Seed}).Assign(doc)

	inf := &dates.Inferencer{Parser: r.Dates, SkipCertificates: opts.SkipCertificates, Log: log}
	found, inferred := inf.Infer(doc)

	w := WindowFor(doc)
	if !inferred {
		w = yearWindow(doc)
	}
	tables := r.Tables.ForWindow(w.Start, w.End)
	obs := attribute.New(tables, doc.Chamber, opts.Fuzzy, log).Attribute(doc)

	res := Result{
		Protocol:     doc.Protocol,
		IDs:          len(ids),
		Dates:        found,
		Window:       w,
		Segmentation: segStats,
		Unknowns:     obs,
	}
	for it := range doc.Walk(nil) {
		if it.Kind == tei.KindUtterance {
			res.Utterances++
		}
	}
	log.Info("refined protocol",
		"ids", res.IDs, "dates", len(found), "utterances", res.Utterances, "unknowns", len(obs))
	return res, nil
}

// WindowFor returns the span of the document's declared dates that fall in
// its years, or its whole years when there are none.
func WindowFor(doc *tei.Document) Window {
	years := doc.Years()
	var w Window
	for _, s := range doc.Dates {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil || !slices.Contains(years, t.Year()) {
			continue
		}
		if w.Start.IsZero() || t.Before(w.Start) {
			w.Start = t
		}
		if w.End.IsZero() || t.After(w.End) {
			w.End = t
		}
	}
	if w.Start.IsZero() {
		return yearWindow(doc)
	}
	return w
}

func yearWindow(doc *tei.Document) Window {
	return Window{
		Start: time.Date(doc.Year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(doc.LastYear(), time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// NoisyDigitization reports whether a page image URL belongs to one of the
// given sources, whose OCR warrants approximate name matching.
func NoisyDigitization(pageURL string, prefixes []string) bool {
	if pageURL == "" {
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(pageURL, p) {
			return true
		}
	}
	return false
}
