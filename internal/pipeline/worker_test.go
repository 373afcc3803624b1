package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/protorefine/internal/attribute"
	"github.com/dgallion1/protorefine/internal/intro"
	"github.com/dgallion1/protorefine/internal/pathstore"
	"github.com/dgallion1/protorefine/internal/refine"
	"github.com/dgallion1/protorefine/internal/registry"
	"github.com/dgallion1/protorefine/internal/reviewstore"
	"github.com/dgallion1/protorefine/internal/tei"
)

const protocol = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader><fileDesc><titleStmt><title>prot-1933--fk--12</title></titleStmt></fileDesc></teiHeader>
  <text>
    <body>
      <div type="debateSection">
        <pb facs="https://betalab.kb.se/prot-1933--fk--12/page-1.jpg"/>
        <note>Tisdagen den 14 februari 1933</note>
        <note>Herr LINDMAN (h): Herr talman! Jag yrkar bifall.</note>
        <note>Herr OKÄND: Jag instämmer.</note>
      </div>
    </body>
  </text>
</TEI>`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRefiner() *refine.Refiner {
	start, _ := time.Parse(time.DateOnly, "1905-01-01")
	end, _ := time.Parse(time.DateOnly, "1935-01-01")
	return &refine.Refiner{
		Patterns: intro.DefaultPatterns(),
		Tables: registry.Tables{
			Members: registry.Table{
				{PersonID: "i-lindman", Name: "arvid lindman", Start: start, End: end, Chamber: tei.ChamberFirst},
			},
		},
		Log: discard(),
	}
}

type fakeRecorder struct {
	mu        sync.Mutex
	protocols []reviewstore.Protocol
	unknowns  int
	err       error
}

func (f *fakeRecorder) Record(_ context.Context, p reviewstore.Protocol, obs []attribute.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.protocols = append(f.protocols, p)
	f.unknowns += len(obs)
	return nil
}

type fakePublisher struct {
	mu    sync.Mutex
	calls int
	fails int
	err   error
	keys  []string
}

func (f *fakePublisher) PutNode(_ context.Context, key string, _ pathstore.NodeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, key)
	if f.calls <= f.fails {
		return f.err
	}
	return nil
}

func fastBackoff(t *testing.T) {
	prev := backoffUnit
	backoffUnit = time.Millisecond
	t.Cleanup(func() { backoffUnit = prev })
}

func TestWorker_Process(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	stats := NewRefineStats(time.Hour)
	w := NewWorker(testRefiner(), rec, pub, stats, discard(), WorkerConfig{Seed: "test"})

	job := NewJob("prot-1933--fk--12.xml", []byte(protocol), refine.Options{})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Protocol != "prot_1933__fk__12" {
		t.Errorf("expected protocol id, got %q", snap.Protocol)
	}
	if !snap.Progress.Recorded || !snap.Progress.Published {
		t.Errorf("expected recorded and published, got %+v", snap.Progress)
	}
	if snap.Progress.Utterances != 2 || snap.Progress.Unknowns != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}

	out, ok := job.Refined()
	if !ok || !strings.Contains(string(out), `who="i-lindman"`) {
		t.Errorf("expected refined TEI with attributed speaker, got %s", out)
	}

	if len(rec.protocols) != 1 || rec.protocols[0].Year != 1933 || rec.unknowns != 1 {
		t.Errorf("unexpected recorder state %+v (%d unknowns)", rec.protocols, rec.unknowns)
	}
	if rec.protocols[0].ContentHash != job.ContentHash {
		t.Error("expected content hash to be recorded")
	}
	if len(pub.keys) != 1 || pub.keys[0] != "corpus/protocols/prot_1933__fk__12" {
		t.Errorf("unexpected publish keys %v", pub.keys)
	}
	if stats.Snapshot().Count != 1 {
		t.Error("expected one stats sample")
	}
}

func TestWorker_WithoutSinks(t *testing.T) {
	w := NewWorker(testRefiner(), nil, nil, nil, discard(), WorkerConfig{})
	job := NewJob("prot-1933--fk--12.xml", []byte(protocol), refine.Options{})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", snap.Status)
	}
	if snap.Progress.Recorded || snap.Progress.Published {
		t.Errorf("expected nothing recorded or published, got %+v", snap.Progress)
	}
}

func TestWorker_Failures(t *testing.T) {
	w := NewWorker(testRefiner(), nil, nil, nil, discard(), WorkerConfig{})

	tests := []struct {
		filename string
		data     string
		phase    string
	}{
		{"prot-1933--fk--12.exe", protocol, "parsing"},
		{"notes.txt", "Herr talmannen: Ordet lämnas.", "refining"},
	}
	for _, tt := range tests {
		job := NewJob(tt.filename, []byte(tt.data), refine.Options{})
		w.Process(context.Background(), job)
		snap := job.Snapshot()
		if snap.Status != StatusFailed || snap.Phase != tt.phase {
			t.Errorf("%s: expected failed in %s, got %s in %s", tt.filename, tt.phase, snap.Status, snap.Phase)
		}
		if len(snap.Progress.Errors) != 1 {
			t.Errorf("%s: expected one error, got %v", tt.filename, snap.Progress.Errors)
		}
	}
}

func TestWorker_PublishRetries(t *testing.T) {
	fastBackoff(t)
	retryable := &pathstore.RetryableError{Err: errors.New("busy"), StatusCode: 503}

	tests := []struct {
		name   string
		pub    *fakePublisher
		calls  int
		status JobStatus
	}{
		{"recovers", &fakePublisher{fails: 2, err: retryable}, 3, StatusCompleted},
		{"exhausted", &fakePublisher{fails: 10, err: retryable}, MaxRetries, StatusPartial},
		{"permanent", &fakePublisher{fails: 10, err: errors.New("bad request")}, 1, StatusPartial},
	}
	for _, tt := range tests {
		w := NewWorker(testRefiner(), nil, tt.pub, nil, discard(), WorkerConfig{})
		job := NewJob("prot-1933--fk--12.xml", []byte(protocol), refine.Options{})
		w.Process(context.Background(), job)

		if tt.pub.calls != tt.calls {
			t.Errorf("%s: expected %d calls, got %d", tt.name, tt.calls, tt.pub.calls)
		}
		if got := job.Snapshot().Status; got != tt.status {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.status, got)
		}
		if _, ok := job.Refined(); !ok {
			t.Errorf("%s: expected refined document to stay available", tt.name)
		}
	}
}

func TestWorker_RecordFailureIsPartial(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	w := NewWorker(testRefiner(), rec, nil, nil, discard(), WorkerConfig{})
	job := NewJob("prot-1933--fk--12.xml", []byte(protocol), refine.Options{})
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial || snap.Progress.Recorded {
		t.Errorf("expected partial without record, got %s %+v", snap.Status, snap.Progress)
	}
}

func TestWorker_Options(t *testing.T) {
	w := NewWorker(nil, nil, nil, nil, discard(), WorkerConfig{
		Seed:             "service",
		NoisyPrefixes:    []string{"https://betalab.kb.se/"},
		SkipCertificates: true,
	})

	opts := w.options(refine.Options{}, "https://betalab.kb.se/x/page-1.jpg")
	if !opts.Fuzzy || !opts.SkipCertificates || opts.RemoveStale || opts.Seed != "service" {
		t.Errorf("unexpected options %+v", opts)
	}

	opts = w.options(refine.Options{Seed: "job"}, "https://data.riksdagen.se/x.jpg")
	if opts.Fuzzy || opts.Seed != "job" {
		t.Errorf("expected job seed and exact matching, got %+v", opts)
	}
}

func TestBackoff(t *testing.T) {
	for attempt := range 8 {
		d := Backoff(attempt)
		base := backoffUnit << uint(attempt)
		if base > 30*backoffUnit {
			base = 30 * backoffUnit
		}
		if d < base || d > base+base/2+1 {
			t.Errorf("attempt %d: expected %v..%v, got %v", attempt, base, base+base/2, d)
		}
	}
}
