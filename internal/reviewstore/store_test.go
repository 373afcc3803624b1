package reviewstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dgallion1/protorefine/internal/attribute"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "review.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func obs(protocol, name string) attribute.Observation {
	return attribute.Observation{Protocol: protocol, NodeID: "i-" + name, Text: "Herr " + name + ":", Name: name}
}

func TestRecordAndList(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	p := Protocol{Protocol: "prot_1933__fk__12", JobID: "job-1", Filename: "prot-1933--fk--12.xml", Year: 1933, Dates: []string{"1933-02-14"}, Utterances: 3}
	if err := s.Record(ctx, p, []attribute.Observation{obs(p.Protocol, "okänd"), obs(p.Protocol, "annan")}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	other := Protocol{Protocol: "prot_1900__ak__1", JobID: "job-2", Year: 1900, Dates: []string{"1900-01-03"}}
	if err := s.Record(ctx, other, []attribute.Observation{obs(other.Protocol, "x")}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := s.List(ctx, p.Protocol, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "annan" || entries[0].JobID != "job-1" {
		t.Errorf("expected newest entry first, got %+v", entries[0])
	}

	all, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 entries across protocols, got %d", len(all))
	}

	n, err := s.Count(ctx, "")
	if err != nil || n != 3 {
		t.Errorf("expected count 3, got %d (%v)", n, err)
	}
}

func TestRecordReplacesEarlierRun(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	p := Protocol{Protocol: "prot_1933__fk__12", JobID: "job-1", Year: 1933}

	if err := s.Record(ctx, p, []attribute.Observation{obs(p.Protocol, "a"), obs(p.Protocol, "b")}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	p.JobID = "job-2"
	p.Utterances = 7
	if err := s.Record(ctx, p, []attribute.Observation{obs(p.Protocol, "c")}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	n, err := s.Count(ctx, p.Protocol)
	if err != nil || n != 1 {
		t.Errorf("expected 1 observation after re-recording, got %d (%v)", n, err)
	}
	protocols, err := s.Protocols(ctx, 0)
	if err != nil {
		t.Fatalf("Protocols: %v", err)
	}
	if len(protocols) != 1 {
		t.Fatalf("expected 1 protocol, got %d", len(protocols))
	}
	got := protocols[0]
	if got.JobID != "job-2" || got.Utterances != 7 || got.Unknowns != 1 {
		t.Errorf("expected latest summary, got %+v", got)
	}
	if got.RefinedAt.IsZero() {
		t.Error("expected refined_at to be set")
	}
}

func TestProtocolsDates(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	p := Protocol{Protocol: "prot_1933__fk__12", JobID: "j", Year: 1933, Dates: []string{"1933-02-14", "1933-02-15"}}
	if err := s.Record(ctx, p, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	protocols, err := s.Protocols(ctx, 10)
	if err != nil {
		t.Fatalf("Protocols: %v", err)
	}
	if len(protocols) != 1 || len(protocols[0].Dates) != 2 || protocols[0].Dates[1] != "1933-02-15" {
		t.Errorf("unexpected protocols %+v", protocols)
	}
}

func TestRecordConcurrentWriters(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	const writers, perWriter = 16, 20
	errs := make(chan error, writers*perWriter)
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				p := Protocol{Protocol: fmt.Sprintf("prot_1933__fk__%d", w*perWriter+i), JobID: "job", Year: 1933}
				errs <- s.Record(ctx, p, []attribute.Observation{obs(p.Protocol, "okänd")})
			}
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	var first error
	for err := range errs {
		if err != nil {
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if failed > 0 {
		t.Fatalf("expected every record to succeed, %d failed: %v", failed, first)
	}

	total, err := s.Count(ctx, "")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != writers*perWriter {
		t.Errorf("expected %d observations, got %d", writers*perWriter, total)
	}
}
