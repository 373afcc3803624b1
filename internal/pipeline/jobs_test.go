package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/protorefine/internal/attribute"
	"github.com/dgallion1/protorefine/internal/intro"
	"github.com/dgallion1/protorefine/internal/refine"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	if ContentHashHex([]byte("aaa")) == ContentHashHex([]byte("bbb")) {
		t.Error("expected different hashes for different inputs")
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("prot-1933--fk--12.xml", []byte("hello world"), refine.Options{Seed: "s"})
	if job.ID == "" || job.Status != StatusQueued {
		t.Errorf("expected queued job with an id, got %+v", job.Snapshot())
	}
	if job.ContentHash != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Errorf("expected content hash of upload, got %q", job.ContentHash)
	}
	if other := NewJob("x.xml", nil, refine.Options{}); other.ID == job.ID {
		t.Error("expected distinct job ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusRefining, "refining"},
		{StatusStoring, "storing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("parse: bad xml")
	job.AddError("publish: status 500")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "parse: bad xml" {
		t.Errorf("expected first error %q, got %q", "parse: bad xml", snap.Progress.Errors[0])
	}
}

func TestJob_SetResult(t *testing.T) {
	job := NewJob("prot.xml", []byte("<TEI/>"), refine.Options{})
	if _, ok := job.Refined(); ok {
		t.Fatal("expected no refined document before SetResult")
	}

	res := refine.Result{
		Protocol:     "prot_1933__fk__12",
		IDs:          4,
		Dates:        []string{"1933-02-14"},
		Segmentation: intro.Stats{Split: 2},
		Utterances:   3,
		Unknowns:     []attribute.Observation{{NodeID: "i-x"}},
	}
	job.SetResult(res, []byte("<TEI>refined</TEI>"))

	out, ok := job.Refined()
	if !ok || string(out) != "<TEI>refined</TEI>" {
		t.Errorf("expected refined document, got %q", out)
	}
	if job.FileData() != nil {
		t.Error("expected upload released after refinement")
	}
	snap := job.Snapshot()
	if snap.Progress.IDs != 4 || snap.Progress.Split != 2 || snap.Progress.Utterances != 3 || snap.Progress.Unknowns != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if job.Result() == nil || job.Result().Protocol != "prot_1933__fk__12" {
		t.Errorf("expected result summary, got %+v", job.Result())
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotSlicesNotNil(t *testing.T) {
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil || snap.Progress.Dates == nil {
		t.Error("expected non-nil slices in snapshot")
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}
