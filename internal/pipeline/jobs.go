package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/protorefine/internal/refine"
)

// JobStatus represents the state of a refinement job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusParsing   JobStatus = "parsing"
	StatusRefining  JobStatus = "refining"
	StatusStoring   JobStatus = "storing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	// StatusPartial means the refined transcript is available but
	// recording or publishing it failed.
	StatusPartial JobStatus = "partial"
)

// Job tracks the refinement of a single uploaded transcript.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Protocol string `json:"protocol"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Options refine.Options `json:"-"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	refined  []byte
	result   *refine.Result
	errors   []string
}

// Progress summarises what refinement did to the transcript.
type Progress struct {
	IDs        int      `json:"ids"`
	Dates      []string `json:"dates"`
	Split      int      `json:"introductions_split"`
	Utterances int      `json:"utterances"`
	Unknowns   int      `json:"unknown_speakers"`
	Recorded   bool     `json:"recorded"`
	Published  bool     `json:"published"`
	Errors     []string `json:"errors"`
}

// NewJob creates a queued job for an uploaded file.
func NewJob(filename string, data []byte, opts refine.Options) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.New().String(),
		Status:      StatusQueued,
		Phase:       "queued",
		Filename:    filename,
		Options:     opts,
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetProtocol records the protocol id once the upload has been parsed.
func (j *Job) SetProtocol(protocol string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Protocol = protocol
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetResult stores the refined transcript and releases the upload.
func (j *Job) SetResult(res refine.Result, refined []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = &res
	j.refined = refined
	j.fileData = nil
	j.Progress.IDs = res.IDs
	j.Progress.Dates = res.Dates
	j.Progress.Split = res.Segmentation.Split
	j.Progress.Utterances = res.Utterances
	j.Progress.Unknowns = len(res.Unknowns)
	j.UpdatedAt = time.Now()
}

// Refined returns the refined TEI document, or false while it is not ready.
func (j *Job) Refined() ([]byte, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.refined, j.refined != nil
}

// Result returns the refinement summary, or nil while it is not ready.
func (j *Job) Result() *refine.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// MarkRecorded notes that the review store holds this job's observations.
func (j *Job) MarkRecorded() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Recorded = true
	j.UpdatedAt = time.Now()
}

// MarkPublished notes that the summary reached the publishing sink.
func (j *Job) MarkPublished() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Published = true
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Protocol    string    `json:"protocol"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	p.Dates = append([]string{}, j.Progress.Dates...)
	return JobSnapshot{
		ID:          j.ID,
		Protocol:    j.Protocol,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
