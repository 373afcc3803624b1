package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/protorefine/internal/config"
	"github.com/dgallion1/protorefine/internal/pathstore"
	"github.com/dgallion1/protorefine/internal/refine"
	"github.com/dgallion1/protorefine/internal/reviewstore"
)

// Orchestrator manages the refinement pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	refiner *refine.Refiner
	store   *reviewstore.Store
	ps      *pathstore.Client
	stats   *RefineStats
	log     *slog.Logger
	cfg     config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. store and ps may be nil.
func NewOrchestrator(cfg config.Config, refiner *refine.Refiner, store *reviewstore.Store, ps *pathstore.Client, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		refiner: refiner,
		store:   store,
		ps:      ps,
		stats:   NewRefineStats(time.Hour),
		log:     log,
		cfg:     cfg,
	}
}

// newWorker avoids handing a typed nil to the worker's interfaces.
func (o *Orchestrator) newWorker() *Worker {
	var rec Recorder
	if o.store != nil {
		rec = o.store
	}
	var pub Publisher
	if o.ps != nil {
		pub = o.ps
	}
	return NewWorker(o.refiner, rec, pub, o.stats, o.log, WorkerConfig{
		Seed:                 o.cfg.IDSeed,
		NoisyPrefixes:        o.cfg.NoisyPrefixes,
		RemoveStaleIntros:    o.cfg.RemoveStaleIntros,
		SkipCertificates:     o.cfg.SkipCertificates,
		PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext,
	})
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the rolling refinement statistics.
func (o *Orchestrator) Stats() *RefineStats {
	return o.stats
}

// ReviewStore returns the review store, or nil when none is configured.
func (o *Orchestrator) ReviewStore() *reviewstore.Store {
	return o.store
}

// PathstoreClient returns the publishing client, or nil when publishing is
// disabled.
func (o *Orchestrator) PathstoreClient() *pathstore.Client {
	return o.ps
}
