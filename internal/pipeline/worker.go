package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/protorefine/internal/attribute"
	"github.com/dgallion1/protorefine/internal/parser"
	"github.com/dgallion1/protorefine/internal/pathstore"
	"github.com/dgallion1/protorefine/internal/refine"
	"github.com/dgallion1/protorefine/internal/reviewstore"
)

// Recorder keeps refined protocol summaries and unknown-speaker
// observations for review.
type Recorder interface {
	Record(ctx context.Context, p reviewstore.Protocol, obs []attribute.Observation) error
}

// Publisher receives protocol summaries.
type Publisher interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
}

// WorkerConfig holds the service-wide refinement defaults.
type WorkerConfig struct {
	Seed                 string
	NoisyPrefixes        []string
	RemoveStaleIntros    bool
	SkipCertificates     bool
	PDFFallbackPdftotext bool
}

// Worker processes a single transcript job.
type Worker struct {
	refiner   *refine.Refiner
	store     Recorder
	publisher Publisher
	stats     *RefineStats
	log       *slog.Logger
	cfg       WorkerConfig
}

// NewWorker builds a worker. store and publisher may be nil.
func NewWorker(refiner *refine.Refiner, store Recorder, publisher Publisher, stats *RefineStats, log *slog.Logger, cfg WorkerConfig) *Worker {
	return &Worker{
		refiner:   refiner,
		store:     store,
		publisher: publisher,
		stats:     stats,
		log:       log,
		cfg:       cfg,
	}
}

// Process parses, refines, records and publishes one transcript. Failures
// are recorded on the job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = w.cfg.PDFFallbackPdftotext
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetProtocol(doc.Protocol)
	log = log.With("protocol", doc.Protocol)

	// Phase 2: Refine
	job.SetStatus(StatusRefining, "refining")
	opts := w.options(job.Options, doc.PageImageURL())
	if opts.Fuzzy {
		log.Debug("approximate name matching enabled", "page", doc.PageImageURL())
	}

	start := time.Now()
	res, err := w.refiner.Refine(doc, opts)
	if err != nil {
		log.Error("refine failed", "error", err)
		job.AddError(fmt.Sprintf("refine: %s", err))
		job.SetStatus(StatusFailed, "refining")
		return
	}

	var buf bytes.Buffer
	if err := doc.Encode(&buf); err != nil {
		log.Error("encode failed", "error", err)
		job.AddError(fmt.Sprintf("encode: %s", err))
		job.SetStatus(StatusFailed, "refining")
		return
	}
	if w.stats != nil {
		w.stats.Record(time.Since(start), res.Utterances, len(res.Unknowns))
	}
	job.SetResult(res, buf.Bytes())
	for _, o := range res.Unknowns {
		log.Warn("unknown speaker", "node_id", o.NodeID, "text", o.Text)
	}

	// Phase 3: Record and publish
	job.SetStatus(StatusStoring, "storing")
	hadErrors := false

	if w.store != nil {
		err := w.store.Record(ctx, reviewstore.Protocol{
			Protocol:    res.Protocol,
			JobID:       job.ID,
			Filename:    job.Filename,
			ContentHash: job.ContentHash,
			Year:        doc.Year,
			Dates:       res.Dates,
			Utterances:  res.Utterances,
		}, res.Unknowns)
		if err != nil {
			log.Error("review store write failed", "error", err)
			job.AddError(fmt.Sprintf("record: %s", err))
			hadErrors = true
		} else {
			job.MarkRecorded()
		}
	}

	if w.publisher != nil {
		if err := w.publish(ctx, log, job, res); err != nil {
			log.Error("publish failed", "error", err)
			job.AddError(fmt.Sprintf("publish: %s", err))
			hadErrors = true
		} else {
			job.MarkPublished()
		}
	}

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}

// options merges the job's switches with the service defaults. Approximate
// matching is switched on for sources with noisy digitization.
func (w *Worker) options(opts refine.Options, pageURL string) refine.Options {
	if opts.Seed == "" {
		opts.Seed = w.cfg.Seed
	}
	opts.Fuzzy = opts.Fuzzy || refine.NoisyDigitization(pageURL, w.cfg.NoisyPrefixes)
	opts.RemoveStale = opts.RemoveStale || w.cfg.RemoveStaleIntros
	opts.SkipCertificates = opts.SkipCertificates || w.cfg.SkipCertificates
	return opts
}

func (w *Worker) publish(ctx context.Context, log *slog.Logger, job *Job, res refine.Result) error {
	req := pathstore.NodeRequest{
		Value: map[string]any{
			"filename":            job.Filename,
			"content_hash":        job.ContentHash,
			"dates":               res.Dates,
			"window":              res.Window,
			"ids":                 res.IDs,
			"utterances":          res.Utterances,
			"introductions_split": res.Segmentation.Split,
			"unknowns":            res.Unknowns,
			"refined_at":          time.Now().UTC().Format(time.RFC3339),
		},
		MergeMode: "replace",
		Source:    "protorefine:" + job.ID,
	}
	key := pathstore.ProtocolKey(res.Protocol)
	return withRetry(ctx, log, "publish "+key, func() error {
		return w.publisher.PutNode(ctx, key, req)
	})
}
