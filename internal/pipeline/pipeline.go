// Package pipeline runs source documents through text extraction, event
// extraction and normalization, and reports what each run did.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/idgen"
	"github.com/alfredjeanlab/campusevents/internal/llm"
	"github.com/alfredjeanlab/campusevents/internal/metrics"
	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
	"github.com/alfredjeanlab/campusevents/internal/source"
	"github.com/alfredjeanlab/campusevents/internal/textextract"
)

// DefaultWorkers is the number of documents processed concurrently.
const DefaultWorkers = 4

var (
	// ErrNoSources is returned when Run is called without fetchers.
	ErrNoSources = errors.New("no sources configured")
	// ErrAllSourcesFailed is returned when every fetcher failed.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// AbortError stops a run on an infrastructure failure that affects every
// remaining document: rejected model credentials or an unreachable store.
type AbortError struct {
	Stage  string
	Source string
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run aborted at %s (source %s): %v", e.Stage, e.Source, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// abortCause returns the AbortError for err, or nil when err does not
// warrant stopping the run.
func abortCause(stage, source string, err error) *AbortError {
	if errors.Is(err, llm.ErrUnauthorized) || errors.Is(err, normalize.ErrStoreUnavailable) {
		return &AbortError{Stage: stage, Source: source, Err: err}
	}
	return nil
}

// Extractor turns document text into candidates.
type Extractor interface {
	Extract(ctx context.Context, source, text string) (*model.ExtractionResult, error)
}

// Config tunes a Runner.
type Config struct {
	Workers  int
	AuditDir string // empty disables the audit file
	Now      func() time.Time
}

// Runner drives ingestion and replay runs.
type Runner struct {
	extractor  Extractor
	normalizer *normalize.Normalizer
	publisher  bus.Publisher
	workers    int
	auditDir   string
	now        func() time.Time
	logger     *slog.Logger
}

// New returns a Runner. A nil publisher discards bus messages.
func New(x Extractor, n *normalize.Normalizer, pub bus.Publisher, cfg Config, logger *slog.Logger) *Runner {
	if pub == nil {
		pub = &bus.NoopPublisher{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		extractor:  x,
		normalizer: n,
		publisher:  pub,
		workers:    cfg.Workers,
		auditDir:   cfg.AuditDir,
		now:        cfg.Now,
		logger:     logger,
	}
}

// job is one document and its position in the run.
type job struct {
	index int
	doc   source.Document
}

// Run fetches from every fetcher and processes the documents. A failing
// fetcher is recorded and skipped; the run fails only when all of them do.
// Per-document and per-candidate failures are counted and skipped, except
// an *AbortError, which stops the run once the documents in flight finish.
// The summary and audit file are produced either way.
func (r *Runner) Run(ctx context.Context, fetchers ...source.Fetcher) (*RunSummary, error) {
	if len(fetchers) == 0 {
		return nil, ErrNoSources
	}
	runID, err := idgen.RunID()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	started := r.now()
	t := newTally(runID, started)
	log := r.logger.With("run", runID)

	var docs []source.Document
	failed := 0
	for _, f := range fetchers {
		got, err := f.Fetch(ctx)
		if err != nil {
			failed++
			t.fail(metrics.StageFetch, f.Name(), err)
			log.Warn("fetch failed", "source", f.Name(), "err", err)
			continue
		}
		for _, d := range got {
			metrics.DocumentsFetched.WithLabelValues(d.Kind).Inc()
		}
		log.Info("fetched documents", "source", f.Name(), "count", len(got))
		docs = append(docs, got...)
	}
	if failed == len(fetchers) {
		s := t.summary(r.now())
		return s, ErrAllSourcesFailed
	}
	t.documents(len(docs))

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	// Results are collected per document so the audit keeps source order.
	perDoc := make([][]*model.Event, len(docs))
	pool := newWorkerPool(runCtx, r.workers, r.workers*2, func(ctx context.Context, j job) {
		metrics.WorkersBusy.Inc()
		defer metrics.WorkersBusy.Dec()
		events, ab := r.processDocument(ctx, runID, j.doc, t, log)
		perDoc[j.index] = events
		if ab != nil {
			abort(ab)
		}
	})
	for i, d := range docs {
		if !pool.Submit(runCtx, job{index: i, doc: d}) {
			break
		}
	}
	pool.Drain()

	s := r.finish(runCtx, t, perDoc, bus.TopicRunCompleted, log)
	metrics.RunDuration.Observe(s.FinishedAt.Sub(started).Seconds())
	var ab *AbortError
	if errors.As(context.Cause(runCtx), &ab) {
		log.Error("run aborted", "stage", ab.Stage, "source", ab.Source, "err", ab.Err)
		return s, ab
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}
	return s, nil
}

// processDocument runs one document through every stage and returns every
// event it normalized, stored or not, for the audit file. A non-nil
// *AbortError means the run cannot usefully continue.
func (r *Runner) processDocument(ctx context.Context, runID string, doc source.Document, t *tally, log *slog.Logger) ([]*model.Event, *AbortError) {
	if ctx.Err() != nil {
		return nil, nil
	}
	text, ref, err := documentText(doc)
	if err != nil {
		t.fail(metrics.StageBody, doc.ID, err)
		log.Warn("body extraction failed", "doc", doc.ID, "err", err)
		return nil, nil
	}

	start := time.Now()
	res, err := r.extractor.Extract(ctx, doc.ID, text)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		t.fail(metrics.StageExtract, doc.ID, err)
		log.Warn("event extraction failed", "doc", doc.ID, "err", err)
		return nil, abortCause(metrics.StageExtract, doc.ID, err)
	}
	malformed := res.MalformedCount()
	t.candidates(len(res.Candidates)-malformed, malformed)

	var events []*model.Event
	var ab *AbortError
	for _, out := range r.normalizer.ProcessAll(ctx, res, ref) {
		t.outcome(doc.ID, out)
		if out.Event == nil {
			continue
		}
		events = append(events, out.Event)
		switch out.Outcome {
		case normalize.OutcomeStored:
			r.publish(ctx, bus.TopicEventCreated, bus.EventCreated{Event: out.Event, RunID: runID}, log)
		case normalize.OutcomeStoreFailed:
			if ab == nil {
				ab = abortCause(metrics.StageStore, doc.ID, out.Err)
			}
		}
	}
	return events, ab
}

// documentText returns the text handed to the extractor and the provenance
// of any events found in it.
func documentText(doc source.Document) (string, normalize.Reference, error) {
	ref := normalize.Reference{
		Source:      doc.ID,
		Link:        doc.Link,
		PubDate:     doc.Published,
		AuthorName:  doc.AuthorName,
		AuthorEmail: doc.AuthorEmail,
	}
	ct := strings.ToLower(doc.ContentType)
	if ct == "" || strings.HasPrefix(ct, "message/rfc822") {
		msg, err := textextract.ParseMessage(doc.Raw)
		if err != nil {
			return "", ref, err
		}
		if ref.PubDate == nil {
			ref.PubDate = msg.Date
		}
		if ref.AuthorName == "" {
			ref.AuthorName = msg.AuthorName
		}
		if ref.AuthorEmail == "" {
			ref.AuthorEmail = msg.AuthorEmail
		}
		text := msg.Body
		if msg.Subject != "" {
			text = "Subject: " + msg.Subject + "\n\n" + text
		}
		return text, ref, nil
	}
	text, err := textextract.ExtractBody(doc.Raw, doc.ContentType)
	return text, ref, err
}

// finish writes the audit file, publishes the run summary and logs it.
func (r *Runner) finish(ctx context.Context, t *tally, perDoc [][]*model.Event, topic string, log *slog.Logger) *RunSummary {
	var events []*model.Event
	for _, evs := range perDoc {
		events = append(events, evs...)
	}
	var auditFile string
	if r.auditDir != "" && len(events) > 0 {
		path, err := WriteAudit(r.auditDir, r.now(), events)
		if err != nil {
			log.Warn("writing audit file failed", "dir", r.auditDir, "err", err)
		} else {
			auditFile = path
		}
	}

	s := t.summary(r.now())
	s.AuditFile = auditFile
	// Publish on a fresh context so a cancelled run still reports.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	r.publish(pubCtx, topic, s.Message(), log)

	log.Info("run complete",
		"documents", s.Documents,
		"candidates", s.Candidates,
		"malformed", s.Malformed,
		"stored", s.Stored,
		"duplicates", s.Duplicates,
		"errors", s.ErrorCount(),
		"duration", s.FinishedAt.Sub(s.StartedAt),
	)
	return s
}

func (r *Runner) publish(ctx context.Context, topic string, msg any, log *slog.Logger) {
	if err := r.publisher.Publish(ctx, topic, msg); err != nil {
		log.Warn("publish failed", "topic", topic, "err", err)
	}
}
