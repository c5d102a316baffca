package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/idgen"
	"github.com/alfredjeanlab/campusevents/internal/metrics"
	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
)

const (
	auditPrefix = "events_"
	auditSuffix = ".json"
	auditStamp  = "2006-01-02T15-04-05"
)

// AuditRecord is one event as written to an audit file.
type AuditRecord struct {
	Title            string   `json:"title"`
	EventDescription string   `json:"event_description"`
	StartTime        string   `json:"start_time"`
	EndTime          *string  `json:"end_time"`
	Location         string   `json:"location"`
	MapLocation      string   `json:"map_location"`
	AuthorName       string   `json:"author_name"`
	AuthorEmail      string   `json:"author_email"`
	Link             string   `json:"link,omitempty"`
	Host             []string `json:"host,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	Source           string   `json:"source,omitempty"`
}

// RecordOf converts an event to its audit form.
func RecordOf(e *model.Event) AuditRecord {
	rec := AuditRecord{
		Title:            e.Title,
		EventDescription: e.EventDescription,
		StartTime:        e.StartTime.Format(time.RFC3339),
		Location:         e.Location,
		MapLocation:      e.MapLocation,
		AuthorName:       e.AuthorName,
		AuthorEmail:      e.AuthorEmail,
		Link:             e.Link,
		Host:             e.Host,
		Categories:       e.Categories,
		Source:           e.Source,
	}
	if e.EndTime != nil {
		end := e.EndTime.Format(time.RFC3339)
		rec.EndTime = &end
	}
	return rec
}

// Candidate converts the record back into a valid candidate.
func (a AuditRecord) Candidate() model.Candidate {
	fields := map[string]string{
		model.FieldTitle:       a.Title,
		model.FieldDescription: a.EventDescription,
		model.FieldStartTime:   a.StartTime,
		model.FieldLocation:    a.Location,
		model.FieldMapLocation: a.MapLocation,
		model.FieldAuthorName:  a.AuthorName,
		model.FieldAuthorEmail: a.AuthorEmail,
		model.FieldLink:        a.Link,
		model.FieldHost:        strings.Join(a.Host, ", "),
		model.FieldCategories:  strings.Join(a.Categories, ", "),
	}
	if a.EndTime != nil {
		fields[model.FieldEndTime] = *a.EndTime
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return model.Candidate{Kind: model.CandidateValid, Fields: fields}
}

// WriteAudit writes events to dir as events_<timestamp>.json and returns
// the path. The file is written to a temporary name first.
func WriteAudit(dir string, at time.Time, events []*model.Event) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating audit dir: %w", err)
	}
	recs := make([]AuditRecord, 0, len(events))
	for _, e := range events {
		recs = append(recs, RecordOf(e))
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding audit records: %w", err)
	}

	path := filepath.Join(dir, auditPrefix+at.UTC().Format(auditStamp)+auditSuffix)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing audit file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("renaming audit file: %w", err)
	}
	return path, nil
}

// LoadAudit reads the records of one audit file.
func LoadAudit(path string) ([]AuditRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audit file: %w", err)
	}
	var recs []AuditRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decoding audit file %s: %w", filepath.Base(path), err)
	}
	return recs, nil
}

// LatestAudit returns the newest audit file in dir, or os.ErrNotExist.
func LatestAudit(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, auditPrefix+"*"+auditSuffix))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no audit files in %s: %w", dir, os.ErrNotExist)
	}
	// Timestamps sort lexically.
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// Replay re-processes the events recorded in an audit file. Existing
// events are reported as duplicates, so replaying is idempotent. An
// unreachable store stops the replay with an *AbortError.
func (r *Runner) Replay(ctx context.Context, path string) (*RunSummary, error) {
	recs, err := LoadAudit(path)
	if err != nil {
		return nil, err
	}
	runID, err := idgen.RunID()
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	t := newTally(runID, r.now())
	log := r.logger.With("run", runID, "replay", filepath.Base(path))
	t.documents(1)
	t.candidates(len(recs), 0)

	src := "replay:" + filepath.Base(path)
	var ab *AbortError
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		ref := normalize.Reference{
			Source:      firstNonEmpty(rec.Source, src),
			Link:        rec.Link,
			AuthorName:  rec.AuthorName,
			AuthorEmail: rec.AuthorEmail,
		}
		out := r.normalizer.Process(ctx, rec.Candidate(), ref)
		t.outcome(ref.Source, out)
		if out.Outcome == normalize.OutcomeStored {
			r.publish(ctx, bus.TopicEventCreated, bus.EventCreated{Event: out.Event, RunID: runID}, log)
		}
		if ab = abortCause(metrics.StageStore, ref.Source, out.Err); ab != nil {
			break
		}
	}
	s := r.finishReplay(ctx, t, log)
	if ab != nil {
		log.Error("replay aborted", "source", ab.Source, "err", ab.Err)
		return s, ab
	}
	if err := ctx.Err(); err != nil {
		return s, err
	}
	return s, nil
}

func (r *Runner) finishReplay(ctx context.Context, t *tally, log *slog.Logger) *RunSummary {
	s := t.summary(r.now())
	metrics.RunDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	r.publish(pubCtx, bus.TopicReplayCompleted, s.Message(), log)
	log.Info("replay complete", "records", s.Candidates, "stored", s.Stored, "duplicates", s.Duplicates, "errors", s.ErrorCount())
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
