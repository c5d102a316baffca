package pipeline

import (
	"sync"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/metrics"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
)

// maxFailures caps the per-run failure details kept in a summary.
const maxFailures = 50

// Failure is one recorded error with enough context to resume.
type Failure struct {
	Stage  string `json:"stage"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// RunSummary reports what one run did.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Documents   int            `json:"documents"`
	Candidates  int            `json:"candidates"`
	Malformed   int            `json:"malformed"`
	Stored      int            `json:"stored"`
	Duplicates  int            `json:"duplicates"`
	Invalid     int            `json:"invalid"`
	StoreFailed int            `json:"store_failed"`
	Errors      map[string]int `json:"errors"`
	Failures    []Failure      `json:"failures,omitempty"`
	AuditFile   string         `json:"audit_file,omitempty"`
}

// ErrorCount returns the total number of errors across stages.
func (s *RunSummary) ErrorCount() int {
	n := 0
	for _, c := range s.Errors {
		n += c
	}
	return n
}

// Message converts the summary to its bus payload.
func (s *RunSummary) Message() bus.RunCompleted {
	errs := make(map[string]int, len(s.Errors))
	for k, v := range s.Errors {
		errs[k] = v
	}
	return bus.RunCompleted{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Documents:  s.Documents,
		Candidates: s.Candidates,
		Malformed:  s.Malformed,
		Stored:     s.Stored,
		Duplicates: s.Duplicates,
		Errors:     errs,
	}
}

// tally accumulates a summary from concurrent workers.
type tally struct {
	mu sync.Mutex
	s  RunSummary
}

func newTally(runID string, started time.Time) *tally {
	return &tally{s: RunSummary{
		RunID:     runID,
		StartedAt: started,
		Errors: map[string]int{
			metrics.StageFetch:     0,
			metrics.StageBody:      0,
			metrics.StageExtract:   0,
			metrics.StageNormalize: 0,
			metrics.StageStore:     0,
		},
	}}
}

func (t *tally) fail(stage, source string, err error) {
	metrics.StageErrors.WithLabelValues(stage).Inc()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.s.Errors[stage]++
	if len(t.s.Failures) < maxFailures {
		t.s.Failures = append(t.s.Failures, Failure{Stage: stage, Source: source, Error: err.Error()})
	}
}

func (t *tally) documents(n int) {
	t.mu.Lock()
	t.s.Documents += n
	t.mu.Unlock()
}

func (t *tally) candidates(valid, malformed int) {
	metrics.CandidatesExtracted.WithLabelValues("valid").Add(float64(valid))
	metrics.CandidatesExtracted.WithLabelValues("malformed").Add(float64(malformed))
	t.mu.Lock()
	t.s.Candidates += valid + malformed
	t.s.Malformed += malformed
	t.mu.Unlock()
}

// outcome records one candidate result. Invalid and store failures also
// count as errors of their stage.
func (t *tally) outcome(source string, r normalize.Result) {
	metrics.CandidateOutcomes.WithLabelValues(string(r.Outcome)).Inc()
	switch r.Outcome {
	case normalize.OutcomeStored:
		t.mu.Lock()
		t.s.Stored++
		t.mu.Unlock()
	case normalize.OutcomeDuplicate:
		t.mu.Lock()
		t.s.Duplicates++
		t.mu.Unlock()
	case normalize.OutcomeInvalid:
		t.mu.Lock()
		t.s.Invalid++
		t.mu.Unlock()
		t.fail(metrics.StageNormalize, source, r.Err)
	case normalize.OutcomeStoreFailed:
		t.mu.Lock()
		t.s.StoreFailed++
		t.mu.Unlock()
		t.fail(metrics.StageStore, source, r.Err)
	}
}

func (t *tally) summary(finished time.Time) *RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.s
	s.FinishedAt = finished
	return &s
}
