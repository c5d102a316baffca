package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	for name, c := range map[string]prometheus.Collector{
		"documents":  DocumentsFetched,
		"candidates": CandidatesExtracted,
		"outcomes":   CandidateOutcomes,
		"errors":     StageErrors,
		"extraction": ExtractionDuration,
		"run":        RunDuration,
		"workers":    WorkersBusy,
		"http":       HTTPRequests,
		"backups":    BackupsCompleted,
	} {
		// Registering again must report the collector as already present.
		err := prometheus.Register(c)
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			t.Errorf("%s: expected AlreadyRegisteredError, got %v", name, err)
		}
	}
}

func TestStageErrorsCounts(t *testing.T) {
	before := testutil.ToFloat64(StageErrors.WithLabelValues(StageExtract))
	StageErrors.WithLabelValues(StageExtract).Inc()
	if got := testutil.ToFloat64(StageErrors.WithLabelValues(StageExtract)); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}
