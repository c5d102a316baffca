// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage labels.
const (
	StageFetch     = "fetch"
	StageBody      = "body"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StageStore     = "store"
)

var (
	DocumentsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_documents_fetched_total",
		Help: "Source documents fetched, labelled by document kind.",
	}, []string{"kind"})

	CandidatesExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_candidates_extracted_total",
		Help: "Candidates returned by the language model, labelled valid or malformed.",
	}, []string{"kind"})

	CandidateOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_candidate_outcomes_total",
		Help: "Normalized candidates by outcome (stored, duplicate, invalid, store_failed).",
	}, []string{"outcome"})

	StageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_stage_errors_total",
		Help: "Pipeline errors by stage.",
	}, []string{"stage"})

	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campusevents_extraction_duration_seconds",
		Help:    "Latency of one document extraction, including retries.",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "campusevents_run_duration_seconds",
		Help:    "Wall time of a full ingestion run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	WorkersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campusevents_workers_busy",
		Help: "Documents currently being processed.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_http_requests_total",
		Help: "API requests by route and status code.",
	}, []string{"route", "code"})

	BackupsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_backups_total",
		Help: "Backup exports by destination and result.",
	}, []string{"destination", "result"})

	HooksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusevents_hooks_executed_total",
		Help: "Post-run hook commands by triggering topic and result.",
	}, []string{"topic", "result"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campusevents_stream_clients",
		Help: "Connected live event stream clients.",
	})

	StreamDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campusevents_stream_dropped_total",
		Help: "Stream messages dropped because a client fell behind.",
	})
)
