package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/aggregate"
	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/config"
	"github.com/alfredjeanlab/campusevents/internal/extract"
	"github.com/alfredjeanlab/campusevents/internal/llm"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
	"github.com/alfredjeanlab/campusevents/internal/pipeline"
	"github.com/alfredjeanlab/campusevents/internal/source"
	"github.com/alfredjeanlab/campusevents/internal/store"
	"github.com/alfredjeanlab/campusevents/internal/store/memory"
	"github.com/alfredjeanlab/campusevents/internal/store/postgres"
	eventsync "github.com/alfredjeanlab/campusevents/internal/sync"
)

// loadRules returns the rules file content, or empty rules when none is
// configured.
func loadRules() (*config.Rules, error) {
	if cfg.RulesPath == "" {
		return &config.Rules{}, nil
	}
	return config.LoadRules(cfg.RulesPath)
}

// openStore connects to PostgreSQL, or returns an in-memory store when
// dryRun is set.
func openStore(dryRun bool) (store.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if dryRun {
		return memory.New(loc), nil
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return postgres.New(cfg.DatabaseURL, loc)
}

// openPublisher connects to NATS when configured.
func openPublisher(dryRun bool) (bus.Publisher, error) {
	if dryRun || cfg.NATSURL == "" {
		return &bus.NoopPublisher{}, nil
	}
	p, err := bus.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return p, nil
}

func newNormalizer(s store.Store, rules *config.Rules) (*normalize.Normalizer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return normalize.New(s, normalize.Config{
		Location:          loc,
		Buckets:           rules.Locations,
		Categories:        rules.Categories,
		CategoryThreshold: rules.CategoryThreshold,
		StoreTimeout:      cfg.StoreTimeout,
	}, logger)
}

func newExtractor() *extract.Extractor {
	client := llm.New(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return extract.New(client, extract.Config{
		MaxTokens:  cfg.MaxTokens,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: retries,
	}, logger)
}

func newRunner(s store.Store, pub bus.Publisher, rules *config.Rules, workers int, auditDir string) (*pipeline.Runner, error) {
	n, err := newNormalizer(s, rules)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = cfg.Workers
	}
	return pipeline.New(newExtractor(), n, pub, pipeline.Config{
		Workers:  workers,
		AuditDir: auditDir,
	}, logger), nil
}

// buildFetchers returns one fetcher per maildir and feed. Feeds from the
// rules file follow feeds from the environment.
func buildFetchers(maildirs, feeds []string, rules *config.Rules) []source.Fetcher {
	var out []source.Fetcher
	for _, d := range maildirs {
		out = append(out, source.NewMaildirFetcher(d))
	}
	client := &http.Client{Timeout: 30 * time.Second}
	seen := make(map[string]bool)
	for _, list := range [][]string{feeds, rules.Feeds} {
		for _, u := range list {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, source.NewRSSFetcher(u, client))
		}
	}
	return out
}

// newAggregator opens the store and wraps it with the configured
// categorizer and exclusions.
func newAggregator() (*aggregate.Aggregator, store.Store, error) {
	s, err := openStore(false)
	if err != nil {
		return nil, nil, err
	}
	rules, err := loadRules()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	var cat *normalize.Categorizer
	if len(rules.Categories) > 0 {
		cat = normalize.NewCategorizer(rules.Categories, rules.CategoryThreshold)
	}
	return aggregate.New(s, loc, cat, rules.ExcludeLocations), s, nil
}

// backupDestinations returns the configured S3 and git destinations.
func backupDestinations(ctx context.Context) ([]eventsync.Destination, error) {
	var dests []eventsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := eventsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			return nil, err
		}
		dests = append(dests, d)
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, eventsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
	}
	return dests, nil
}
