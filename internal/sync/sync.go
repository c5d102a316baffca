// Package sync backs up stored events as JSONL to S3 or a git repository,
// once or on a schedule, and restores them from such a backup.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/metrics"
	"github.com/alfredjeanlab/campusevents/internal/store"
)

// ErrEmptySnapshot is returned by a destination that refuses to replace a
// backup holding events with one holding none.
var ErrEmptySnapshot = errors.New("refusing to overwrite backup with an empty export")

// Snapshot is one JSONL export of the event store.
type Snapshot struct {
	Data    []byte
	Events  int
	TakenAt time.Time
}

// Destination is the interface for a backup target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs and metrics.
	Name() string
	// Write stores the snapshot at the destination.
	Write(ctx context.Context, snap Snapshot) error
}

// Scheduler runs periodic backups to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
	}
}

// Start begins periodic backups. It runs one immediately, then on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current backup (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	_ = s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.SyncOnce(ctx)
		}
	}
}

// SyncOnce exports the store and writes it to every destination. Every
// destination is tried; the returned error joins their failures.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, s.store, &buf)
	if err != nil {
		s.logger.Error("backup export failed", "err", err)
		return err
	}
	snap := Snapshot{Data: buf.Bytes(), Events: n, TakenAt: s.now().UTC()}

	var errs []error
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, snap); err != nil {
			metrics.BackupsCompleted.WithLabelValues(dest.Name(), "error").Inc()
			s.logger.Error("backup destination write failed", "destination", dest.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", dest.Name(), err))
			continue
		}
		metrics.BackupsCompleted.WithLabelValues(dest.Name(), "ok").Inc()
	}

	s.logger.Info("backup completed", "destinations", len(s.destinations), "events", n, "bytes", len(snap.Data))
	return errors.Join(errs...)
}
