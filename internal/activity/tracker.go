// Package activity keeps a live roster of the senders whose announcements
// turn into events: mailing lists, departments and feed authors.
//
// The server records every newly stored event it sees on the bus. A
// background sweeper marks senders quiet once they have gone without a new
// event for a configurable period, and forgets them some time after that.
// The roster lives in memory only and starts empty on every restart.
package activity

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// UnknownSender keys events that carry neither an author email nor a name.
const UnknownSender = "unknown"

// Entry is one sender's activity as reported by Roster.
type Entry struct {
	Sender     string    `json:"sender"`
	Name       string    `json:"name,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	LastTitle  string    `json:"last_title"`
	LastRun    string    `json:"last_run,omitempty"`
	IdleSecs   float64   `json:"idle_secs"`
	EventCount int64     `json:"event_count"`
	Quiet      bool      `json:"quiet,omitempty"`
	QuietSince time.Time `json:"quiet_since,omitempty"`
}

// SweepConfig configures the background sweeper.
type SweepConfig struct {
	// QuietAfter is how long a sender may go without a new event before it
	// is marked quiet. Default: 14 days.
	QuietAfter time.Duration

	// ForgetAfter is how long a quiet sender stays in the roster.
	// Default: 30 days.
	ForgetAfter time.Duration

	// Interval is how often the sweeper runs. Default: 1 hour.
	Interval time.Duration

	// OnQuiet is called outside the lock for each sender newly marked quiet.
	OnQuiet func(sender string)
}

// Tracker maintains the in-memory sender roster.
type Tracker struct {
	mu      sync.RWMutex
	senders map[string]*senderState
	now     func() time.Time
	logger  *slog.Logger

	stop chan struct{}
	done chan struct{}
}

type senderState struct {
	name       string
	firstSeen  time.Time
	lastSeen   time.Time
	lastTitle  string
	lastRun    string
	eventCount int64
	quiet      bool
	quietSince time.Time
}

// New returns an empty tracker.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		senders: make(map[string]*senderState),
		now:     time.Now,
		logger:  logger,
	}
}

// SenderKey returns the roster key for e: its lowercased author email,
// else its author name, else UnknownSender.
func SenderKey(e *model.Event) string {
	if email := strings.ToLower(strings.TrimSpace(e.AuthorEmail)); email != "" {
		return email
	}
	if name := strings.TrimSpace(e.AuthorName); name != "" {
		return name
	}
	return UnknownSender
}

// Record notes that e was stored by run runID.
func (t *Tracker) Record(e *model.Event, runID string) {
	if e == nil {
		return
	}
	key := SenderKey(e)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.senders[key]
	if !ok {
		st = &senderState{firstSeen: now}
		t.senders[key] = st
	}
	if st.quiet {
		t.logger.Info("sender active again", "sender", key)
		st.quiet = false
		st.quietSince = time.Time{}
	}
	st.lastSeen = now
	st.lastTitle = e.Title
	st.eventCount++
	if runID != "" {
		st.lastRun = runID
	}
	if e.AuthorName != "" {
		st.name = e.AuthorName
	}
}

// Roster returns every sender seen within activeWithin, most recent first.
// Zero includes every sender still tracked.
func (t *Tracker) Roster(activeWithin time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.senders))
	for key, st := range t.senders {
		idle := now.Sub(st.lastSeen)
		if activeWithin > 0 && idle > activeWithin {
			continue
		}
		entries = append(entries, Entry{
			Sender:     key,
			Name:       st.name,
			FirstSeen:  st.firstSeen,
			LastSeen:   st.lastSeen,
			LastTitle:  st.lastTitle,
			LastRun:    st.lastRun,
			IdleSecs:   idle.Seconds(),
			EventCount: st.eventCount,
			Quiet:      st.quiet,
			QuietSince: st.quietSince,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].LastSeen.After(entries[j].LastSeen)
		}
		return entries[i].Sender < entries[j].Sender
	})
	return entries
}

// StartSweeper launches the background sweeper. Call Stop to end it.
func (t *Tracker) StartSweeper(cfg *SweepConfig) {
	if cfg == nil {
		cfg = &SweepConfig{}
	}
	if cfg.QuietAfter == 0 {
		cfg.QuietAfter = 14 * 24 * time.Hour
	}
	if cfg.ForgetAfter == 0 {
		cfg.ForgetAfter = 30 * 24 * time.Hour
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.sweepLoop(cfg)
	t.logger.Info("sender sweeper started", "quiet_after", cfg.QuietAfter, "interval", cfg.Interval)
}

// Stop shuts down the sweeper.
func (t *Tracker) Stop() {
	if t.stop != nil {
		close(t.stop)
		<-t.done
		t.stop = nil
		t.done = nil
	}
}

func (t *Tracker) sweepLoop(cfg *SweepConfig) {
	defer close(t.done)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *SweepConfig) {
	now := t.now()
	var newlyQuiet []string

	t.mu.Lock()
	for key, st := range t.senders {
		if st.quiet {
			if now.Sub(st.quietSince) > cfg.ForgetAfter {
				delete(t.senders, key)
			}
			continue
		}
		if now.Sub(st.lastSeen) > cfg.QuietAfter {
			st.quiet = true
			st.quietSince = now
			newlyQuiet = append(newlyQuiet, key)
		}
	}
	t.mu.Unlock()

	sort.Strings(newlyQuiet)
	for _, key := range newlyQuiet {
		t.logger.Info("sender went quiet", "sender", key, "after", cfg.QuietAfter)
		if cfg.OnQuiet != nil {
			cfg.OnQuiet(key)
		}
	}
}
