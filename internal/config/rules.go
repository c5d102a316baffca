package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// Rules is the content of the optional rules file. Empty lists fall back to
// the built-in campus defaults.
type Rules struct {
	Feeds             []string               `toml:"feeds" yaml:"feeds"`
	ExcludeLocations  []string               `toml:"exclude_locations" yaml:"exclude_locations"`
	CategoryThreshold float64                `toml:"category_threshold" yaml:"category_threshold"`
	Locations         []model.LocationBucket `toml:"locations" yaml:"locations"`
	Categories        []model.CategoryRule   `toml:"categories" yaml:"categories"`
	Hooks             []model.HookRule       `toml:"hooks" yaml:"hooks"`
}

// LoadRules reads a rules file. Files ending in .yaml or .yml are YAML;
// anything else is TOML.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		_, err = toml.Decode(string(data), &r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return &r, nil
}

// hookTopics are the bus topics a hook may trigger on, without prefix.
var hookTopics = map[string]bool{
	"event.created":    true,
	"events.pruned":    true,
	"run.completed":    true,
	"replay.completed": true,
}

func (r *Rules) validate() error {
	for i, b := range r.Locations {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("locations[%d]: name is required", i)
		}
		if len(b.Keywords) == 0 {
			return fmt.Errorf("location %q: keywords are required", b.Name)
		}
		if b.Latitude < -90 || b.Latitude > 90 || b.Longitude < -180 || b.Longitude > 180 {
			return fmt.Errorf("location %q: coordinates out of range", b.Name)
		}
	}
	for i, c := range r.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
	}
	if r.CategoryThreshold < 0 || r.CategoryThreshold > 1 {
		return fmt.Errorf("category_threshold must be within [0, 1]")
	}
	for i, h := range r.Hooks {
		if strings.TrimSpace(h.Command) == "" {
			return fmt.Errorf("hooks[%d]: command is required", i)
		}
		if !hookTopics[strings.TrimPrefix(h.On, "campusevents.")] {
			return fmt.Errorf("hooks[%d]: unknown trigger %q", i, h.On)
		}
		if h.Timeout < 0 {
			return fmt.Errorf("hooks[%d]: timeout must not be negative", i)
		}
		switch h.OnFailure {
		case "", "warn", "ignore":
		default:
			return fmt.Errorf("hooks[%d]: on_failure must be warn or ignore", i)
		}
	}
	return nil
}

// RulesLoader holds the current rules and reloads them when the file changes.
type RulesLoader struct {
	path     string
	logger   *slog.Logger
	mu       sync.RWMutex
	current  *Rules
	onChange []func(*Rules)
}

// NewRulesLoader performs the initial load of path.
func NewRulesLoader(path string, logger *slog.Logger) (*RulesLoader, error) {
	r, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RulesLoader{path: path, logger: logger, current: r}, nil
}

// Rules returns the latest successfully loaded rules.
func (l *RulesLoader) Rules() *Rules {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked after each successful reload.
func (l *RulesLoader) OnChange(fn func(*Rules)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Reload re-reads the file. On error the previous rules stay in effect.
func (l *RulesLoader) Reload() (*Rules, error) {
	r, err := LoadRules(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = r
	callbacks := make([]func(*Rules), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(r)
	}
	return r, nil
}

// Watch reloads the rules whenever the file is written or replaced. The
// directory is watched so editors that rename over the file are seen.
// Call the returned stop function to clean up.
func (l *RulesLoader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rules watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("rules watcher add %s: %w", l.path, err)
	}
	target := filepath.Clean(l.path)

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					if _, err := l.Reload(); err != nil {
						l.logger.Warn("rules reload failed, keeping previous rules", "path", l.path, "err", err)
						continue
					}
					l.logger.Info("rules reloaded", "path", l.path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("rules watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}, nil
}
