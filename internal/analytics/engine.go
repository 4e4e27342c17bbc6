// Package analytics ingests the durable alert event stream, computes rolling
// metrics over it, and detects recurring patterns.
package analytics

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/bus"
)

// Config tunes the analytics engine
type Config struct {
	RetentionDays         int `yaml:"retention_days"`
	AnalysisWindowMinutes int `yaml:"analysis_window_minutes"`
	MinOccurrences        int `yaml:"min_occurrences"`
	CacheTTLSeconds       int `yaml:"cache_ttl_seconds"`
	SweepIntervalSec      int `yaml:"sweep_interval_seconds"`
}

// DefaultConfig returns the default analytics configuration
func DefaultConfig() Config {
	return Config{
		RetentionDays:         7,
		AnalysisWindowMinutes: 60,
		MinOccurrences:        10,
		CacheTTLSeconds:       60,
		SweepIntervalSec:      300,
	}
}

func (c Config) analysisWindow() time.Duration {
	return time.Duration(c.AnalysisWindowMinutes) * time.Minute
}

func (c Config) retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Engine owns the append-only event log, the pattern set and the query
// cache. Events are never mutated or reordered after insertion; retention
// sweeps are the only removal path.
type Engine struct {
	cfg Config
	bus *bus.Bus

	mu       sync.Mutex
	events   []*alerts.AlertEvent
	patterns map[string]*alerts.AlertPattern

	cache *queryCache

	stopOnce sync.Once
	stop     chan struct{}
}

// NewEngine creates an analytics engine
func NewEngine(cfg Config, b *bus.Bus) *Engine {
	def := DefaultConfig()
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = def.RetentionDays
	}
	if cfg.AnalysisWindowMinutes <= 0 {
		cfg.AnalysisWindowMinutes = def.AnalysisWindowMinutes
	}
	if cfg.MinOccurrences <= 0 {
		cfg.MinOccurrences = def.MinOccurrences
	}
	if cfg.CacheTTLSeconds <= 0 {
		cfg.CacheTTLSeconds = def.CacheTTLSeconds
	}
	if cfg.SweepIntervalSec <= 0 {
		cfg.SweepIntervalSec = def.SweepIntervalSec
	}
	return &Engine{
		cfg:      cfg,
		bus:      b,
		patterns: make(map[string]*alerts.AlertPattern),
		cache:    newQueryCache(time.Duration(cfg.CacheTTLSeconds) * time.Second),
		stop:     make(chan struct{}),
	}
}

// Record appends a lifecycle event and runs pattern detection synchronously
// against the retained history. A missing event id is filled in; the event
// is immutable once stored.
func (e *Engine) Record(ev *alerts.AlertEvent) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	e.mu.Lock()
	e.events = append(e.events, ev)
	e.detectPatterns(ev.Timestamp)
	e.mu.Unlock()
}

// EventCount returns the number of retained events
func (e *Engine) EventCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

// Events returns a snapshot of the retained event log in insertion order
func (e *Engine) Events() []*alerts.AlertEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*alerts.AlertEvent, len(e.events))
	copy(out, e.events)
	return out
}

// Run executes a query, consulting the TTL cache first. The cache key
// covers the full query including its time range.
func (e *Engine) Run(q *Query) (*Report, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	key := q.cacheKey()
	if report, ok := e.cache.get(key); ok {
		cached := *report
		cached.FromCache = true
		return &cached, nil
	}

	report := execute(q, e.Events())
	e.cache.put(key, report)
	return report, nil
}

// GetPatterns returns detected patterns, optionally filtered by status.
// An empty status returns all patterns. Results are sorted by descending
// confidence, then id, for stable output.
func (e *Engine) GetPatterns(status alerts.PatternStatus) []*alerts.AlertPattern {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*alerts.AlertPattern, 0, len(e.patterns))
	for _, p := range e.patterns {
		if status != "" && p.Status != status {
			continue
		}
		snapshot := *p
		out = append(out, &snapshot)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// SetPatternStatus applies an operator-driven status transition
func (e *Engine) SetPatternStatus(id string, status alerts.PatternStatus) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.patterns[id]
	if !ok {
		return false
	}
	p.Status = status
	return true
}

// RunRetentionSweep purges events older than the retention window. The
// surviving slice is rebuilt from a snapshot rather than filtered in place
// under a long-held lock. Returns the purge count; exposed so tests can
// trigger retention deterministically.
func (e *Engine) RunRetentionSweep(now time.Time) int {
	cutoff := now.Add(-e.cfg.retention())

	e.mu.Lock()
	kept := make([]*alerts.AlertEvent, 0, len(e.events))
	for _, ev := range e.events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	purged := len(e.events) - len(kept)
	e.events = kept
	e.mu.Unlock()

	return purged
}

// Start begins the periodic retention and cache-expiry sweeps
func (e *Engine) Start() {
	interval := time.Duration(e.cfg.SweepIntervalSec) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				if n := e.RunRetentionSweep(now); n > 0 {
					log.Printf("Analytics retention sweep purged %d events", n)
				}
				e.cache.sweep(now)
			case <-e.stop:
				return
			}
		}
	}()
}

// Stop halts the background sweeps
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Engine) publishPattern(p *alerts.AlertPattern) {
	if e.bus != nil {
		snapshot := *p
		e.bus.Publish(bus.KindPatternDetected, snapshot)
	}
}
