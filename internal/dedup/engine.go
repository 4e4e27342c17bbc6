// Package dedup maintains alert groups keyed by fingerprint and time window,
// deciding whether an incoming alert joins an existing group or starts a new
// one, and whether it is suppressed.
package dedup

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alertpipe/alertpipe/internal/alerts"
	"github.com/alertpipe/alertpipe/internal/alerts/fingerprint"
	"github.com/alertpipe/alertpipe/internal/bus"
)

// MaxSimilarAlerts caps the similar-alert sample returned per processed alert
const MaxSimilarAlerts = 10

// Config tunes the deduplication engine
type Config struct {
	TimeWindowMinutes   int      `yaml:"time_window_minutes"`
	MaxAlertsPerGroup   int      `yaml:"max_alerts_per_group"`
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	FingerprintFields   []string `yaml:"fingerprint_fields"`
	EnableClustering    bool     `yaml:"enable_clustering"`
	SweepIntervalSec    int      `yaml:"sweep_interval_seconds"`
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		TimeWindowMinutes:   5,
		MaxAlertsPerGroup:   10,
		SimilarityThreshold: 0.8,
		FingerprintFields:   fingerprint.DefaultFields,
		EnableClustering:    false,
		SweepIntervalSec:    60,
	}
}

// Result is the outcome of processing one alert. FirstSeen is the group's
// first sighting; similarity-joined members land in a group keyed under the
// founding alert's fingerprint, so callers cannot recover it from the
// member's own fingerprint.
type Result struct {
	IsNew         bool            `json:"is_new"`
	GroupID       string          `json:"group_id"`
	FirstSeen     time.Time       `json:"first_seen"`
	Suppressed    bool            `json:"suppressed"`
	SimilarAlerts []*alerts.Alert `json:"similar_alerts,omitempty"`
}

// Stats tracks running deduplication counters.
// DedupRate is (total-unique)/total.
type Stats struct {
	TotalAlerts      int     `json:"total_alerts"`
	UniqueAlerts     int     `json:"unique_alerts"`
	SuppressedAlerts int     `json:"suppressed_alerts"`
	DedupRate        float64 `json:"dedup_rate"`
}

// groupEntry pairs a group with bookkeeping the engine needs for tie-breaks
// and cluster lookups.
type groupEntry struct {
	group   *alerts.AlertGroup
	seq     int
	cluster string
}

// Engine is the deduplication engine. All group state is owned by the engine
// instance; lookup-or-create is atomic under the engine mutex so at most one
// group exists per fingerprint.
type Engine struct {
	cfg       Config
	clusterer Clusterer
	bus       *bus.Bus

	mu       sync.Mutex
	groups   map[string]*groupEntry
	clusters map[string]map[string]*groupEntry
	seq      int
	stats    Stats

	stopOnce sync.Once
	stop     chan struct{}
}

// NewEngine creates a deduplication engine. A nil clusterer gets the default
// feature-hash bucketer; a nil bus disables notifications.
func NewEngine(cfg Config, clusterer Clusterer, b *bus.Bus) *Engine {
	if cfg.TimeWindowMinutes <= 0 {
		cfg.TimeWindowMinutes = DefaultConfig().TimeWindowMinutes
	}
	if cfg.MaxAlertsPerGroup <= 0 {
		cfg.MaxAlertsPerGroup = DefaultConfig().MaxAlertsPerGroup
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.SweepIntervalSec <= 0 {
		cfg.SweepIntervalSec = DefaultConfig().SweepIntervalSec
	}
	if clusterer == nil {
		clusterer = &FeatureHashClusterer{}
	}
	return &Engine{
		cfg:       cfg,
		clusterer: clusterer,
		bus:       b,
		groups:    make(map[string]*groupEntry),
		clusters:  make(map[string]map[string]*groupEntry),
		stop:      make(chan struct{}),
	}
}

// window returns the configured group time window
func (e *Engine) window() time.Duration {
	return time.Duration(e.cfg.TimeWindowMinutes) * time.Minute
}

// withinWindow reports whether an alert timestamp belongs to a group.
// Grouping is anchored to the group's first alert, not a sliding window
// from the latest member.
func (e *Engine) withinWindow(ts time.Time, g *alerts.AlertGroup) bool {
	return !ts.After(g.FirstSeen.Add(e.window()))
}

// Process runs deduplication for one alert, mutating its fingerprint, group
// membership, count and suppressed flag.
func (e *Engine) Process(a *alerts.Alert) *Result {
	fp := fingerprint.Compute(a, e.cfg.FingerprintFields)
	a.Fingerprint = fp

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalAlerts++

	entry := e.match(a, fp)
	if entry == nil {
		return e.createGroup(a, fp)
	}
	return e.appendToGroup(a, entry)
}

// match finds the group the alert belongs to: exact fingerprint first, then
// clusterer-assisted similarity, then a linear scan. Caller holds the lock.
func (e *Engine) match(a *alerts.Alert, fp string) *groupEntry {
	if entry, ok := e.groups[fp]; ok && e.withinWindow(a.Timestamp, entry.group) {
		return entry
	}

	if e.cfg.EnableClustering {
		if entry := e.clusterMatch(a); entry != nil {
			return entry
		}
	}

	return e.scanMatch(a, e.groups)
}

// clusterMatch narrows the similarity scan to groups sharing the alert's
// cluster bucket. Clusterer failures fall back to the full scan.
func (e *Engine) clusterMatch(a *alerts.Alert) *groupEntry {
	key, err := e.clusterer.Bucket(a)
	if err != nil {
		log.Printf("Clusterer failed for alert %s, falling back to rule-based match: %v", a.ID, err)
		return nil
	}
	candidates := e.clusters[key]
	if len(candidates) == 0 {
		return nil
	}
	return e.scanMatch(a, candidates)
}

// scanMatch picks the highest-scoring group at or above the similarity
// threshold, breaking ties toward the most recently created group.
func (e *Engine) scanMatch(a *alerts.Alert, candidates map[string]*groupEntry) *groupEntry {
	var best *groupEntry
	bestScore := 0.0

	for _, entry := range candidates {
		if !e.withinWindow(a.Timestamp, entry.group) {
			continue
		}
		rep := entry.group.Representative
		if rep == nil {
			continue
		}
		score := fingerprint.Similarity(a, rep)
		if score < e.cfg.SimilarityThreshold {
			continue
		}
		if score > bestScore || (score == bestScore && best != nil && entry.seq > best.seq) {
			best = entry
			bestScore = score
		}
	}

	return best
}

// createGroup starts a new group for the alert. The first alert in a new
// group is never suppressed. Caller holds the lock.
func (e *Engine) createGroup(a *alerts.Alert, fp string) *Result {
	g := &alerts.AlertGroup{
		ID:             uuid.New().String(),
		Fingerprint:    fp,
		Alerts:         []*alerts.Alert{a},
		FirstSeen:      a.Timestamp,
		LastSeen:       a.Timestamp,
		Count:          1,
		Severity:       a.Severity,
		Representative: a,
	}

	e.seq++
	entry := &groupEntry{group: g, seq: e.seq}
	if key, err := e.clusterer.Bucket(a); err == nil {
		entry.cluster = key
		if e.clusters[key] == nil {
			e.clusters[key] = make(map[string]*groupEntry)
		}
		e.clusters[key][fp] = entry
	}
	e.groups[fp] = entry

	a.GroupID = g.ID
	a.Count = 1
	a.Suppressed = false
	e.stats.UniqueAlerts++
	e.updateRate()

	snapshot := *g
	e.publish(bus.KindNewGroup, &snapshot)

	return &Result{IsNew: true, GroupID: g.ID, FirstSeen: g.FirstSeen, Suppressed: false}
}

// appendToGroup adds the alert to an existing group and decides suppression.
// Caller holds the lock.
func (e *Engine) appendToGroup(a *alerts.Alert, entry *groupEntry) *Result {
	g := entry.group

	similar := make([]*alerts.Alert, 0, MaxSimilarAlerts)
	for i := len(g.Alerts) - 1; i >= 0 && len(similar) < MaxSimilarAlerts; i-- {
		similar = append(similar, g.Alerts[i])
	}

	g.Append(a)

	a.GroupID = g.ID
	a.Count = g.Count

	suppressed := e.decideSuppression(a, g)
	a.Suppressed = suppressed
	if suppressed {
		e.stats.SuppressedAlerts++
		alertCopy := *a
		e.publish(bus.KindAlertSuppressed, &alertCopy)
	}
	e.updateRate()

	snapshot := *g
	e.publish(bus.KindGroupUpdated, &snapshot)

	return &Result{
		IsNew:         false,
		GroupID:       g.ID,
		FirstSeen:     g.FirstSeen,
		Suppressed:    suppressed,
		SimilarAlerts: similar,
	}
}

// decideSuppression applies the dedup-level suppression rules: critical
// alerts and first group members are never suppressed here; groups past
// their member cap suppress; otherwise the group's existing flag applies,
// cleared once suppressedUntil has passed. (The suppression engine's
// maintenance-window rules are a separate, documented path that can override
// the critical exemption.)
func (e *Engine) decideSuppression(a *alerts.Alert, g *alerts.AlertGroup) bool {
	if a.Severity == alerts.SeverityCritical {
		return false
	}
	if g.Count <= 1 {
		return false
	}
	if g.Count > e.cfg.MaxAlertsPerGroup {
		g.Suppressed = true
		return true
	}
	if g.Suppressed && g.SuppressedUntil != nil && time.Now().After(*g.SuppressedUntil) {
		g.Suppressed = false
		g.SuppressedUntil = nil
	}
	return g.Suppressed
}

// updateRate recomputes the dedup rate. Caller holds the lock.
func (e *Engine) updateRate() {
	if e.stats.TotalAlerts > 0 {
		e.stats.DedupRate = float64(e.stats.TotalAlerts-e.stats.UniqueAlerts) / float64(e.stats.TotalAlerts)
	}
}

// Stats returns a copy of the running counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Group returns the live group for a fingerprint, if any
func (e *Engine) Group(fp string) (*alerts.AlertGroup, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.groups[fp]
	if !ok {
		return nil, false
	}
	return entry.group, true
}

// GroupCount returns the number of live groups
func (e *Engine) GroupCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.groups)
}

// SuppressGroup sets a group's suppression flag with an optional expiry
func (e *Engine) SuppressGroup(fp string, until *time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.groups[fp]
	if !ok {
		return false
	}
	entry.group.Suppressed = true
	entry.group.SuppressedUntil = until
	return true
}

// RunSweep evicts groups whose lastSeen precedes now - 2x the time window.
// It snapshots expired groups under the lock and filters, rather than
// holding the lock for the sweep's full duration. Returns the eviction
// count; exposed so tests can trigger a sweep deterministically.
func (e *Engine) RunSweep(now time.Time) int {
	cutoff := now.Add(-2 * e.window())

	e.mu.Lock()
	expired := make([]*groupEntry, 0)
	for fp, entry := range e.groups {
		if entry.group.LastSeen.Before(cutoff) {
			expired = append(expired, entry)
			delete(e.groups, fp)
			if entry.cluster != "" {
				delete(e.clusters[entry.cluster], fp)
				if len(e.clusters[entry.cluster]) == 0 {
					delete(e.clusters, entry.cluster)
				}
			}
		}
	}
	e.mu.Unlock()

	for _, entry := range expired {
		snapshot := *entry.group
		e.publish(bus.KindGroupExpired, &snapshot)
	}

	return len(expired)
}

// Start begins the periodic eviction sweep. The sweep interval is fixed,
// independent of request volume.
func (e *Engine) Start() {
	interval := time.Duration(e.cfg.SweepIntervalSec) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := e.RunSweep(time.Now()); n > 0 {
					log.Printf("Dedup sweep evicted %d expired groups", n)
				}
			case <-e.stop:
				return
			}
		}
	}()
}

// Stop halts the eviction sweep
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

func (e *Engine) publish(kind bus.EventKind, payload interface{}) {
	if e.bus != nil {
		e.bus.Publish(kind, payload)
	}
}
