// Package scoring assigns each alert a business-impact score in [1,100]
// from weighted normalized signals. Scoring is deterministic given identical
// inputs and registry state.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/alertpipe/alertpipe/internal/alerts"
)

// weightTolerance absorbs float rounding when validating the weight sum
const weightTolerance = 1e-9

// Weights configures the relative importance of each scoring signal.
// The weights must sum to 1.0; construction fails fast otherwise.
type Weights struct {
	Severity  float64 `yaml:"severity"`
	Service   float64 `yaml:"service"`
	Users     float64 `yaml:"users"`
	Revenue   float64 `yaml:"revenue"`
	Frequency float64 `yaml:"frequency"`
	Duration  float64 `yaml:"duration"`
}

// DefaultWeights returns the default signal weights
func DefaultWeights() Weights {
	return Weights{
		Severity:  0.30,
		Service:   0.25,
		Users:     0.15,
		Revenue:   0.15,
		Frequency: 0.10,
		Duration:  0.05,
	}
}

// sum returns the total of all weights
func (w Weights) sum() float64 {
	return w.Severity + w.Service + w.Users + w.Revenue + w.Frequency + w.Duration
}

// Input carries the per-alert signals the host computes outside the scorer
type Input struct {
	Alert     *alerts.Alert
	Frequency int           // occurrences of this alert in the current window
	Duration  time.Duration // how long the condition has been firing
}

// Scorer computes business-impact scores. Alerts for services missing from
// the registry fall back to a conservative default context (tier 3, no
// revenue or user figures), so an alert is never unscoreable.
type Scorer struct {
	weights  Weights
	registry ContextRegistry
}

// defaultContext is the documented conservative fallback for unregistered
// services: mid-tier, zero revenue and user impact. It yields a low but
// non-zero score driven by severity, frequency and duration.
var defaultContext = BusinessContext{Tier: 3}

// NewScorer creates a scorer, validating that the weights sum to 1.0.
// A nil registry gets an empty in-memory registry.
func NewScorer(w Weights, registry ContextRegistry) (*Scorer, error) {
	if diff := math.Abs(w.sum() - 1.0); diff > weightTolerance {
		return nil, fmt.Errorf("scoring weights must sum to 1.0, got %.6f", w.sum())
	}
	if registry == nil {
		registry = NewMemoryRegistry()
	}
	return &Scorer{weights: w, registry: registry}, nil
}

// Score computes the business-impact score for one alert, clamped to [1,100]
func (s *Scorer) Score(in Input) float64 {
	ctx, ok := s.registry.Get(in.Alert.Source)
	if !ok {
		c := defaultContext
		ctx = &c
	}

	score := s.weights.Severity*severitySignal(in.Alert.Severity) +
		s.weights.Service*serviceSignal(ctx.Tier) +
		s.weights.Users*userSignal(ctx) +
		s.weights.Revenue*revenueSignal(ctx) +
		s.weights.Frequency*frequencySignal(in.Frequency) +
		s.weights.Duration*durationSignal(in.Duration)

	return clamp(score*100, 1, 100)
}

// severitySignal maps severity onto [0.25, 1.0]
func severitySignal(sev alerts.Severity) float64 {
	return float64(sev.Rank()+1) / 4.0
}

// serviceSignal maps service tier onto (0, 1]: tier 1 scores 1.0, each
// lower tier halves.
func serviceSignal(tier int) float64 {
	if tier < 1 {
		tier = 1
	}
	return 1.0 / math.Pow(2, float64(tier-1))
}

// userSignal combines affected-user ratio with a VIP bump
func userSignal(ctx *BusinessContext) float64 {
	if ctx.TotalUsers <= 0 {
		return 0
	}
	ratio := float64(ctx.AffectedUsers) / float64(ctx.TotalUsers)
	if ctx.VIPUsers > 0 {
		ratio += 0.2
	}
	return clamp(ratio, 0, 1)
}

// revenueSignal normalizes hourly revenue exposure on a log scale,
// saturating at $100k/hour. Daily and monthly figures back-fill a missing
// hourly figure.
func revenueSignal(ctx *BusinessContext) float64 {
	hourly := ctx.HourlyRevenue
	if hourly == 0 && ctx.DailyRevenue > 0 {
		hourly = ctx.DailyRevenue / 24
	}
	if hourly == 0 && ctx.MonthlyRevenue > 0 {
		hourly = ctx.MonthlyRevenue / (30 * 24)
	}
	if hourly <= 0 {
		return 0
	}
	return clamp(math.Log10(hourly+1)/5.0, 0, 1)
}

// frequencySignal saturates at 20 occurrences per window
func frequencySignal(n int) float64 {
	if n <= 0 {
		return 0
	}
	return clamp(float64(n)/20.0, 0, 1)
}

// durationSignal saturates at 4 hours
func durationSignal(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return clamp(d.Hours()/4.0, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
