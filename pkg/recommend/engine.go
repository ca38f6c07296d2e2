// Package recommend ranks candidate labels for a user from their pattern
// aggregate and nearest-neighbor recall.
package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/neurocanvas/neurocanvas/pkg/model"
	"github.com/neurocanvas/neurocanvas/pkg/pattern"
	"github.com/neurocanvas/neurocanvas/pkg/similarity"
)

const (
	// DefaultNeighbors is the k used for nearest-neighbor recall.
	DefaultNeighbors = 20

	// DefaultHalfLife controls how fast a label's recency weight decays.
	DefaultHalfLife = 7 * 24 * time.Hour
)

// Engine scores candidate labels. Each neighbor label's score is
//
//	frequency_weight * recency_weight * (1 - avg_distance)
//
// where frequency is the label's normalized histogram count, recency decays
// exponentially with the age of the label's most recent observation, and
// avg_distance averages cosine distance over the neighbors bearing the label.
type Engine struct {
	neighbors int
	halfLife  time.Duration
	now       func() time.Time
}

// Option tunes an Engine.
type Option func(*Engine)

// WithNeighbors overrides the neighbor count k.
func WithNeighbors(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.neighbors = k
		}
	}
}

// WithHalfLife overrides the recency decay half-life.
func WithHalfLife(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.halfLife = d
		}
	}
}

// WithClock overrides the time source. Tests use this to pin recency decay.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an Engine with the given options applied over defaults.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		neighbors: DefaultNeighbors,
		halfLife:  DefaultHalfLife,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Neighbors returns the configured k so callers can size index queries.
func (e *Engine) Neighbors() int { return e.neighbors }

// Rank scores the labels appearing among the neighbors and returns the top n
// by descending score. Ties are broken by lexicographic label order so
// identical histories always rank identically. A nil or empty neighbor set
// yields an empty (non-nil) result.
func (e *Engine) Rank(neighbors []similarity.Neighbor, state *pattern.State, labelOf func(seq int64) (string, bool), topN int) []model.Recommendation {
	recs := []model.Recommendation{}
	if len(neighbors) == 0 || state == nil || state.Total == 0 {
		return recs
	}

	type agg struct {
		distSum float64
		count   int
	}
	byLabel := make(map[string]*agg)
	for _, n := range neighbors {
		label, ok := labelOf(n.Seq)
		if !ok {
			// Neighbor evicted between query and scoring; skip.
			continue
		}
		a := byLabel[label]
		if a == nil {
			a = &agg{}
			byLabel[label] = a
		}
		a.distSum += n.Distance
		a.count++
	}

	now := e.now()
	total := float64(state.Total)
	for label, a := range byLabel {
		freq := float64(state.Histogram[label]) / total
		age := now.Sub(state.LastSeen[label])
		if age < 0 {
			age = 0
		}
		recency := math.Exp2(-age.Hours() / e.halfLife.Hours())
		avgDist := a.distSum / float64(a.count)
		recs = append(recs, model.Recommendation{
			Label: label,
			Score: freq * recency * (1 - avgDist),
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Label < recs[j].Label
	})
	if topN > 0 && len(recs) > topN {
		recs = recs[:topN]
	}
	return recs
}
