// Package pattern maintains the derived per-user view over an observation
// window: label histogram, per-label recency, and the dominant label.
//
// The core invariant: folding observations one at a time must produce exactly
// the same state as replaying the whole window from scratch. Eviction support
// (Remove) preserves that invariant because the evicted observation is always
// the oldest in the window.
package pattern

import (
	"time"

	"github.com/neurocanvas/neurocanvas/pkg/model"
)

// State is the aggregator's working state for a single user and kind.
type State struct {
	Histogram   map[string]int
	LastSeen    map[string]time.Time
	Dominant    string
	LastUpdated time.Time
	Total       int
}

// NewState returns an empty aggregate.
func NewState() *State {
	return &State{
		Histogram: make(map[string]int),
		LastSeen:  make(map[string]time.Time),
	}
}

// Fold incrementally applies one new observation.
func (s *State) Fold(label string, ts time.Time) {
	s.Histogram[label]++
	if ts.After(s.LastSeen[label]) {
		s.LastSeen[label] = ts
	}
	if ts.After(s.LastUpdated) {
		s.LastUpdated = ts
	}
	s.Total++

	if s.Dominant == "" || s.preferred(label, s.Dominant) {
		s.Dominant = label
	}
}

// Remove un-counts one evicted observation bearing the label. Only valid for
// the oldest observation in the window: a label's LastSeen stays correct
// because any remaining observation of that label is newer than the evicted
// one.
func (s *State) Remove(label string) {
	count, ok := s.Histogram[label]
	if !ok {
		return
	}
	if count <= 1 {
		delete(s.Histogram, label)
		delete(s.LastSeen, label)
	} else {
		s.Histogram[label] = count - 1
	}
	s.Total--
	s.recomputeDominant()
}

// preferred reports whether a beats b under the dominance ordering:
// higher count wins, ties go to the label seen most recently, exact
// timestamp ties go to the lexicographically smaller label.
func (s *State) preferred(a, b string) bool {
	ca, cb := s.Histogram[a], s.Histogram[b]
	if ca != cb {
		return ca > cb
	}
	ta, tb := s.LastSeen[a], s.LastSeen[b]
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return a < b
}

func (s *State) recomputeDominant() {
	s.Dominant = ""
	for label := range s.Histogram {
		if s.Dominant == "" || s.preferred(label, s.Dominant) {
			s.Dominant = label
		}
	}
	if len(s.Histogram) == 0 {
		s.LastUpdated = time.Time{}
		return
	}
	// LastUpdated is the newest surviving observation time.
	var newest time.Time
	for _, ts := range s.LastSeen {
		if ts.After(newest) {
			newest = ts
		}
	}
	s.LastUpdated = newest
}

// Snapshot returns the exported view. The histogram is copied so callers
// cannot mutate aggregator state.
func (s *State) Snapshot() model.UserMemoryState {
	hist := make(map[string]int, len(s.Histogram))
	for label, count := range s.Histogram {
		hist[label] = count
	}
	return model.UserMemoryState{
		DominantLabel: s.Dominant,
		Histogram:     hist,
		LastUpdated:   s.LastUpdated,
	}
}

// Replay rebuilds state from scratch. Observations must be ordered
// oldest-first so the result matches incremental folding.
func Replay(observations []model.Observation) *State {
	s := NewState()
	for _, obs := range observations {
		s.Fold(obs.Label, obs.Timestamp)
	}
	return s
}
