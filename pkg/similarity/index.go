package similarity

import (
	"fmt"
	"sort"

	"github.com/neurocanvas/neurocanvas/pkg/model"
)

// Neighbor is one query result: a stored observation id and its cosine
// distance from the query vector.
type Neighbor struct {
	Seq      int64
	Distance float64
}

// Index is a flat cosine-distance index over one user's observation window.
// Entries mirror the observation store: every insert has a backing stored
// observation, every eviction removes the matching entry.
//
// The index is not internally synchronized; the memory bank serializes all
// access per user.
type Index struct {
	dim     int
	entries []entry
	bySeq   map[int64]int // seq -> position in entries
}

type entry struct {
	seq    int64
	vector []float32
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dim int) *Index {
	return &Index{dim: dim, bySeq: make(map[int64]int)}
}

// Len returns the number of indexed observations.
func (x *Index) Len() int { return len(x.entries) }

// Contains reports whether the observation id is indexed.
func (x *Index) Contains(seq int64) bool {
	_, ok := x.bySeq[seq]
	return ok
}

// Insert adds the vector under the observation id. Re-inserting an existing
// id is a bug in the caller and rejected.
func (x *Index) Insert(seq int64, vector []float32) error {
	if x.dim > 0 && len(vector) != x.dim {
		return model.WrapOp("index insert", fmt.Errorf("%w: vector dimension %d, want %d", model.ErrInvalidObservation, len(vector), x.dim))
	}
	if _, ok := x.bySeq[seq]; ok {
		return model.WrapOp("index insert", fmt.Errorf("%w: duplicate id %d", model.ErrInvalidObservation, seq))
	}
	x.bySeq[seq] = len(x.entries)
	x.entries = append(x.entries, entry{seq: seq, vector: vector})
	return nil
}

// Remove deletes the entry for the observation id, if present.
func (x *Index) Remove(seq int64) bool {
	pos, ok := x.bySeq[seq]
	if !ok {
		return false
	}
	last := len(x.entries) - 1
	if pos != last {
		x.entries[pos] = x.entries[last]
		x.bySeq[x.entries[pos].seq] = pos
	}
	x.entries = x.entries[:last]
	delete(x.bySeq, seq)
	return true
}

// Query returns up to k neighbors ordered by ascending cosine distance.
// An index with fewer than k entries returns everything it has. Equal
// distances are ordered by ascending id for determinism.
func (x *Index) Query(vector []float32, k int) []Neighbor {
	if k <= 0 || len(x.entries) == 0 {
		return nil
	}

	neighbors := make([]Neighbor, 0, len(x.entries))
	for _, e := range x.entries {
		neighbors = append(neighbors, Neighbor{Seq: e.seq, Distance: CosineDistance(vector, e.vector)})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Seq < neighbors[j].Seq
	})

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}
