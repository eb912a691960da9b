// Package vectorindex is an exact in-memory nearest-neighbour index over
// dense float32 vectors using squared L2 distance.
package vectorindex

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrDimension is returned when vectors of different sizes are mixed.
var ErrDimension = errors.New("vector dimension mismatch")

// Result is one search hit.
type Result struct {
	// Position is the insertion index of the hit.
	Position int
	ID       string
	Distance float32
}

// Index is immutable after Build and safe for concurrent Search.
type Index struct {
	dim     int
	ids     []string
	vectors [][]float32
}

// Build indexes vectors under ids. Both slices must have equal length and all
// vectors the same dimension.
func Build(ids []string, vectors [][]float32) (*Index, error) {
	if len(ids) != len(vectors) {
		return nil, errors.Newf("got %d ids for %d vectors", len(ids), len(vectors))
	}

	idx := &Index{
		ids:     append([]string(nil), ids...),
		vectors: make([][]float32, len(vectors)),
	}

	for i, v := range vectors {
		if len(v) == 0 {
			return nil, errors.Newf("vector %q is empty", ids[i])
		}
		if i == 0 {
			idx.dim = len(v)
		} else if len(v) != idx.dim {
			return nil, errors.Wrapf(ErrDimension, "vector %q has %d dimensions, want %d", ids[i], len(v), idx.dim)
		}
		idx.vectors[i] = append([]float32(nil), v...)
	}

	return idx, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.ids)
}

// Dim returns the vector dimension, zero for an empty index.
func (idx *Index) Dim() int {
	if idx == nil {
		return 0
	}
	return idx.dim
}

// Search returns the min(k, Len()) nearest vectors to query, closest first.
// Ties keep insertion order.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if idx.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dim {
		return nil, errors.Wrapf(ErrDimension, "query has %d dimensions, want %d", len(query), idx.dim)
	}

	results := make([]Result, len(idx.vectors))
	for i, v := range idx.vectors {
		results[i] = Result{Position: i, ID: idx.ids[i], Distance: squaredL2(query, v)}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
