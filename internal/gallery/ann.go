package gallery

import (
	"github.com/coder/hnsw"
)

const (
	// annMaxNeighbors is the M parameter of the HNSW graph
	annMaxNeighbors = 16

	// annEfSearch is the size of the dynamic candidate list during search
	annEfSearch = 64

	// annCandidates is how many neighbors seed the best and second-best
	// bounds before the full pass
	annCandidates = 8
)

// annIndex is an HNSW graph keyed by entry position in the snapshot.
type annIndex struct {
	graph *hnsw.Graph[int]
	dims  int
	size  int
}

// buildANNIndex indexes every entry sharing the most common embedding length.
// Entries with another length stay reachable through the exhaustive fallback.
func buildANNIndex(entries []Entry) *annIndex {
	dims := dominantDims(entries)
	if dims == 0 {
		return nil
	}

	g := hnsw.NewGraph[int]()
	g.M = annMaxNeighbors
	g.Ml = 1.0 / float64(annMaxNeighbors) // Standard HNSW formula
	g.EfSearch = annEfSearch
	g.Distance = hnsw.EuclideanDistance

	size := 0
	for i := range entries {
		if len(entries[i].Embedding) != dims {
			continue
		}
		g.Add(hnsw.MakeNode(i, entries[i].Embedding))
		size++
	}

	return &annIndex{graph: g, dims: dims, size: size}
}

// candidates returns the approximate nearest entry positions, or nil when the
// query cannot be searched.
func (a *annIndex) candidates(query []float32) []int {
	if a == nil || len(query) != a.dims || a.size < annCandidates {
		return nil
	}
	nodes := a.graph.Search(query, annCandidates)
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Key)
	}
	return out
}

func dominantDims(entries []Entry) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, e := range entries {
		n := len(e.Embedding)
		if n == 0 {
			continue
		}
		counts[n]++
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	return best
}
