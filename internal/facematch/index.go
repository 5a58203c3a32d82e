package facematch

import (
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-sorter/internal/constants"
)

// Index is an HNSW nearest-neighbour index over every known embedding.
// Cosine distance only.
type Index struct {
	graph     *hnsw.Graph[int64]
	keyToName map[int64]string
	dims      int
	tolerance float64
	mu        sync.RWMutex
}

// NewIndex builds an index over known. Embeddings whose dimension differs
// from the first one added are skipped.
func NewIndex(known map[string][]Embedding, tolerance float64) *Index {
	idx := &Index{
		keyToName: make(map[int64]string),
		tolerance: tolerance,
	}

	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	slices.Sort(names)

	var key int64
	for _, name := range names {
		for _, emb := range known[name] {
			if len(emb) == 0 {
				continue
			}
			if idx.graph == nil {
				idx.graph = newGraph()
				idx.dims = len(emb)
			}
			if len(emb) != idx.dims {
				continue
			}
			idx.graph.Add(hnsw.MakeNode(key, []float32(emb)))
			idx.keyToName[key] = name
			key++
		}
	}
	return idx
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// Len returns the number of indexed embeddings.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.keyToName)
}

// Match returns the sorted, distinct names of identities with an embedding
// within tolerance of candidate.
func (idx *Index) Match(candidate Embedding) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil || len(candidate) != idx.dims {
		return nil
	}

	neighbors := idx.withinTolerance(candidate)

	var matched []string
	for _, n := range neighbors {
		name := idx.keyToName[n.Key]
		if !slices.Contains(matched, name) {
			matched = append(matched, name)
		}
	}
	slices.Sort(matched)
	return matched
}

// withinTolerance returns every indexed embedding within tolerance of
// candidate. The search starts at HNSWSearchLimit neighbours and doubles
// until the farthest one returned is out of tolerance or the whole index
// has been searched.
func (idx *Index) withinTolerance(candidate Embedding) []hnsw.Node[int64] {
	total := len(idx.keyToName)
	k := min(constants.HNSWSearchLimit, total)
	for {
		neighbors := idx.graph.Search([]float32(candidate), k)

		var within []hnsw.Node[int64]
		exhausted := k >= total || len(neighbors) < k
		for _, n := range neighbors {
			// Recompute the distance; the graph only orders candidates.
			if CosineDistance(candidate, n.Value) > idx.tolerance {
				exhausted = true
				continue
			}
			within = append(within, n)
		}
		if exhausted {
			return within
		}
		k = min(k*2, total)
	}
}
