package clustering

import (
	"fmt"

	"github.com/coder/hnsw"

	"github.com/turtacn/Issue-Intelligence/internal/domain/similarity"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// HNSWFinder finds candidate neighbours with an in-memory HNSW graph and keeps
// only candidates whose exact cosine similarity meets the threshold. Recall
// depends on Candidates and EfSearch; precision is exact.
type HNSWFinder struct {
	// Candidates is the number of candidates inspected per mention.
	Candidates int
	// M is the maximum number of graph links per node.
	M int
	// EfSearch is the candidate list size during search.
	EfSearch int
}

// Neighbors implements NeighborFinder.
func (f HNSWFinder) Neighbors(vectors [][]float64, threshold float64) (adj [][]int, err error) {
	// The graph panics on malformed input; surface that as an error so the
	// engine can fall back to the exact matrix.
	defer func() {
		if r := recover(); r != nil {
			adj = nil
			err = errors.New(errors.ErrCodeNeighborIndex, fmt.Sprintf("hnsw search failed: %v", r))
		}
	}()

	n := len(vectors)
	adj = make([][]int, n)
	if n < 2 {
		return adj, nil
	}

	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	if f.M > 0 {
		g.M = f.M
	}
	if f.EfSearch > 0 {
		g.EfSearch = f.EfSearch
	}

	unit := normalizeAll(vectors)
	nodes := make([]hnsw.Node[int], n)
	for i, v := range unit {
		nodes[i] = hnsw.MakeNode(i, toFloat32(v))
	}
	g.Add(nodes...)

	k := f.Candidates + 1
	if k > n {
		k = n
	}
	seen := make(map[[2]int]struct{})
	for i := range unit {
		for _, candidate := range g.Search(nodes[i].Value, k) {
			j := candidate.Key
			if j == i {
				continue
			}
			edge := [2]int{i, j}
			if j < i {
				edge = [2]int{j, i}
			}
			if _, ok := seen[edge]; ok {
				continue
			}
			seen[edge] = struct{}{}
			if similarity.Dot(unit[i], unit[j]) >= threshold {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	return adj, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
