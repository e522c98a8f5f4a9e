package clustering

import (
	"sort"

	"github.com/turtacn/Issue-Intelligence/internal/domain/similarity"
)

// NeighborFinder builds the similarity graph of one window. The result is an
// adjacency list where j appears in adj[i] (and i in adj[j]) iff the cosine
// similarity of vectors i and j is at least threshold.
//
// Implementations may search approximately but must never report an edge
// below the threshold.
type NeighborFinder interface {
	Neighbors(vectors [][]float64, threshold float64) ([][]int, error)
}

// MatrixFinder compares every pair. O(n²·d); the default for windows in the
// tens to low hundreds of mentions.
type MatrixFinder struct{}

// Neighbors implements NeighborFinder.
func (MatrixFinder) Neighbors(vectors [][]float64, threshold float64) ([][]int, error) {
	unit := normalizeAll(vectors)
	adj := make([][]int, len(unit))
	for i := 0; i < len(unit); i++ {
		for j := i + 1; j < len(unit); j++ {
			if similarity.Dot(unit[i], unit[j]) >= threshold {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	return adj, nil
}

// ConnectedComponents returns the components of the undirected graph adj by
// breadth-first traversal. Components are listed in order of their lowest
// node and members are ascending.
func ConnectedComponents(adj [][]int) [][]int {
	visited := make([]bool, len(adj))
	var components [][]int
	for root := range adj {
		if visited[root] {
			continue
		}
		visited[root] = true
		component := []int{root}
		for head := 0; head < len(component); head++ {
			for _, next := range adj[component[head]] {
				if !visited[next] {
					visited[next] = true
					component = append(component, next)
				}
			}
		}
		sort.Ints(component)
		components = append(components, component)
	}
	return components
}

func normalizeAll(vectors [][]float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = similarity.Normalize(v)
	}
	return out
}
