package clustering

import (
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/similarity"
	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
)

// Config holds the clustering parameters.
type Config struct {
	SimilarityThreshold float64
	MinClusterSize      int
	TimeWindow          time.Duration
	EmbeddingDim        int
	ANN                 ANNConfig
}

// ANNConfig selects the approximate finder for large windows.
type ANNConfig struct {
	Enabled       bool
	MinWindowSize int
	Neighbors     int
	M             int
	EfSearch      int
}

// Stats counts what a clustering pass did with its input.
type Stats struct {
	Input            int `json:"input"`
	MissingEmbedding int `json:"missing_embedding"`
	InvalidEmbedding int `json:"invalid_embedding"`
	MissingTimestamp int `json:"missing_timestamp"`
	Windows          int `json:"windows"`
	Components       int `json:"components"`
	BelowMinSize     int `json:"below_min_size"`
	Clusters         int `json:"clusters"`
	ApproxWindows    int `json:"approx_windows"`
}

// Dropped is the number of mentions rejected before clustering.
func (s Stats) Dropped() int {
	return s.MissingEmbedding + s.InvalidEmbedding + s.MissingTimestamp
}

// Engine partitions mentions into clusters.
type Engine struct {
	cfg    Config
	exact  NeighborFinder
	approx NeighborFinder
	log    logging.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithFinder replaces the exact neighbour finder.
func WithFinder(f NeighborFinder) Option {
	return func(e *Engine) { e.exact = f }
}

// NewEngine builds an Engine. The HNSW finder is wired when cfg.ANN is
// enabled.
func NewEngine(cfg Config, log logging.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	e := &Engine{cfg: cfg, exact: MatrixFinder{}, log: log}
	if cfg.ANN.Enabled {
		e.approx = HNSWFinder{Candidates: cfg.ANN.Neighbors, M: cfg.ANN.M, EfSearch: cfg.ANN.EfSearch}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Cluster runs one clustering pass:
//
//  1. drop mentions without a valid embedding or timestamp;
//  2. partition the rest into time windows;
//  3. per window, connect pairs with similarity >= threshold and take the
//     connected components;
//  4. keep components of at least MinClusterSize mentions.
//
// The result is sorted largest first. The input slice is not modified.
func (e *Engine) Cluster(mentions []*mention.Mention) ([]*Cluster, Stats) {
	stats := Stats{Input: len(mentions)}

	valid := make([]*mention.Mention, 0, len(mentions))
	for _, m := range mentions {
		switch {
		case m.PublishedAt.IsZero():
			stats.MissingTimestamp++
			e.log.Debug("mention skipped: missing timestamp", logging.String("mention_id", m.ID))
		case len(m.Embedding) == 0:
			stats.MissingEmbedding++
			e.log.Debug("mention skipped: missing embedding", logging.String("mention_id", m.ID))
		default:
			if err := similarity.Validate(m.Embedding, e.cfg.EmbeddingDim); err != nil {
				stats.InvalidEmbedding++
				e.log.Warn("mention skipped: invalid embedding",
					logging.String("mention_id", m.ID), logging.Err(err))
				continue
			}
			valid = append(valid, m)
		}
	}

	windows := PartitionByWindow(valid, e.cfg.TimeWindow)
	stats.Windows = len(windows)

	var clusters []*Cluster
	for _, window := range windows {
		components, approx := e.components(window)
		if approx {
			stats.ApproxWindows++
		}
		stats.Components += len(components)
		for _, component := range components {
			if len(component) < e.cfg.MinClusterSize {
				stats.BelowMinSize++
				continue
			}
			members := make([]*mention.Mention, len(component))
			for i, idx := range component {
				members[i] = window[idx]
			}
			c, err := newCluster(members)
			if err != nil {
				e.log.Warn("cluster discarded: centroid failed", logging.Err(err))
				continue
			}
			clusters = append(clusters, c)
		}
	}

	sortClusters(clusters)
	stats.Clusters = len(clusters)
	return clusters, stats
}

func (e *Engine) components(window []*mention.Mention) ([][]int, bool) {
	vectors := make([][]float64, len(window))
	for i, m := range window {
		vectors[i] = m.Embedding
	}

	if e.approx != nil && len(window) >= e.cfg.ANN.MinWindowSize {
		adj, err := e.approx.Neighbors(vectors, e.cfg.SimilarityThreshold)
		if err == nil {
			return ConnectedComponents(adj), true
		}
		e.log.Warn("approximate neighbour search failed, using full matrix",
			logging.Int("window_size", len(window)), logging.Err(err))
	}

	adj, err := e.exact.Neighbors(vectors, e.cfg.SimilarityThreshold)
	if err != nil {
		e.log.Error("neighbour search failed", logging.Int("window_size", len(window)), logging.Err(err))
		return nil, false
	}
	return ConnectedComponents(adj), false
}

// MergeSimilar joins clusters whose centroids have cosine similarity of at
// least the clustering threshold, transitively. It is a separate pass and
// detection only applies it when configured to.
func (e *Engine) MergeSimilar(clusters []*Cluster) []*Cluster {
	if len(clusters) < 2 {
		return clusters
	}

	adj := make([][]int, len(clusters))
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			sim, err := similarity.Cosine(clusters[i].Centroid, clusters[j].Centroid)
			if err != nil || sim < e.cfg.SimilarityThreshold {
				continue
			}
			adj[i] = append(adj[i], j)
			adj[j] = append(adj[j], i)
		}
	}

	merged := make([]*Cluster, 0, len(clusters))
	for _, component := range ConnectedComponents(adj) {
		if len(component) == 1 {
			merged = append(merged, clusters[component[0]])
			continue
		}
		var members []*mention.Mention
		for _, idx := range component {
			members = append(members, clusters[idx].Mentions...)
		}
		c, err := newCluster(members)
		if err != nil {
			e.log.Warn("cluster merge skipped", logging.Err(err))
			for _, idx := range component {
				merged = append(merged, clusters[idx])
			}
			continue
		}
		e.log.Debug("clusters merged", logging.Int("parts", len(component)), logging.Int("size", c.Size()))
		merged = append(merged, c)
	}

	sortClusters(merged)
	return merged
}
