package issue

import (
	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
	"github.com/turtacn/Issue-Intelligence/internal/domain/similarity"
	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// LinkedCentroid returns the similarity-weighted mean of the usable
// embeddings in links, and how many embeddings it used. Links with a
// non-positive similarity carry no weight; if none carries weight the mean
// is unweighted.
func LinkedCentroid(links []mention.LinkedEmbedding, dim int) ([]float64, int, error) {
	vectors := make([][]float64, 0, len(links))
	weights := make([]float64, 0, len(links))
	var total float64
	for _, l := range links {
		if similarity.Validate(l.Embedding, dim) != nil {
			continue
		}
		vectors = append(vectors, l.Embedding)
		weights = append(weights, l.Similarity)
		if l.Similarity > 0 {
			total += l.Similarity
		}
	}
	if len(vectors) == 0 {
		return nil, 0, errors.New(errors.ErrCodeCentroidUnavailable, "no usable linked embeddings")
	}
	if total == 0 {
		weights = nil
	}

	centroid, err := similarity.WeightedCentroid(vectors, weights)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeCentroidUnavailable, "failed to compute centroid")
	}
	return centroid, len(vectors), nil
}
