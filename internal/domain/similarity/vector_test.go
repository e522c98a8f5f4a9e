package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"scaled", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1},
		{"partial", []float64{1, 0}, []float64{1, 1}, 1 / math.Sqrt2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Cosine(tc.a, tc.b)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestCosine_Errors(t *testing.T) {
	_, err := Cosine([]float64{1, 2}, []float64{1, 2, 3})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))

	_, err = Cosine(nil, []float64{1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyVectorSet))

	_, err = Cosine([]float64{0, 0}, []float64{1, 1})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidEmbedding))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]float64{0.1, 0.2, 0.3}, 3))
	assert.NoError(t, Validate([]float64{0.1}, 0))

	assert.True(t, errors.IsCode(Validate(nil, 3), errors.ErrCodeInvalidEmbedding))
	assert.True(t, errors.IsCode(Validate([]float64{1, 2}, 3), errors.ErrCodeDimensionMismatch))
	assert.True(t, errors.IsCode(Validate([]float64{1, math.NaN(), 2}, 3), errors.ErrCodeInvalidEmbedding))
	assert.True(t, errors.IsCode(Validate([]float64{1, math.Inf(1), 2}, 3), errors.ErrCodeInvalidEmbedding))
	assert.True(t, errors.IsCode(Validate([]float64{0, 0, 0}, 3), errors.ErrCodeInvalidEmbedding))
}

func TestNormalizeAndDot(t *testing.T) {
	u := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, u[0], 1e-9)
	assert.InDelta(t, 0.8, u[1], 1e-9)
	assert.InDelta(t, 1.0, Dot(u, u), 1e-9)

	z := Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, z)
}

func TestCentroid(t *testing.T) {
	c, err := Centroid([][]float64{{1, 0}, {0, 1}, {2, 2}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, c, 1e-9)

	_, err = Centroid(nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmptyVectorSet))

	_, err = Centroid([][]float64{{1, 0}, {1}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
}

func TestWeightedCentroid(t *testing.T) {
	c, err := WeightedCentroid([][]float64{{0, 0}, {4, 8}}, []float64{3, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2}, c, 1e-9)

	_, err = WeightedCentroid([][]float64{{1, 1}}, []float64{0})
	assert.Error(t, err)

	_, err = WeightedCentroid([][]float64{{1, 1}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestMergeCentroids(t *testing.T) {
	merged, err := MergeCentroids([]float64{1, 1}, 3, []float64{5, 5}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 2}, merged, 1e-9)

	merged, err = MergeCentroids(nil, 0, []float64{5, 5}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5}, merged)

	old := []float64{1, 2}
	merged, err = MergeCentroids(old, 4, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, old, merged)
	merged[0] = 9
	assert.Equal(t, 1.0, old[0], "merge must not alias the input")
}
