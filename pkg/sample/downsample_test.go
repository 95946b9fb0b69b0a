package sample

import (
	"testing"

	"github.com/itohio/goimp/pkg/impedance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spectrum(n int) []impedance.Sample {
	out := make([]impedance.Sample, n)
	for i := range out {
		out[i] = impedance.Sample{Frequency: 1000 + 10*i, Magnitude: float64(i)}
	}
	return out
}

func TestDownsample_NoDownsampling(t *testing.T) {
	samples := spectrum(3)

	// Test with nil dst
	result := Downsample(nil, samples, 10)
	require.Len(t, result, 3)
	assert.Equal(t, samples, result)

	// Test with sufficient capacity dst
	dst := make([]impedance.Sample, 0, 10)
	result = Downsample(dst, samples, 10)
	assert.Equal(t, samples, result)
	// Should reuse dst
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	samples := spectrum(512)

	dst := make([]impedance.Sample, 0, 20)
	result := Downsample(dst, samples, 10)
	require.Len(t, result, 10)

	assert.Equal(t, samples[0], result[0])
	assert.Equal(t, samples[511], result[9])
	for i := 1; i < len(result); i++ {
		assert.Greater(t, result[i].Frequency, result[i-1].Frequency)
	}
	assert.Equal(t, 20, cap(result))
}

func TestDownsample_DestinationTooSmall(t *testing.T) {
	dst := make([]float64, 0, 2)
	result := Downsample(dst, []float64{1, 2, 3, 4, 5}, 4)
	require.Len(t, result, 4)
	assert.Equal(t, []float64{1, 2, 4, 5}, result)
	assert.GreaterOrEqual(t, cap(result), 4)
}

func TestDownsample_DestinationReuse(t *testing.T) {
	dst := make([]int, 0, 10)

	first := Downsample(dst, []int{1, 2}, 10)
	assert.Equal(t, []int{1, 2}, first)

	second := Downsample(first, []int{3, 4, 5}, 10)
	assert.Equal(t, []int{3, 4, 5}, second)
	assert.Equal(t, cap(dst), cap(second))
}

func TestDownsample_Limits(t *testing.T) {
	src := []int{1, 2, 3, 4}

	assert.Equal(t, []int{1}, Downsample(nil, src, 1))
	assert.Equal(t, src, Downsample(nil, src, 0))
	assert.Equal(t, src, Downsample(nil, src, -1))
	assert.Empty(t, Downsample[int](nil, nil, 5))
}

func TestIndices(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, Indices(3, 5))
	assert.Equal(t, []int{0, 3, 5, 8, 10}, Indices(11, 5))
	assert.Empty(t, Indices(0, 5))
}
