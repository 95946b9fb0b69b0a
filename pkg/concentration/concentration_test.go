package concentration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"empty", Config{MinDelta: 0, MaxDelta: 10}, ErrInvalidCurve},
		{"inverted range", Config{Coefficients: []float64{0, 1}, MinDelta: 10, MaxDelta: 0}, ErrInvalidCurve},
		{"constant", Config{Coefficients: []float64{5}, MinDelta: 0, MaxDelta: 10}, ErrNotMonotonic},
		{"parabola vertex inside", Config{Coefficients: []float64{0, 0, 1}, MinDelta: -5, MaxDelta: 5}, ErrNotMonotonic},
		{"linear", Config{Coefficients: []float64{1, 2}, MinDelta: -20, MaxDelta: 20}, nil},
		{"parabola one side", Config{Coefficients: []float64{0, 0, 1}, MinDelta: 1, MaxDelta: 5}, nil},
		{"falling", Config{Coefficients: []float64{100, -3.5}, MinDelta: -10, MaxDelta: 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, e)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, e)
		})
	}
}

func TestEstimate(t *testing.T) {
	e, err := New(Config{Coefficients: []float64{90, -12, 0.1}, MinDelta: -10, MaxDelta: 10, Unit: "mg/dL"})
	require.NoError(t, err)

	v, err := e.Estimate(0)
	require.NoError(t, err)
	assert.InDelta(t, 90, v, 1e-12)

	v, err = e.Estimate(2)
	require.NoError(t, err)
	assert.InDelta(t, 90-24+0.4, v, 1e-12)

	assert.False(t, e.Increasing())
	assert.Equal(t, "mg/dL", e.Unit())
	lo, hi := e.Range()
	assert.Equal(t, -10.0, lo)
	assert.Equal(t, 10.0, hi)
}

func TestEstimate_OutOfRange(t *testing.T) {
	e, err := New(Config{Coefficients: []float64{0, 1}, MinDelta: -5, MaxDelta: 5})
	require.NoError(t, err)

	for _, d := range []float64{-5.01, 5.01, 100} {
		_, err := e.Estimate(d)
		assert.ErrorIs(t, err, ErrOutOfRange)
	}

	_, err = e.Estimate(5)
	assert.NoError(t, err)
	_, err = e.Estimate(-5)
	assert.NoError(t, err)
}

func TestEstimate_Monotonic(t *testing.T) {
	curves := []Config{
		{Coefficients: []float64{10, 4, 0.05}, MinDelta: -30, MaxDelta: 30},
		{Coefficients: []float64{120, -2, -0.01, 0.0001}, MinDelta: -40, MaxDelta: 40},
	}

	for _, cfg := range curves {
		e, err := New(cfg)
		require.NoError(t, err)

		prev, err := e.Estimate(cfg.MinDelta)
		require.NoError(t, err)
		for x := cfg.MinDelta + 0.5; x <= cfg.MaxDelta; x += 0.5 {
			v, err := e.Estimate(x)
			require.NoError(t, err)
			if e.Increasing() {
				assert.Greater(t, v, prev, "at %g", x)
			} else {
				assert.Less(t, v, prev, "at %g", x)
			}
			prev = v
		}
	}
}

func TestNew_CopiesCoefficients(t *testing.T) {
	coef := []float64{0, 1}
	e, err := New(Config{Coefficients: coef, MinDelta: 0, MaxDelta: 1})
	require.NoError(t, err)

	coef[1] = -1
	v, err := e.Estimate(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestDeltaPercent(t *testing.T) {
	d, err := DeltaPercent(1000, 1100)
	require.NoError(t, err)
	assert.InDelta(t, 10, d, 1e-9)

	d, err = DeltaPercent(1000, 950)
	require.NoError(t, err)
	assert.InDelta(t, -5, d, 1e-9)

	_, err = DeltaPercent(0, 1)
	assert.Error(t, err)
}
