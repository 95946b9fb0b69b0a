package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itohio/goimp/pkg/concentration"
	"github.com/itohio/goimp/pkg/config"
	"github.com/itohio/goimp/pkg/impedance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Monitor.Frequency = 30000
	cfg.Monitor.History = 3
	return cfg
}

func testEstimator(t *testing.T) *concentration.Estimator {
	t.Helper()
	est, err := concentration.New(concentration.Config{Coefficients: []float64{0, -4.5}, MinDelta: -20, MaxDelta: 0})
	require.NoError(t, err)
	return est
}

func spectrum(ohms ...float64) Spectrum {
	s := Spectrum{Timestamp: time.Now()}
	for i, r := range ohms {
		s.Samples = append(s.Samples, impedance.Sample{Frequency: 30000 + 1000*i, Magnitude: r})
	}
	return s
}

func TestNew(t *testing.T) {
	m := New(testConfig(), nil)

	assert.NotNil(t, m)
	assert.Equal(t, 30000, m.Frequency())
	assert.Empty(t, m.Readings())
	_, ok := m.Baseline()
	assert.False(t, ok)
}

func TestProcessSpectrum_Baseline(t *testing.T) {
	m := New(testConfig(), testEstimator(t))

	m.processSpectrum(spectrum(1000, 900))

	b, ok := m.Baseline()
	require.True(t, ok)
	assert.Equal(t, 1000.0, b.Magnitude)
	assert.Empty(t, m.Readings())
}

func TestProcessSpectrum_Concentration(t *testing.T) {
	m := New(testConfig(), testEstimator(t))

	m.processSpectrum(spectrum(1000))
	m.processSpectrum(spectrum(900))

	readings := m.Readings()
	require.Len(t, readings, 1)
	r := readings[0]
	require.NoError(t, r.Err)
	assert.Equal(t, 30000, r.Impedance.Frequency)
	assert.InDelta(t, -10, r.Delta, 1e-9)
	assert.InDelta(t, 45, r.Concentration, 1e-9)
}

func TestProcessSpectrum_OutOfRange(t *testing.T) {
	m := New(testConfig(), testEstimator(t))

	m.processSpectrum(spectrum(1000))
	m.processSpectrum(spectrum(1100))

	readings := m.Readings()
	require.Len(t, readings, 1)
	assert.ErrorIs(t, readings[0].Err, concentration.ErrOutOfRange)
	assert.InDelta(t, 10, readings[0].Delta, 1e-9)
}

func TestProcessSpectrum_MissingFrequency(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.Frequency = 45000
	m := New(cfg, nil)

	m.processSpectrum(spectrum(1000, 1000))

	_, ok := m.Baseline()
	assert.False(t, ok)
	readings := m.Readings()
	require.Len(t, readings, 1)
	assert.ErrorIs(t, readings[0].Err, ErrNoPoint)
}

func TestProcessSpectrum_SweepError(t *testing.T) {
	m := New(testConfig(), nil)
	fail := errors.New("bus fault")

	m.processSpectrum(Spectrum{Timestamp: time.Now(), Err: fail})

	_, ok := m.Baseline()
	assert.False(t, ok)
	readings := m.Readings()
	require.Len(t, readings, 1)
	assert.ErrorIs(t, readings[0].Err, fail)
}

func TestProcessSpectrum_History(t *testing.T) {
	m := New(testConfig(), testEstimator(t))

	m.processSpectrum(spectrum(1000))
	for _, r := range []float64{990, 980, 970, 960, 950} {
		m.processSpectrum(spectrum(r))
	}

	readings := m.Readings()
	require.Len(t, readings, 3)
	assert.Equal(t, 970.0, readings[0].Impedance.Magnitude)
	assert.Equal(t, 950.0, readings[2].Impedance.Magnitude)
}

func TestResetBaseline(t *testing.T) {
	m := New(testConfig(), testEstimator(t))

	m.processSpectrum(spectrum(1000))
	m.processSpectrum(spectrum(950))
	m.ResetBaseline()

	_, ok := m.Baseline()
	assert.False(t, ok)
	assert.Empty(t, m.Readings())

	m.processSpectrum(spectrum(800))
	b, ok := m.Baseline()
	require.True(t, ok)
	assert.Equal(t, 800.0, b.Magnitude)
}

func TestOnUpdate(t *testing.T) {
	m := New(testConfig(), testEstimator(t))

	var mu sync.Mutex
	var got [][]Reading
	m.OnUpdate(func(s Spectrum, readings []Reading) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, readings)
	})

	input := make(chan Spectrum, 3)
	input <- spectrum(1000)
	input <- spectrum(900)
	input <- spectrum(800)
	close(input)

	m.ProcessSpectra(input)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Empty(t, got[0])
	assert.Len(t, got[1], 1)
	assert.Len(t, got[2], 2)
	assert.InDelta(t, 90, got[2][1].Concentration, 1e-9)
}

func TestShutdown_NoCallbacksAfterClose(t *testing.T) {
	m := New(testConfig(), nil)

	calls := 0
	m.OnUpdate(func(Spectrum, []Reading) { calls++ })

	input := make(chan Spectrum, 1)
	input <- spectrum(1000)
	close(input)
	m.ProcessSpectra(input)
	assert.Equal(t, 1, calls)

	m.processSpectrum(spectrum(900))
	assert.Equal(t, 1, calls, "no callbacks after input closes")

	m.ResetShutdown()
	m.processSpectrum(spectrum(900))
	assert.Equal(t, 2, calls)
}
