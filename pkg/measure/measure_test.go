package measure

import (
	"context"
	"testing"

	"github.com/itohio/goimp/pkg/ad5933"
	"github.com/itohio/goimp/pkg/bus"
	"github.com/itohio/goimp/pkg/calib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// load is a resistor whose value a test can change between sweeps.
type load struct {
	ohms float64
}

func (l *load) impedance(float64) complex128 {
	return complex(l.ohms, 0)
}

func newTestDevice(t *testing.T, cfg ad5933.SimConfig) (*ad5933.Device, *ad5933.Sim) {
	t.Helper()
	sim := ad5933.NewSim(cfg)
	dev := ad5933.New(bus.NewI2C(sim, bus.DefaultAddress, true), ad5933.WithPollInterval(0))
	return dev, sim
}

var testSweep = ad5933.SweepConfig{StartFrequency: 30000, FrequencyIncrement: 1000, Increments: 10}

func TestAnchors(t *testing.T) {
	tests := []struct {
		name    string
		sweep   ad5933.SweepConfig
		maxSpan int
		want    []int
	}{
		{"boundaries only", testSweep, calib.Unbounded, []int{0, 10}},
		{"every third", testSweep, 3000, []int{0, 3, 6, 9, 10}},
		{"exact division", testSweep, 5000, []int{0, 5, 10}},
		{"span below increment", testSweep, 500, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{"span wider than sweep", testSweep, 50000, []int{0, 10}},
		{"single point", ad5933.SweepConfig{StartFrequency: 30000, FrequencyIncrement: 1000}, calib.DefaultMaxSpan, []int{0}},
		{"zero increment", ad5933.SweepConfig{StartFrequency: 30000, Increments: 5}, 1000, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Anchors(tt.sweep, tt.maxSpan))
		})
	}
}

func TestAverage(t *testing.T) {
	assert.Equal(t, ad5933.RawSample{}, Average(nil))
	assert.Equal(t, ad5933.RawSample{Real: 2, Imag: -2}, Average([]ad5933.RawSample{
		{Real: 1, Imag: -1},
		{Real: 2, Imag: -2},
		{Real: 4, Imag: -4},
	}))
	assert.Equal(t, ad5933.RawSample{Real: 32767, Imag: -32768}, Average([]ad5933.RawSample{
		{Real: 32767, Imag: -32768},
		{Real: 32767, Imag: -32768},
	}))
}

func TestCalibrateSweep_Anchors(t *testing.T) {
	dev, sim := newTestDevice(t, ad5933.SimConfig{
		Load:        ad5933.Resistor(1000),
		GainDrift:   2e-6,
		SystemPhase: 0.3,
	})

	table, err := CalibrateSweep(context.Background(), dev, testSweep, calib.Reference{Impedance: 1000}, WithMaxSpan(3000))
	require.NoError(t, err)
	assert.False(t, dev.Busy())
	assert.Equal(t, 3000, table.MaxSpan())

	var freqs []int
	for _, a := range table.Anchors() {
		freqs = append(freqs, a.Frequency)
		assert.InEpsilon(t, sim.GainAt(float64(a.Frequency)), a.GainFactor, 1e-3)
		assert.InDelta(t, 0.3, a.PhaseOffset, 1e-3)
	}
	assert.Equal(t, []int{30000, 33000, 36000, 39000, 40000}, freqs)
	assert.Greater(t, table.GainDrift(), 0.0)
}

func TestCalibrateSweep_InvalidReference(t *testing.T) {
	dev, _ := newTestDevice(t, ad5933.SimConfig{})

	_, err := CalibrateSweep(context.Background(), dev, testSweep, calib.Reference{Impedance: 0})
	assert.ErrorIs(t, err, calib.ErrInvalidReference)
	assert.False(t, dev.Busy())
}

func TestSweep_RoundTrip(t *testing.T) {
	l := &load{ohms: 1000}
	dev, _ := newTestDevice(t, ad5933.SimConfig{
		Load:        l.impedance,
		GainDrift:   1e-6,
		SystemPhase: -0.5,
	})
	ctx := context.Background()

	table, err := CalibrateSweep(ctx, dev, testSweep, calib.Reference{Impedance: 1000})
	require.NoError(t, err)

	l.ohms = 2200
	samples, err := Collect(Sweep(ctx, dev, testSweep, table))
	require.NoError(t, err)
	require.Len(t, samples, testSweep.Points())

	for i, s := range samples {
		assert.Equal(t, 30000+i*1000, s.Frequency)
		assert.InEpsilon(t, 2200, s.Magnitude, 1e-3)
		assert.InDelta(t, 0, s.Phase, 1e-3)
	}
	assert.False(t, dev.Busy())
	assert.Equal(t, ad5933.FunctionStandby, dev.Function())
}

func TestSweep_StopEarly(t *testing.T) {
	dev, sim := newTestDevice(t, ad5933.SimConfig{})
	ctx := context.Background()

	table, err := CalibrateSweep(ctx, dev, testSweep, calib.Reference{Impedance: 1000})
	require.NoError(t, err)

	n := 0
	for _, err := range Sweep(ctx, dev, testSweep, table) {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
	assert.False(t, dev.Busy())

	fns := sim.Functions()
	assert.Equal(t, ad5933.FunctionStandby, fns[len(fns)-1])
}

func TestSweep_CalibrationMissing(t *testing.T) {
	dev, _ := newTestDevice(t, ad5933.SimConfig{})
	table, err := calib.NewTable(calib.Unbounded)
	require.NoError(t, err)

	_, err = Collect(Sweep(context.Background(), dev, testSweep, table))
	assert.ErrorIs(t, err, calib.ErrCalibrationMissing)
	assert.False(t, dev.Busy())
}

func TestSweep_OutsideCalibration(t *testing.T) {
	dev, _ := newTestDevice(t, ad5933.SimConfig{})
	ctx := context.Background()

	narrow := ad5933.SweepConfig{StartFrequency: 30000, FrequencyIncrement: 1000, Increments: 5}
	table, err := CalibrateSweep(ctx, dev, narrow, calib.Reference{Impedance: 1000})
	require.NoError(t, err)

	samples, err := Collect(Sweep(ctx, dev, testSweep, table))
	assert.ErrorIs(t, err, calib.ErrOutOfRange)
	assert.Len(t, samples, 6)
	assert.False(t, dev.Busy())
}

func TestSweep_Averaging(t *testing.T) {
	dev, sim := newTestDevice(t, ad5933.SimConfig{})
	ctx := context.Background()

	table, err := CalibrateSweep(ctx, dev, testSweep, calib.Reference{Impedance: 1000})
	require.NoError(t, err)

	before := len(sim.Functions())
	samples, err := Collect(Sweep(ctx, dev, testSweep, table, WithAveraging(4)))
	require.NoError(t, err)
	require.Len(t, samples, testSweep.Points())

	repeats := 0
	for _, fn := range sim.Functions()[before:] {
		if fn == ad5933.FunctionRepeatFreq {
			repeats++
		}
	}
	assert.Equal(t, 3*testSweep.Points(), repeats)
	for _, s := range samples {
		assert.InEpsilon(t, 1000, s.Magnitude, 1e-3)
	}
}

func TestSweep_Canceled(t *testing.T) {
	dev, _ := newTestDevice(t, ad5933.SimConfig{})
	table, err := CalibrateSweep(context.Background(), dev, testSweep, calib.Reference{Impedance: 1000})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples, err := Collect(Sweep(ctx, dev, testSweep, table))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, samples)
	assert.False(t, dev.Busy())
}

func TestSweep_DeviceBusy(t *testing.T) {
	dev, _ := newTestDevice(t, ad5933.SimConfig{})
	ctx := context.Background()
	table, err := CalibrateSweep(ctx, dev, testSweep, calib.Reference{Impedance: 1000})
	require.NoError(t, err)

	s, err := dev.StartSweep()
	require.NoError(t, err)
	defer s.Close()

	_, err = Collect(Sweep(ctx, dev, testSweep, table))
	assert.ErrorIs(t, err, ad5933.ErrInvalidState)
	assert.True(t, dev.Busy())
}

func TestSweep_Timeout(t *testing.T) {
	dev, _ := newTestDevice(t, ad5933.SimConfig{NeverReady: true})
	table, err := calib.NewTable(calib.Unbounded, calib.Point{Frequency: 30000, GainFactor: 1e-7})
	require.NoError(t, err)

	_, err = Collect(Sweep(context.Background(), dev, testSweep, table))
	assert.ErrorIs(t, err, ad5933.ErrMeasurementTimeout)
	assert.False(t, dev.Busy())
}
