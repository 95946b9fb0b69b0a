// Package monitor tracks the impedance at one frequency over repeated sweeps
// and converts its change against a baseline into a concentration.
package monitor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/itohio/goimp/pkg/concentration"
	"github.com/itohio/goimp/pkg/config"
	"github.com/itohio/goimp/pkg/impedance"
)

var _ ConcentrationMonitor = (*Monitor)(nil)

// ErrNoPoint is returned when a spectrum has no sample at the monitor frequency.
var ErrNoPoint = errors.New("no sample at monitor frequency")

// Spectrum is the result of one sweep.
type Spectrum struct {
	Timestamp time.Time
	Samples   []impedance.Sample
	Err       error // set when the sweep failed
}

// Reading is the state derived from one spectrum.
type Reading struct {
	Timestamp     time.Time
	Impedance     impedance.Sample // at the monitor frequency
	Delta         float64          // impedance change against the baseline, %
	Concentration float64
	Err           error // sweep or estimator failure, other fields are invalid
}

// ConcentrationMonitor processes spectra and reports readings.
type ConcentrationMonitor interface {
	ProcessSpectra(input <-chan Spectrum)
	Baseline() (impedance.Sample, bool)
	Readings() []Reading
	OnUpdate(func(spectrum Spectrum, readings []Reading))
}

// Monitor implements ConcentrationMonitor. The first successful spectrum
// becomes the baseline; every later one yields a Reading.
type Monitor struct {
	frequency int
	history   int
	estimator *concentration.Estimator
	logger    *slog.Logger

	mu       sync.RWMutex
	baseline *impedance.Sample
	readings []Reading // oldest first, at most history entries
	shutdown bool      // input closed, no further callbacks

	callbacks []func(spectrum Spectrum, readings []Reading)
	cbMu      sync.RWMutex
}

// Option configures a Monitor.
type Option func(m *Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger.With(slog.String("component", "monitor"))
	}
}

// New creates a monitor for the frequency configured in cfg.Monitor.
func New(cfg *config.Config, est *concentration.Estimator, options ...Option) *Monitor {
	m := &Monitor{
		frequency: cfg.Monitor.Frequency,
		history:   max(1, cfg.Monitor.History),
		estimator: est,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Frequency returns the monitored frequency in Hz.
func (m *Monitor) Frequency() int {
	return m.frequency
}

// ProcessSpectra consumes spectra until input is closed. After that no
// callbacks are sent until ResetShutdown.
func (m *Monitor) ProcessSpectra(input <-chan Spectrum) {
	for s := range input {
		m.processSpectrum(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

func (m *Monitor) processSpectrum(s Spectrum) {
	m.mu.Lock()
	r, ok := m.reading(s)
	if ok {
		m.readings = append(m.readings, r)
		if over := len(m.readings) - m.history; over > 0 {
			m.readings = m.readings[over:]
		}
	}
	notify := !m.shutdown
	m.mu.Unlock()

	if notify {
		m.notifyCallbacks(s)
	}
}

// reading derives a reading from s. It returns false when s became the
// baseline. Caller holds mu.
func (m *Monitor) reading(s Spectrum) (Reading, bool) {
	r := Reading{Timestamp: s.Timestamp}
	if s.Err != nil {
		r.Err = s.Err
		m.logger.Warn("sweep failed", slog.String("error", s.Err.Error()))
		return r, true
	}

	z, err := m.pick(s.Samples)
	if err != nil {
		r.Err = err
		return r, true
	}
	r.Impedance = z

	if m.baseline == nil {
		m.baseline = &z
		m.logger.Info("baseline captured",
			slog.Int("frequency", z.Frequency),
			slog.Float64("magnitude", z.Magnitude))
		return Reading{}, false
	}

	r.Delta, err = concentration.DeltaPercent(m.baseline.Magnitude, z.Magnitude)
	if err != nil {
		r.Err = err
		return r, true
	}
	if m.estimator != nil {
		r.Concentration, r.Err = m.estimator.Estimate(r.Delta)
	}
	return r, true
}

// pick returns the sample at the monitor frequency.
func (m *Monitor) pick(samples []impedance.Sample) (impedance.Sample, error) {
	for _, z := range samples {
		if z.Frequency == m.frequency {
			return z, nil
		}
	}
	return impedance.Sample{}, fmt.Errorf("%w: %d Hz", ErrNoPoint, m.frequency)
}

// Baseline returns the baseline sample, if captured.
func (m *Monitor) Baseline() (impedance.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.baseline == nil {
		return impedance.Sample{}, false
	}
	return *m.baseline, true
}

// ResetBaseline drops the baseline and history; the next spectrum becomes
// the new baseline.
func (m *Monitor) ResetBaseline() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = nil
	m.readings = nil
}

// Readings returns a copy of the readings, oldest first.
func (m *Monitor) Readings() []Reading {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Reading, len(m.readings))
	copy(result, m.readings)
	return result
}

// OnUpdate registers a callback invoked after every processed spectrum.
// The callback should return quickly.
func (m *Monitor) OnUpdate(callback func(spectrum Spectrum, readings []Reading)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again after the input channel was closed.
func (m *Monitor) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks copies the readings and invokes callbacks without holding locks.
func (m *Monitor) notifyCallbacks(s Spectrum) {
	readings := m.Readings()

	m.cbMu.RLock()
	callbacks := make([]func(spectrum Spectrum, readings []Reading), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(s, readings)
		}
	}
}
