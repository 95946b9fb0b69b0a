// Package measure runs calibration and measurement sweeps on an AD5933 and
// turns the raw points into calibrated impedance.
package measure

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"

	"github.com/itohio/goimp/pkg/ad5933"
	"github.com/itohio/goimp/pkg/calib"
	"github.com/itohio/goimp/pkg/impedance"
)

// Sweeper is the part of ad5933.Device the pipeline drives.
type Sweeper interface {
	ConfigureSweep(c ad5933.SweepConfig) error
	SetSettlingTime(cycles int, m ad5933.SettlingMultiplier) error
	Settling() ad5933.SettlingConfig
	StartSweep() (*ad5933.Session, error)
}

var _ Sweeper = (*ad5933.Device)(nil)

// Option configures a measurement.
type Option func(o *options)

type options struct {
	averages int
	maxSpan  int
	logger   *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{
		averages: 1,
		maxSpan:  calib.DefaultMaxSpan,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithAveraging acquires every point n times using repeat-frequency and
// averages the raw samples. Values below 2 disable averaging.
func WithAveraging(n int) Option {
	return func(o *options) {
		if n > 1 {
			o.averages = n
		}
	}
}

// WithMaxSpan bounds the interval in Hz between calibration anchors.
// calib.Unbounded calibrates only at the first and last point of the sweep.
// Other values below 1 are ignored.
func WithMaxSpan(hz int) Option {
	return func(o *options) {
		if hz > 0 || hz == calib.Unbounded {
			o.maxSpan = hz
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger.With(slog.String("component", "measure"))
	}
}

// Average returns the mean of samples, rounded to the nearest count.
func Average(samples []ad5933.RawSample) ad5933.RawSample {
	if len(samples) == 0 {
		return ad5933.RawSample{}
	}
	var re, im float64
	for _, s := range samples {
		re += float64(s.Real)
		im += float64(s.Imag)
	}
	n := float64(len(samples))
	return ad5933.RawSample{
		Real: int16(math.Round(re / n)),
		Imag: int16(math.Round(im / n)),
	}
}

// acquire returns p averaged with averages-1 repeated measurements.
func acquire(s *ad5933.Session, p ad5933.Point, averages int) (ad5933.Point, error) {
	if averages < 2 {
		return p, nil
	}
	raws := make([]ad5933.RawSample, 0, averages)
	raws = append(raws, p.Raw)
	for range averages - 1 {
		r, err := s.Repeat()
		if err != nil {
			return ad5933.Point{}, err
		}
		raws = append(raws, r.Raw)
	}
	p.Raw = Average(raws)
	return p, nil
}

// start configures and starts a sweep.
func start(dev Sweeper, sweep ad5933.SweepConfig) (*ad5933.Session, error) {
	if err := dev.ConfigureSweep(sweep); err != nil {
		return nil, err
	}
	return dev.StartSweep()
}

// closeSession closes s and joins its error into err.
func closeSession(s *ad5933.Session, err *error) {
	if cerr := s.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close session: %w", cerr)
	}
}

// Anchors returns the step indices of sweep that are calibrated directly:
// the first and last step, plus intermediate steps so that no two
// neighbouring anchors are more than maxSpan Hz apart.
func Anchors(sweep ad5933.SweepConfig, maxSpan int) []int {
	n := sweep.Increments
	if n == 0 || sweep.FrequencyIncrement == 0 {
		return []int{0}
	}
	every := n
	if maxSpan > 0 {
		every = max(1, min(n, maxSpan/sweep.FrequencyIncrement))
	}
	idx := make([]int, 0, n/every+2)
	for i := 0; i < n; i += every {
		idx = append(idx, i)
	}
	return append(idx, n)
}

// CalibrateSweep runs sweep with the reference attached and returns a
// calibration table anchored at the indices given by Anchors.
func CalibrateSweep(ctx context.Context, dev Sweeper, sweep ad5933.SweepConfig, ref calib.Reference, opts ...Option) (_ *calib.Table, err error) {
	o := newOptions(opts)
	sweep = sweep.Clamped()

	table, err := calib.NewTable(o.maxSpan)
	if err != nil {
		return nil, err
	}
	anchors := Anchors(sweep, o.maxSpan)

	s, err := start(dev, sweep)
	if err != nil {
		return nil, err
	}
	defer closeSession(s, &err)

	next := 0
	for p, err := range s.Points() {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if next >= len(anchors) || p.Index != anchors[next] {
			continue
		}
		next++

		p, err = acquire(s, p, o.averages)
		if err != nil {
			return nil, err
		}
		r := ref
		r.Frequency = p.Frequency
		cp, err := calib.Calibrate(p.Raw, r)
		if err != nil {
			return nil, err
		}
		if err := table.Add(cp); err != nil {
			return nil, err
		}
		o.logger.Debug("calibration anchor",
			slog.Int("frequency", cp.Frequency),
			slog.Float64("gain_factor", cp.GainFactor),
			slog.Float64("phase_offset", cp.PhaseOffset))
	}

	o.logger.Info("calibrated",
		slog.Int("anchors", table.Len()),
		slog.Float64("gain_drift", table.GainDrift()))
	return table, nil
}

// Sweep runs sweep lazily and yields the calibrated impedance of every point.
// The session is closed when iteration ends, including when the consumer
// stops early. The first error ends the sequence.
func Sweep(ctx context.Context, dev Sweeper, sweep ad5933.SweepConfig, table *calib.Table, opts ...Option) iter.Seq2[impedance.Sample, error] {
	o := newOptions(opts)

	return func(yield func(impedance.Sample, error) bool) {
		s, err := start(dev, sweep)
		if err != nil {
			yield(impedance.Sample{}, err)
			return
		}

		stopped := false
		defer func() {
			if err := s.Close(); err != nil {
				o.logger.Error("failed to close session", slog.String("error", err.Error()))
				if !stopped {
					yield(impedance.Sample{}, fmt.Errorf("close session: %w", err))
				}
			}
		}()

		for p, err := range s.Points() {
			if err == nil {
				err = ctx.Err()
			}
			var z impedance.Sample
			if err == nil {
				z, err = reconstruct(s, p, table, o.averages)
			}
			if err != nil {
				stopped = true
				yield(impedance.Sample{}, err)
				return
			}
			if !yield(z, nil) {
				stopped = true
				return
			}
		}
	}
}

func reconstruct(s *ad5933.Session, p ad5933.Point, table *calib.Table, averages int) (impedance.Sample, error) {
	cal, err := table.At(p.Frequency)
	if err != nil {
		return impedance.Sample{}, err
	}
	p, err = acquire(s, p, averages)
	if err != nil {
		return impedance.Sample{}, err
	}
	z, err := impedance.Reconstruct(p.Raw, cal)
	if err != nil {
		return impedance.Sample{}, err
	}
	z.Frequency = p.Frequency
	return z, nil
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[impedance.Sample, error]) ([]impedance.Sample, error) {
	var out []impedance.Sample
	for z, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, z)
	}
	return out, nil
}
