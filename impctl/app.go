package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/itohio/goimp/pkg/ad5933"
	"github.com/itohio/goimp/pkg/bus"
	"github.com/itohio/goimp/pkg/calib"
	"github.com/itohio/goimp/pkg/concentration"
	"github.com/itohio/goimp/pkg/config"
	"github.com/itohio/goimp/pkg/measure"
)

// app holds the state shared by commands. The device is opened on first use
// and kept open for the lifetime of a shell session.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	in         io.Reader
	out        io.Writer

	degrees   bool
	maxPoints int
	save      bool

	dev    *ad5933.Device
	sim    *ad5933.Sim
	closer io.Closer
	table  *calib.Table
}

func newApp(cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) *app {
	return &app{
		cfg:    cfg,
		logger: logger,
		in:     in,
		out:    out,
	}
}

// Close idles the device and releases the bus.
func (a *app) Close() error {
	if a.dev == nil {
		return nil
	}
	var err error
	if !a.dev.Busy() {
		err = a.dev.Standby()
	}
	if a.closer != nil {
		err = errors.Join(err, a.closer.Close())
	}
	a.dev = nil
	return err
}

// openBus returns the register transport selected in the configuration.
func (a *app) openBus() (bus.Bus, error) {
	switch a.cfg.Bus.Kind {
	case config.BusSim:
		a.sim = ad5933.NewSim(simConfig(a.cfg))
		a.logger.Info("using simulated device", slog.Float64("load_ohms", a.cfg.Sim.LoadOhms))
		return bus.NewI2C(a.sim, bus.DefaultAddress, a.cfg.Bus.Block), nil
	case config.BusSerial:
		s := bus.NewSerial(a.cfg.Bus.Port, a.cfg.Bus.BaudRate)
		if err := s.Connect(); err != nil {
			return nil, err
		}
		a.closer = s
		a.logger.Info("connected", slog.String("port", a.cfg.Bus.Port), slog.Int("baud_rate", a.cfg.Bus.BaudRate))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown bus kind %q", a.cfg.Bus.Kind)
	}
}

// device opens and configures the device on first use.
func (a *app) device() (*ad5933.Device, error) {
	if a.dev != nil {
		return a.dev, nil
	}

	b, err := a.openBus()
	if err != nil {
		return nil, err
	}

	dc := a.cfg.Device
	opts := []ad5933.Option{
		ad5933.WithLogger(a.logger),
		ad5933.WithPollRetries(dc.PollRetries),
		ad5933.WithPollInterval(dc.PollInterval),
	}
	if dc.PowerDownOnClose {
		opts = append(opts, ad5933.WithPowerDownOnClose())
	}
	dev := ad5933.New(b, opts...)

	if err := a.setup(dev); err != nil {
		if a.closer != nil {
			a.closer.Close()
			a.closer = nil
		}
		return nil, err
	}
	a.dev = dev
	return dev, nil
}

// setup applies clock, range, gain, settling and sweep from the configuration.
func (a *app) setup(dev *ad5933.Device) error {
	dc := a.cfg.Device

	src, err := clockSource(dc.ClockSource)
	if err != nil {
		return err
	}
	if err := dev.SetSystemClock(src, dc.ExternalClock); err != nil {
		return err
	}

	r, err := ad5933.RangeFromMillivolts(dc.RangeMillivolts)
	if err != nil {
		return err
	}
	g, err := ad5933.GainFromFactor(dc.Gain)
	if err != nil {
		return err
	}
	if err := dev.SetRangeAndGain(r, g); err != nil {
		return err
	}

	m, err := ad5933.SettlingMultiplierFromFactor(a.cfg.Settling.Multiplier)
	if err != nil {
		return err
	}
	if err := dev.SetSettlingTime(a.cfg.Settling.Cycles, m); err != nil {
		return err
	}

	return dev.ConfigureSweep(sweepConfig(a.cfg.Sweep))
}

// calibration returns the calibration of this session, falling back to the
// points stored in the configuration.
func (a *app) calibration() (*calib.Table, error) {
	if a.table != nil {
		return a.table, nil
	}
	if len(a.cfg.Calibration.Points) == 0 {
		return nil, fmt.Errorf("%w: run calibrate first", calib.ErrCalibrationMissing)
	}
	points := make([]calib.Point, len(a.cfg.Calibration.Points))
	for i, p := range a.cfg.Calibration.Points {
		points[i] = calib.Point{Frequency: p.Frequency, GainFactor: p.GainFactor, PhaseOffset: p.PhaseOffset}
	}
	t, err := calib.NewTable(a.cfg.Calibration.MaxSpan, points...)
	if err != nil {
		return nil, fmt.Errorf("stored calibration: %w", err)
	}
	a.table = t
	return t, nil
}

// storeCalibration keeps t for the session and, with -save, writes it to the
// configuration file.
func (a *app) storeCalibration(t *calib.Table) error {
	a.table = t
	anchors := t.Anchors()
	a.cfg.Calibration.Points = make([]config.CalibrationPoint, len(anchors))
	for i, p := range anchors {
		a.cfg.Calibration.Points[i] = config.CalibrationPoint{Frequency: p.Frequency, GainFactor: p.GainFactor, PhaseOffset: p.PhaseOffset}
	}
	if !a.save || a.configPath == "" {
		return nil
	}
	if err := a.cfg.Save(a.configPath); err != nil {
		return err
	}
	a.logger.Info("calibration saved", slog.String("path", a.configPath))
	return nil
}

func (a *app) measureOptions() []measure.Option {
	return []measure.Option{
		measure.WithLogger(a.logger),
		measure.WithAveraging(a.cfg.Calibration.Averages),
		measure.WithMaxSpan(a.cfg.Calibration.MaxSpan),
	}
}

func (a *app) estimator() (*concentration.Estimator, error) {
	c := a.cfg.Concentration
	return concentration.New(concentration.Config{
		Coefficients: c.Coefficients,
		MinDelta:     c.MinDelta,
		MaxDelta:     c.MaxDelta,
		Unit:         c.Unit,
	})
}

func clockSource(s string) (ad5933.ClockSource, error) {
	switch s {
	case "", "internal":
		return ad5933.ClockInternal, nil
	case "external":
		return ad5933.ClockExternal, nil
	}
	return 0, fmt.Errorf("%w: clock source %q", ad5933.ErrInvalidRange, s)
}

func sweepConfig(c config.SweepConfig) ad5933.SweepConfig {
	return ad5933.SweepConfig{
		StartFrequency:     c.StartFrequency,
		FrequencyIncrement: c.FrequencyIncrement,
		Increments:         c.Increments,
	}
}

func simConfig(cfg *config.Config) ad5933.SimConfig {
	return ad5933.SimConfig{
		Load:          ad5933.Resistor(cfg.Sim.LoadOhms),
		GainFactor:    cfg.Sim.GainFactor,
		GainDrift:     cfg.Sim.GainDrift,
		SystemPhase:   cfg.Sim.SystemPhase,
		Latency:       cfg.Sim.Latency,
		Temperature:   cfg.Sim.Temperature,
		ExternalClock: cfg.Device.ExternalClock,
	}
}
