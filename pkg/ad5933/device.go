package ad5933

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/itohio/goimp/pkg/bus"
)

const (
	// DefaultPollRetries bounds each status poll.
	DefaultPollRetries = 100
	// DefaultPollInterval is the pause between status reads.
	DefaultPollInterval = time.Millisecond
)

// Option configures a Device.
type Option func(d *Device)

// WithLogger sets the logger for the device.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Device) {
		d.logger = logger.With(slog.String("device", "ad5933"))
	}
}

// WithPollRetries sets how many status reads a poll may take before it fails
// with ErrMeasurementTimeout. Values below 1 are ignored.
func WithPollRetries(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.pollRetries = n
		}
	}
}

// WithPollInterval sets the pause between status reads.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) {
		d.pollInterval = interval
	}
}

// WithPowerDownOnClose makes Session.Close power the device down instead of
// leaving it in standby.
func WithPowerDownOnClose() Option {
	return func(d *Device) {
		d.idle = FunctionPowerDown
	}
}

// Device controls one AD5933. It owns the device exclusively: at most one
// Session exists at a time. Device is safe for concurrent use; a second
// StartSweep while a session is open fails with ErrSessionBusy.
type Device struct {
	bus          bus.Bus
	pollRetries  int
	pollInterval time.Duration
	idle         Function
	logger       *slog.Logger

	mu       sync.Mutex
	fn       Function
	clock    int
	clkSrc   ClockSource
	sweep    *SweepConfig
	settling SettlingConfig
	session  *Session
}

// New creates a Device on b using the internal clock.
func New(b bus.Bus, options ...Option) *Device {
	d := &Device{
		bus:          b,
		pollRetries:  DefaultPollRetries,
		pollInterval: DefaultPollInterval,
		idle:         FunctionStandby,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		fn:           FunctionNOP,
		clock:        InternalClock,
		clkSrc:       ClockInternal,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Clock returns the system clock frequency in Hz.
func (d *Device) Clock() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clock
}

// Function returns the last function commanded.
func (d *Device) Function() Function {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn
}

// Busy reports whether a sweep session is open.
func (d *Device) Busy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session != nil
}

// Sweep returns the configured sweep, if any.
func (d *Device) Sweep() (SweepConfig, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sweep == nil {
		return SweepConfig{}, false
	}
	return *d.sweep, true
}

// Settling returns the configured settling time.
func (d *Device) Settling() SettlingConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settling
}

// Reset resets the device. The sweep registers keep their values; a new
// sweep has to be started afterwards.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return fmt.Errorf("%w: reset during sweep", ErrInvalidState)
	}
	if err := d.bus.WriteRegister(RegControlLB, uint32(EncodeControlLB(true, d.clkSrc)), 1); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	d.fn = FunctionNOP
	d.logger.Debug("reset")
	return nil
}

// SetSystemClock selects the clock source. extHz is the external clock
// frequency and is ignored for ClockInternal. A configured sweep is
// re-encoded for the new clock.
func (d *Device) SetSystemClock(src ClockSource, extHz int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return fmt.Errorf("%w: clock change during sweep", ErrInvalidState)
	}
	clock := InternalClock
	switch src {
	case ClockInternal:
	case ClockExternal:
		if extHz <= 0 {
			return fmt.Errorf("%w: external clock %d Hz", ErrInvalidRange, extHz)
		}
		clock = extHz
	default:
		return fmt.Errorf("%w: clock source %d", ErrInvalidRange, src)
	}
	if d.sweep != nil {
		if err := d.sweep.Validate(clock); err != nil {
			return fmt.Errorf("configured sweep at new clock: %w", err)
		}
	}

	if err := d.bus.WriteRegister(RegControlLB, uint32(EncodeControlLB(false, src)), 1); err != nil {
		return fmt.Errorf("set system clock: %w", err)
	}
	d.clock = clock
	d.clkSrc = src
	d.logger.Debug("system clock", slog.Int("hz", clock), slog.Bool("external", src == ClockExternal))

	if d.sweep != nil {
		return d.writeSweep(*d.sweep)
	}
	return nil
}

// SetRangeAndGain selects the excitation range and PGA gain, keeping the
// current function bits.
func (d *Device) SetRangeAndGain(r Range, g Gain) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return fmt.Errorf("%w: range change during sweep", ErrInvalidState)
	}
	if r > Range1000mVpp {
		return fmt.Errorf("%w: range code %d", ErrInvalidRange, r)
	}
	if g > GainX1 {
		return fmt.Errorf("%w: gain code %d", ErrInvalidRange, g)
	}

	ctrl, err := d.readControl()
	if err != nil {
		return err
	}
	ctrl.Range = r
	ctrl.Gain = g
	if err := d.bus.WriteRegister(RegControlHB, uint32(EncodeControl(ctrl)), 1); err != nil {
		return fmt.Errorf("set range and gain: %w", err)
	}
	d.logger.Debug("range and gain", slog.Int("mVpp", r.Millivolts()), slog.Bool("x1", g == GainX1))
	return nil
}

// Standby puts the device in standby. An open session is ended.
func (d *Device) Standby() error {
	return d.idleWith(FunctionStandby)
}

// PowerDown powers the device down. An open session is ended.
func (d *Device) PowerDown() error {
	return d.idleWith(FunctionPowerDown)
}

func (d *Device) idleWith(fn Function) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s := d.session; s != nil {
		d.logger.Warn("sweep aborted", slog.Int("points", s.next), slog.Int("total", s.sweep.Points()))
		s.closed = true
		d.session = nil
	}
	return d.command(fn)
}

// Temperature measures the die temperature in degrees Celsius.
func (d *Device) Temperature() (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return 0, fmt.Errorf("%w: temperature during sweep", ErrSessionBusy)
	}
	if d.fn == FunctionPowerDown {
		if err := d.command(FunctionStandby); err != nil {
			return 0, err
		}
	}
	if err := d.command(FunctionMeasureTemp); err != nil {
		return 0, err
	}
	if _, err := d.poll(StatusTempValid); err != nil {
		return 0, fmt.Errorf("temperature: %w", err)
	}
	v, err := d.bus.ReadRegister(RegTemperature, 2)
	if err != nil {
		return 0, fmt.Errorf("read temperature: %w", err)
	}
	return decodeTemperature(v), nil
}

// ConfigureSweep validates c and writes it to the device. Increments above
// MaxIncrements are clamped. Nothing is written when validation fails.
func (d *Device) ConfigureSweep(c SweepConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return fmt.Errorf("%w: sweep reconfigured during sweep", ErrInvalidState)
	}
	if c.Increments > MaxIncrements {
		d.logger.Warn("increments clamped", slog.Int("requested", c.Increments), slog.Int("max", MaxIncrements))
		c = c.Clamped()
	}
	if err := c.Validate(d.clock); err != nil {
		return err
	}
	return d.writeSweep(c)
}

func (d *Device) writeSweep(c SweepConfig) error {
	start, _ := FrequencyCode(c.StartFrequency, d.clock)
	inc, _ := FrequencyCode(c.FrequencyIncrement, d.clock)

	if err := d.bus.WriteRegister(RegStartFreq, start, 3); err != nil {
		return fmt.Errorf("write start frequency: %w", err)
	}
	if err := d.bus.WriteRegister(RegFreqInc, inc, 3); err != nil {
		return fmt.Errorf("write frequency increment: %w", err)
	}
	if err := d.bus.WriteRegister(RegIncNum, uint32(c.Increments), 2); err != nil {
		return fmt.Errorf("write increments: %w", err)
	}
	d.sweep = &c
	d.logger.Debug("sweep configured",
		slog.Int("start", c.StartFrequency),
		slog.Int("increment", c.FrequencyIncrement),
		slog.Int("increments", c.Increments))
	return nil
}

// SetSettlingTime sets the settling cycles applied after every frequency
// change. It must be called before StartSweep.
func (d *Device) SetSettlingTime(cycles int, m SettlingMultiplier) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return fmt.Errorf("%w: settling time changed during sweep", ErrInvalidState)
	}
	c := SettlingConfig{Cycles: cycles, Multiplier: m}
	v, err := EncodeSettling(c)
	if err != nil {
		return err
	}
	if err := d.bus.WriteRegister(RegSettlingHB, uint32(v), 2); err != nil {
		return fmt.Errorf("write settling time: %w", err)
	}
	d.settling = c
	d.logger.Debug("settling time", slog.Int("cycles", c.Effective()), slog.Uint64("register", uint64(v)))
	return nil
}

// StartSweep starts the configured sweep and waits for the first point.
// The returned Session must be closed.
func (d *Device) StartSweep() (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		return nil, ErrSessionBusy
	}
	if d.sweep == nil {
		return nil, fmt.Errorf("%w: sweep not configured", ErrInvalidState)
	}

	for _, fn := range []Function{FunctionStandby, FunctionInitStartFreq, FunctionStartSweep} {
		if err := d.command(fn); err != nil {
			d.abortStart()
			return nil, err
		}
	}
	status, err := d.poll(StatusDataValid)
	if err != nil {
		d.abortStart()
		return nil, fmt.Errorf("start sweep: %w", err)
	}

	s := &Session{
		dev:      d,
		sweep:    *d.sweep,
		settling: d.settling,
		pending:  true,
		status:   status,
	}
	d.session = s
	d.logger.Info("sweep started", slog.Int("points", s.sweep.Points()))
	return s, nil
}

// abortStart returns the device to standby after a failed start. Caller holds mu.
func (d *Device) abortStart() {
	if err := d.command(FunctionStandby); err != nil {
		d.logger.Error("failed to return to standby", slog.String("error", err.Error()))
	}
}

// command writes fn into the control register, keeping range and gain.
// Caller holds mu.
func (d *Device) command(fn Function) error {
	if err := checkTransition(d.fn, fn); err != nil {
		return err
	}
	ctrl, err := d.readControl()
	if err != nil {
		return err
	}
	ctrl.Function = fn
	if err := d.bus.WriteRegister(RegControlHB, uint32(EncodeControl(ctrl)), 1); err != nil {
		return fmt.Errorf("command %s: %w", fn, err)
	}
	d.fn = fn
	return nil
}

func (d *Device) readControl() (Control, error) {
	v, err := d.bus.ReadRegister(RegControlHB, 1)
	if err != nil {
		return Control{}, fmt.Errorf("read control: %w", err)
	}
	return DecodeControl(byte(v)), nil
}

// poll reads the status register until any bit of mask is set.
func (d *Device) poll(mask byte) (byte, error) {
	for i := range d.pollRetries {
		v, err := d.bus.ReadRegister(RegStatus, 1)
		if err != nil {
			return 0, fmt.Errorf("read status: %w", err)
		}
		if status := byte(v); status&mask != 0 {
			return status, nil
		}
		if i < d.pollRetries-1 && d.pollInterval > 0 {
			time.Sleep(d.pollInterval)
		}
	}
	return 0, fmt.Errorf("%w: status 0x%02X not set after %d reads", ErrMeasurementTimeout, mask, d.pollRetries)
}

func (d *Device) readSample() (RawSample, error) {
	re, err := d.bus.ReadRegister(RegRealData, 2)
	if err != nil {
		return RawSample{}, fmt.Errorf("read real data: %w", err)
	}
	im, err := d.bus.ReadRegister(RegImagData, 2)
	if err != nil {
		return RawSample{}, fmt.Errorf("read imaginary data: %w", err)
	}
	return RawSample{
		Real: int16(uint16(re)),
		Imag: int16(uint16(im)),
	}, nil
}
