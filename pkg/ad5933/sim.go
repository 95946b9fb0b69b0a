package ad5933

import (
	"errors"
	"math"
	"math/cmplx"
	"sync"

	"tinygo.org/x/drivers"
)

// SimConfig describes the simulated analog front end.
type SimConfig struct {
	// Load is the impedance between VOUT and VIN at a frequency in Hz.
	// Nil means a 1 kΩ resistor.
	Load func(hz float64) complex128
	// GainFactor is the admittance per ADC count at 0 Hz. Zero means 1e-7.
	GainFactor float64
	// GainDrift is the relative gain change per Hz.
	GainDrift float64
	// SystemPhase is added to the phase of every measurement, in radians.
	SystemPhase float64
	// Latency is the number of status reads before a result becomes valid.
	Latency int
	// NeverReady keeps the valid bits clear forever.
	NeverReady bool
	// Temperature is the die temperature in degrees Celsius.
	Temperature float64
	// ExternalClock is the clock used when the external clock is selected.
	ExternalClock int
}

// Resistor returns a purely resistive load.
func Resistor(ohms float64) func(float64) complex128 {
	return func(float64) complex128 {
		return complex(ohms, 0)
	}
}

// Sim is a register-level AD5933 model reachable through drivers.I2C, so the
// whole stack including bus.I2C runs without hardware.
type Sim struct {
	cfg SimConfig

	mu        sync.Mutex
	regs      [256]byte
	pointer   byte
	step      int
	pending   byte // status bits that become valid after latency
	wait      int
	functions []Function
	fail      error
}

var _ drivers.I2C = (*Sim)(nil)

// NewSim creates a simulated device.
func NewSim(cfg SimConfig) *Sim {
	if cfg.Load == nil {
		cfg.Load = Resistor(1000)
	}
	if cfg.GainFactor == 0 {
		cfg.GainFactor = 1e-7
	}
	s := &Sim{cfg: cfg}
	s.regs[RegControlHB] = EncodeControl(Control{Function: FunctionPowerDown, Gain: GainX1})
	return s
}

// Functions returns every function written to the control register, in order.
func (s *Sim) Functions() []Function {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Function(nil), s.functions...)
}

// Register returns the raw value of a register byte.
func (s *Sim) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// Fail makes every following transaction return err. Nil clears it.
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// GainAt returns the simulated gain factor at hz.
func (s *Sim) GainAt(hz float64) float64 {
	return s.cfg.GainFactor * (1 + s.cfg.GainDrift*hz)
}

// Tx implements drivers.I2C.
func (s *Sim) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	switch {
	case len(w) == 2 && w[0] == 0xB0:
		s.pointer = w[1]
	case len(w) >= 2 && w[0] == 0xA0:
		n := int(w[1])
		if len(w) != n+2 {
			return errors.New("sim: block write length mismatch")
		}
		for i, v := range w[2:] {
			s.write(s.pointer+byte(i), v)
		}
	case len(w) == 2 && w[0] == 0xA1:
		n := int(w[1])
		if len(r) < n {
			return errors.New("sim: block read buffer too small")
		}
		for i := range n {
			r[i] = s.read(s.pointer + byte(i))
		}
	case len(w) == 2:
		s.write(w[0], w[1])
	case len(w) == 0 && len(r) == 1:
		r[0] = s.read(s.pointer)
	default:
		return errors.New("sim: unsupported transaction")
	}
	return nil
}

// ReadRegister implements drivers.I2C.
func (s *Sim) ReadRegister(addr uint8, r uint8, buf []byte) error {
	for i := range buf {
		if err := s.Tx(uint16(addr), []byte{0xB0, r + uint8(i)}, nil); err != nil {
			return err
		}
		if err := s.Tx(uint16(addr), nil, buf[i:i+1]); err != nil {
			return err
		}
	}
	return nil
}

// WriteRegister implements drivers.I2C.
func (s *Sim) WriteRegister(addr uint8, r uint8, buf []byte) error {
	for i, v := range buf {
		if err := s.Tx(uint16(addr), []byte{r + uint8(i), v}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sim) read(reg byte) byte {
	if reg == RegStatus && s.pending != 0 && !s.cfg.NeverReady {
		if s.wait > 0 {
			s.wait--
		} else {
			s.regs[RegStatus] |= s.pending
			s.pending = 0
		}
	}
	return s.regs[reg]
}

func (s *Sim) write(reg, v byte) {
	switch reg {
	case RegControlHB:
		s.regs[reg] = v
		s.execute(DecodeControl(v).Function)
	case RegControlLB:
		if v&controlReset != 0 {
			s.step = 0
			s.settle(0)
			v &^= controlReset
		}
		s.regs[reg] = v
	case RegStatus, RegTemperature, RegTemperature + 1,
		RegRealData, RegRealData + 1, RegImagData, RegImagData + 1:
		// read only
	default:
		s.regs[reg] = v
	}
}

func (s *Sim) execute(fn Function) {
	s.functions = append(s.functions, fn)
	switch fn {
	case FunctionInitStartFreq:
		s.step = 0
		s.settle(0)
	case FunctionStartSweep:
		s.step = 0
		s.measure()
	case FunctionIncFreq:
		if s.step < s.increments() {
			s.step++
		}
		s.measure()
	case FunctionRepeatFreq:
		s.measure()
	case FunctionMeasureTemp:
		t := int(math.Round(s.cfg.Temperature*32)) & 0x3FFF
		s.regs[RegTemperature] = byte(t >> 8)
		s.regs[RegTemperature+1] = byte(t)
		s.settle(StatusTempValid)
	default:
		s.settle(0)
	}
}

// settle clears the status register and schedules bits to become valid.
func (s *Sim) settle(bits byte) {
	s.regs[RegStatus] = 0
	s.pending = bits
	s.wait = s.cfg.Latency
}

func (s *Sim) increments() int {
	return int(s.regs[RegIncNum])<<8&0x100 | int(s.regs[RegIncNum+1])
}

func (s *Sim) clock() int {
	if s.regs[RegControlLB]&controlExtClk != 0 && s.cfg.ExternalClock > 0 {
		return s.cfg.ExternalClock
	}
	return InternalClock
}

func (s *Sim) code(reg byte) uint32 {
	return uint32(s.regs[reg])<<16 | uint32(s.regs[reg+1])<<8 | uint32(s.regs[reg+2])
}

func (s *Sim) frequency() float64 {
	code := s.code(RegStartFreq) + uint32(s.step)*s.code(RegFreqInc)
	return CodeFrequency(code, s.clock())
}

func (s *Sim) measure() {
	hz := s.frequency()
	z := s.cfg.Load(hz)

	mag := 0.0
	if zm := cmplx.Abs(z); zm > 0 {
		mag = 1 / (s.GainAt(hz) * zm)
	}
	angle := s.cfg.SystemPhase + cmplx.Phase(z)
	re := clampInt16(mag * math.Cos(angle))
	im := clampInt16(mag * math.Sin(angle))

	s.regs[RegRealData] = byte(uint16(re) >> 8)
	s.regs[RegRealData+1] = byte(uint16(re))
	s.regs[RegImagData] = byte(uint16(im) >> 8)
	s.regs[RegImagData+1] = byte(uint16(im))

	bits := StatusDataValid
	if s.step >= s.increments() {
		bits |= StatusSweepDone
	}
	s.settle(bits)
}

func clampInt16(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
