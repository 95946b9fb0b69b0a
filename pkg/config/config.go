package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Bus kinds.
const (
	BusSerial = "serial" // serial-to-I2C bridge firmware
	BusSim    = "sim"    // in-process simulated device
)

// Config represents the application configuration.
type Config struct {
	Bus           BusConfig           `yaml:"bus"`
	Device        DeviceConfig        `yaml:"device"`
	Sweep         SweepConfig         `yaml:"sweep"`
	Settling      SettlingConfig      `yaml:"settling"`
	Calibration   CalibrationConfig   `yaml:"calibration"`
	Concentration ConcentrationConfig `yaml:"concentration"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Sim           SimConfig           `yaml:"sim"`
	Log           LogConfig           `yaml:"log"`
}

// BusConfig selects how registers are reached.
type BusConfig struct {
	Kind     string `yaml:"kind"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	Block    bool   `yaml:"block"` // use block read/write for multi-byte registers
}

// DeviceConfig contains AD5933 front end settings.
type DeviceConfig struct {
	ClockSource      string        `yaml:"clock_source"`   // "internal" or "external"
	ExternalClock    int           `yaml:"external_clock"` // Hz
	RangeMillivolts  int           `yaml:"range_mv"`       // 2000, 1000, 400 or 200
	Gain             int           `yaml:"gain"`           // PGA gain, 1 or 5
	PollRetries      int           `yaml:"poll_retries"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	PowerDownOnClose bool          `yaml:"power_down_on_close"`
}

// SweepConfig describes the frequency sweep.
type SweepConfig struct {
	StartFrequency     int `yaml:"start_frequency"`     // Hz
	FrequencyIncrement int `yaml:"frequency_increment"` // Hz
	Increments         int `yaml:"increments"`          // 0..511
}

// SettlingConfig contains settling cycles applied after each frequency change.
type SettlingConfig struct {
	Cycles     int `yaml:"cycles"`
	Multiplier int `yaml:"multiplier"` // 1, 2 or 4
}

// CalibrationConfig contains the reference impedance and the stored calibration.
type CalibrationConfig struct {
	ReferenceImpedance float64            `yaml:"reference_impedance"` // Ω
	ReferencePhase     float64            `yaml:"reference_phase"`     // radians
	MaxSpan            int                `yaml:"max_span"`            // Hz between anchors, -1 = unbounded
	Averages           int                `yaml:"averages"`            // repeated acquisitions per point
	Points             []CalibrationPoint `yaml:"points"`
}

// CalibrationPoint represents a single calibration anchor.
type CalibrationPoint struct {
	Frequency   int     `yaml:"frequency"`
	GainFactor  float64 `yaml:"gain_factor"`
	PhaseOffset float64 `yaml:"phase_offset"`
}

// ConcentrationConfig is the response curve mapping impedance change in
// percent to concentration: c0 + c1·x + c2·x² + …
type ConcentrationConfig struct {
	Coefficients []float64 `yaml:"coefficients"`
	MinDelta     float64   `yaml:"min_delta"`
	MaxDelta     float64   `yaml:"max_delta"`
	Unit         string    `yaml:"unit"`
}

// MonitorConfig contains parameters of repeated sweeps against a baseline.
type MonitorConfig struct {
	Frequency int           `yaml:"frequency"` // Hz the concentration is derived at
	History   int           `yaml:"history"`   // updates kept
	Interval  time.Duration `yaml:"interval"`  // pause between sweeps
}

// SimConfig contains simulated device configuration.
type SimConfig struct {
	LoadOhms    float64 `yaml:"load_ohms"`
	GainFactor  float64 `yaml:"gain_factor"`
	GainDrift   float64 `yaml:"gain_drift"`   // relative gain change per Hz
	SystemPhase float64 `yaml:"system_phase"` // radians
	Latency     int     `yaml:"latency"`      // status reads before data is valid
	Temperature float64 `yaml:"temperature"`  // °C
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Kind:     BusSerial,
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Device: DeviceConfig{
			ClockSource:     "internal",
			RangeMillivolts: 2000,
			Gain:            1,
			PollRetries:     100,
			PollInterval:    time.Millisecond,
		},
		Sweep: SweepConfig{
			StartFrequency:     30000,
			FrequencyIncrement: 1000,
			Increments:         10,
		},
		Settling: SettlingConfig{
			Cycles:     15,
			Multiplier: 1,
		},
		Calibration: CalibrationConfig{
			ReferenceImpedance: 10000,
			MaxSpan:            10000,
			Averages:           1,
		},
		Concentration: ConcentrationConfig{
			Coefficients: []float64{0, -4.5},
			MinDelta:     -20,
			MaxDelta:     0,
			Unit:         "mg/dL",
		},
		Monitor: MonitorConfig{
			Frequency: 30000,
			History:   100,
			Interval:  time.Second,
		},
		Sim: SimConfig{
			LoadOhms:    10000,
			GainFactor:  1e-8,
			GainDrift:   1e-6,
			SystemPhase: 0.1,
			Temperature: 25,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Bus.Kind == "" {
		c.Bus.Kind = def.Bus.Kind
	}
	if c.Bus.Port == "" {
		c.Bus.Port = def.Bus.Port
	}
	if c.Bus.BaudRate == 0 {
		c.Bus.BaudRate = def.Bus.BaudRate
	}

	if c.Device.ClockSource == "" {
		c.Device.ClockSource = def.Device.ClockSource
	}
	if c.Device.RangeMillivolts == 0 {
		c.Device.RangeMillivolts = def.Device.RangeMillivolts
	}
	if c.Device.Gain == 0 {
		c.Device.Gain = def.Device.Gain
	}
	if c.Device.PollRetries == 0 {
		c.Device.PollRetries = def.Device.PollRetries
	}

	if c.Sweep.StartFrequency == 0 {
		c.Sweep = def.Sweep
	}

	if c.Settling.Multiplier == 0 {
		c.Settling.Multiplier = def.Settling.Multiplier
	}

	if c.Calibration.ReferenceImpedance == 0 {
		c.Calibration.ReferenceImpedance = def.Calibration.ReferenceImpedance
	}
	if c.Calibration.MaxSpan == 0 {
		c.Calibration.MaxSpan = def.Calibration.MaxSpan
	}
	if c.Calibration.Averages == 0 {
		c.Calibration.Averages = def.Calibration.Averages
	}

	if len(c.Concentration.Coefficients) == 0 {
		c.Concentration = def.Concentration
	}

	if c.Monitor.Frequency == 0 {
		c.Monitor.Frequency = def.Monitor.Frequency
	}
	if c.Monitor.History == 0 {
		c.Monitor.History = def.Monitor.History
	}

	if c.Sim.LoadOhms == 0 {
		c.Sim.LoadOhms = def.Sim.LoadOhms
	}
	if c.Sim.GainFactor == 0 {
		c.Sim.GainFactor = def.Sim.GainFactor
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
