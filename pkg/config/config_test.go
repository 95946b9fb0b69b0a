package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, BusSerial, cfg.Bus.Kind)
	assert.Equal(t, "/dev/ttyACM0", cfg.Bus.Port)
	assert.Equal(t, 115200, cfg.Bus.BaudRate)
	assert.Equal(t, "internal", cfg.Device.ClockSource)
	assert.Equal(t, 2000, cfg.Device.RangeMillivolts)
	assert.Equal(t, 1, cfg.Device.Gain)
	assert.Equal(t, 100, cfg.Device.PollRetries)
	assert.Equal(t, time.Millisecond, cfg.Device.PollInterval)
	assert.Equal(t, SweepConfig{StartFrequency: 30000, FrequencyIncrement: 1000, Increments: 10}, cfg.Sweep)
	assert.Equal(t, SettlingConfig{Cycles: 15, Multiplier: 1}, cfg.Settling)
	assert.Equal(t, float64(10000), cfg.Calibration.ReferenceImpedance)
	assert.Equal(t, 10000, cfg.Calibration.MaxSpan)
	assert.Empty(t, cfg.Calibration.Points)
	assert.Equal(t, []float64{0, -4.5}, cfg.Concentration.Coefficients)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Bus.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
bus:
  kind: sim
  port: "COM3"
  baud_rate: 57600
  block: true

device:
  clock_source: external
  external_clock: 8000000
  range_mv: 200
  gain: 5
  poll_retries: 20
  poll_interval: 5ms
  power_down_on_close: true

sweep:
  start_frequency: 5000
  frequency_increment: 500
  increments: 100

settling:
  cycles: 200
  multiplier: 4

calibration:
  reference_impedance: 4700
  max_span: 10000
  points:
    - frequency: 5000
      gain_factor: 1.2e-8
      phase_offset: 0.1
    - frequency: 55000
      gain_factor: 1.4e-8
      phase_offset: 0.2

concentration:
  coefficients: [10, 2, 0.5]
  min_delta: 0
  max_delta: 25
  unit: mmol/L

monitor:
  frequency: 10000
  interval: 2s
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, BusConfig{Kind: BusSim, Port: "COM3", BaudRate: 57600, Block: true}, cfg.Bus)
	assert.Equal(t, "external", cfg.Device.ClockSource)
	assert.Equal(t, 8000000, cfg.Device.ExternalClock)
	assert.Equal(t, 200, cfg.Device.RangeMillivolts)
	assert.Equal(t, 5, cfg.Device.Gain)
	assert.Equal(t, 20, cfg.Device.PollRetries)
	assert.Equal(t, 5*time.Millisecond, cfg.Device.PollInterval)
	assert.True(t, cfg.Device.PowerDownOnClose)
	assert.Equal(t, SweepConfig{StartFrequency: 5000, FrequencyIncrement: 500, Increments: 100}, cfg.Sweep)
	assert.Equal(t, SettlingConfig{Cycles: 200, Multiplier: 4}, cfg.Settling)
	assert.Equal(t, float64(4700), cfg.Calibration.ReferenceImpedance)
	assert.Equal(t, 10000, cfg.Calibration.MaxSpan)
	require.Len(t, cfg.Calibration.Points, 2)
	assert.Equal(t, CalibrationPoint{Frequency: 55000, GainFactor: 1.4e-8, PhaseOffset: 0.2}, cfg.Calibration.Points[1])
	assert.Equal(t, []float64{10, 2, 0.5}, cfg.Concentration.Coefficients)
	assert.Equal(t, "mmol/L", cfg.Concentration.Unit)
	assert.Equal(t, 10000, cfg.Monitor.Frequency)
	assert.Equal(t, 100, cfg.Monitor.History) // default
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
bus:
  port: "/dev/ttyUSB1"
sweep:
  start_frequency: 0
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyUSB1", cfg.Bus.Port)
	assert.Equal(t, BusSerial, cfg.Bus.Kind)
	assert.Equal(t, 115200, cfg.Bus.BaudRate)
	assert.Equal(t, 30000, cfg.Sweep.StartFrequency)
	assert.Equal(t, 1, cfg.Settling.Multiplier)
	assert.Equal(t, 10000, cfg.Calibration.MaxSpan)
	assert.Equal(t, "mg/dL", cfg.Concentration.Unit)
}

func TestLoad_UnboundedSpan(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("calibration:\n  max_span: -1\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Calibration.MaxSpan)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Bus.Port = "/dev/ttyUSB0"
	cfg.Calibration.Points = []CalibrationPoint{
		{Frequency: 30000, GainFactor: 1.1e-8, PhaseOffset: -0.25},
		{Frequency: 40000, GainFactor: 1.3e-8, PhaseOffset: -0.2},
	}

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Bus.Port)
	assert.Equal(t, cfg.Calibration.Points, loaded.Calibration.Points)
}
