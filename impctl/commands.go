package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/itohio/goimp/pkg/ad5933"
	"github.com/itohio/goimp/pkg/bus"
	"github.com/itohio/goimp/pkg/calib"
	"github.com/itohio/goimp/pkg/concentration"
	"github.com/itohio/goimp/pkg/impedance"
	"github.com/itohio/goimp/pkg/measure"
	"github.com/itohio/goimp/pkg/monitor"
	"github.com/itohio/goimp/pkg/sample"
)

// errUsage marks errors caused by wrong command arguments.
var errUsage = errors.New("usage")

type command struct {
	name  string
	args  string
	help  string
	shell bool // available inside the shell
	run   func(a *app, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"ports", "", "list serial ports", true, (*app).cmdPorts},
		{"config", "", "print the effective configuration", true, (*app).cmdConfig},
		{"reset", "", "reset the device", true, (*app).cmdReset},
		{"temp", "", "read the die temperature", true, (*app).cmdTemp},
		{"standby", "", "put the device in standby", true, (*app).cmdStandby},
		{"powerdown", "", "power the device down", true, (*app).cmdPowerDown},
		{"calibrate", "[ohms]", "calibrate the sweep against the reference impedance", true, (*app).cmdCalibrate},
		{"sweep", "[start increment increments]", "measure impedance across the sweep", true, (*app).cmdSweep},
		{"settle", "<freq> <start> <step> <count>", "measure impedance at freq for increasing settling times", true, (*app).cmdSettle},
		{"concentration", "<delta%>", "estimate concentration for an impedance change", true, (*app).cmdConcentration},
		{"monitor", "[sweeps]", "track concentration over repeated sweeps (0 = until interrupted)", true, (*app).cmdMonitor},
		{"shell", "", "interactive command shell", false, (*app).cmdShell},
		{"help", "", "list commands", true, (*app).cmdHelp},
	}
}

func printCommands(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s %s\t%s\n", c.name, c.args, c.help)
	}
	tw.Flush()
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// run executes one command line.
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	c, ok := findCommand(args[0])
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if err := c.run(a, ctx, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return fmt.Errorf("%w: %s %s", err, c.name, c.args)
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

// intArgs parses exactly n integer arguments.
func intArgs(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, errUsage
	}
	out := make([]int, n)
	for i, s := range args {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", errUsage, s)
		}
		out[i] = v
	}
	return out, nil
}

func (a *app) cmdPorts(_ context.Context, _ []string) error {
	ports, err := bus.Ports()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tDESCRIPTION")
	for _, p := range ports {
		fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Description)
	}
	return tw.Flush()
}

func (a *app) cmdConfig(_ context.Context, _ []string) error {
	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)
	if err := enc.Encode(a.cfg); err != nil {
		return err
	}
	return enc.Close()
}

func (a *app) cmdReset(_ context.Context, _ []string) error {
	dev, err := a.device()
	if err != nil {
		return err
	}
	return dev.Reset()
}

func (a *app) cmdTemp(_ context.Context, _ []string) error {
	dev, err := a.device()
	if err != nil {
		return err
	}
	t, err := dev.Temperature()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%.2f °C\n", t)
	return nil
}

func (a *app) cmdStandby(_ context.Context, _ []string) error {
	dev, err := a.device()
	if err != nil {
		return err
	}
	return dev.Standby()
}

func (a *app) cmdPowerDown(_ context.Context, _ []string) error {
	dev, err := a.device()
	if err != nil {
		return err
	}
	return dev.PowerDown()
}

func (a *app) cmdCalibrate(ctx context.Context, args []string) error {
	ref := calib.Reference{
		Impedance: a.cfg.Calibration.ReferenceImpedance,
		Phase:     a.cfg.Calibration.ReferencePhase,
	}
	switch len(args) {
	case 0:
	case 1:
		ohms, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", errUsage, args[0])
		}
		ref.Impedance = ohms
	default:
		return errUsage
	}

	dev, err := a.device()
	if err != nil {
		return err
	}
	table, err := measure.CalibrateSweep(ctx, dev, sweepConfig(a.cfg.Sweep), ref, a.measureOptions()...)
	if err != nil {
		return err
	}
	if err := a.storeCalibration(table); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "FREQUENCY\tGAIN FACTOR\tPHASE OFFSET\t")
	for _, p := range table.Anchors() {
		fmt.Fprintf(tw, "%s\t%.6e\t%s\t\n", formatHz(p.Frequency), p.GainFactor, a.formatPhase(p.PhaseOffset))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "reference %s, gain drift %.3e /Hz\n", formatOhms(ref.Impedance), table.GainDrift())
	return nil
}

func (a *app) cmdSweep(ctx context.Context, args []string) error {
	sweep := sweepConfig(a.cfg.Sweep)
	if len(args) > 0 {
		v, err := intArgs(args, 3)
		if err != nil {
			return err
		}
		sweep = ad5933.SweepConfig{StartFrequency: v[0], FrequencyIncrement: v[1], Increments: v[2]}
	}

	table, err := a.calibration()
	if err != nil {
		return err
	}
	dev, err := a.device()
	if err != nil {
		return err
	}
	samples, err := measure.Collect(measure.Sweep(ctx, dev, sweep, table, a.measureOptions()...))
	if err != nil {
		return err
	}
	return a.printSamples(sample.Downsample(nil, samples, a.maxPoints))
}

func (a *app) printSamples(samples []impedance.Sample) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "FREQUENCY\t|Z|\tPHASE\t")
	for _, z := range samples {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", formatHz(z.Frequency), formatOhms(z.Magnitude), a.formatPhase(z.Phase))
	}
	return tw.Flush()
}

func (a *app) cmdSettle(ctx context.Context, args []string) error {
	v, err := intArgs(args, 4)
	if err != nil {
		return err
	}
	table, err := a.calibration()
	if err != nil {
		return err
	}
	dev, err := a.device()
	if err != nil {
		return err
	}
	points, err := measure.SettlingScan(ctx, dev, v[0], v[1], v[2], v[3], table, a.measureOptions()...)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CYCLES\t|Z|\tPHASE\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", p.Settling.Effective(), formatOhms(p.Sample.Magnitude), a.formatPhase(p.Sample.Phase))
	}
	return tw.Flush()
}

func (a *app) cmdConcentration(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	delta, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", errUsage, args[0])
	}
	est, err := a.estimator()
	if err != nil {
		return err
	}
	c, err := est.Estimate(delta)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%.2f %s\n", c, est.Unit())
	return nil
}

func (a *app) cmdMonitor(ctx context.Context, args []string) error {
	count := 0
	if len(args) > 0 {
		v, err := intArgs(args, 1)
		if err != nil {
			return err
		}
		count = v[0]
	}

	est, err := a.estimator()
	if err != nil {
		return err
	}
	table, err := a.calibration()
	if err != nil {
		return err
	}
	dev, err := a.device()
	if err != nil {
		return err
	}

	m := monitor.New(a.cfg, est, monitor.WithLogger(a.logger))
	m.OnUpdate(func(s monitor.Spectrum, readings []monitor.Reading) {
		a.printUpdate(m, est, s, readings)
	})
	m.ProcessSpectra(monitor.Sweeps(ctx, dev, sweepConfig(a.cfg.Sweep), table, a.cfg.Monitor.Interval, count, a.measureOptions()...))

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (a *app) printUpdate(m *monitor.Monitor, est *concentration.Estimator, s monitor.Spectrum, readings []monitor.Reading) {
	ts := s.Timestamp.Format("15:04:05")
	if s.Err != nil {
		fmt.Fprintf(a.out, "%s sweep failed: %v\n", ts, s.Err)
		return
	}
	if len(readings) == 0 || !readings[len(readings)-1].Timestamp.Equal(s.Timestamp) {
		if b, ok := m.Baseline(); ok {
			fmt.Fprintf(a.out, "%s baseline %s at %s\n", ts, formatOhms(b.Magnitude), formatHz(b.Frequency))
		}
		return
	}
	r := readings[len(readings)-1]
	if r.Err != nil {
		fmt.Fprintf(a.out, "%s %s delta %+.2f%%: %v\n", ts, formatOhms(r.Impedance.Magnitude), r.Delta, r.Err)
		return
	}
	fmt.Fprintf(a.out, "%s %s delta %+.2f%% concentration %.2f %s\n", ts, formatOhms(r.Impedance.Magnitude), r.Delta, r.Concentration, est.Unit())
}

func (a *app) cmdHelp(_ context.Context, _ []string) error {
	printCommands(a.out)
	return nil
}
