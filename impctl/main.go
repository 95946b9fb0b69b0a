// Command impctl drives an AD5933 impedance analyzer: calibration, sweeps,
// settling scans and concentration monitoring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/itohio/goimp/pkg/config"
)

func main() {
	var (
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		portFlag      = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		mockFlag      = flag.Bool("mock", false, "Use simulated device instead of serial port")
		logLevelFlag  = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
		degreesFlag   = flag.Bool("degrees", false, "Print phase in degrees")
		maxPointsFlag = flag.Int("max-points", 0, "Maximum number of sweep points printed (0 = all)")
		saveFlag      = flag.Bool("save", false, "Store calibration in the configuration file")
	)
	flag.Usage = usage
	flag.Parse()

	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logger.Error("failed to load configuration", slog.String("path", *configFlag), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *portFlag != "" {
		cfg.Bus.Port = *portFlag
	}
	if *mockFlag {
		cfg.Bus.Kind = config.BusSim
	}
	if *logLevelFlag != "" {
		cfg.Log.Level = *logLevelFlag
	}
	if err := logLevel.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		logger.Error("invalid log level", slog.String("level", cfg.Log.Level))
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(cfg, logger, os.Stdin, os.Stdout)
	a.configPath = *configFlag
	a.degrees = *degreesFlag
	a.maxPoints = *maxPointsFlag
	a.save = *saveFlag

	err = a.run(ctx, flag.Args())
	if cerr := a.Close(); cerr != nil {
		logger.Error("failed to close device", slog.String("error", cerr.Error()))
	}
	if err != nil {
		logger.Error(err.Error())
		cancel()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <command> [args]\n\nCommands:\n", os.Args[0])
	printCommands(flag.CommandLine.Output())
	fmt.Fprintf(flag.CommandLine.Output(), "\nFlags:\n")
	flag.PrintDefaults()
}
