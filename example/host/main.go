// host is a development host. It launches the plugins listed in its YAML
// configuration, serves their requests from a SQLite store and stops them
// on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/snowmerak/hubplug/lib/hoststore"
	"github.com/snowmerak/hubplug/lib/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "host: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, duration, err := parseConfig(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}).With("component", "host")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, duration)
		defer cancelTimeout()
	}

	store, err := hoststore.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	h := newHub(cfg, store, logger)
	if err := h.seed(ctx); err != nil {
		return err
	}

	names := make([]string, 0, len(cfg.Plugins))
	for name, p := range cfg.Plugins {
		if p.Enabled {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var launchErr error
	for _, name := range names {
		if launchErr = h.launch(ctx, name, cfg.Plugins[name]); launchErr != nil {
			break
		}
	}

	if launchErr == nil {
		logger.Info("Host running", "plugins", names)
		<-ctx.Done()
		logger.Info("Shutting down")
	}

	// the run context is done, give the plugins their own budget to stop
	closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Stop+5*time.Second)
	defer closeCancel()
	return errors.Join(launchErr, h.close(closeCtx))
}

// parseConfig loads the configuration file and applies the command line
// overrides. Flags win over the file.
func parseConfig(args []string) (Config, time.Duration, error) {
	var (
		configPath string
		duration   time.Duration
		override   Config
	)

	flagSet := pflag.NewFlagSet("host", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flagSet.StringVar(&override.Store, "store", "", "SQLite database path")
	flagSet.StringVar(&override.DataDir, "data-dir", "", "directory holding the plugins' data paths")
	flagSet.StringVar(&override.Log.Level, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	flagSet.StringVar(&override.Log.Format, "log-format", "", "text or json")
	flagSet.StringVar(&override.Trace.Dir, "trace-dir", "", "record every plugin's frames in this directory")
	flagSet.StringVar(&override.Trace.Compression, "trace-compression", "", "none, lz4 or zstd")
	flagSet.DurationVar(&duration, "duration", 0, "stop the plugins after this long (0 runs until interrupted)")
	if err := flagSet.Parse(args); err != nil {
		return Config{}, 0, err
	}

	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = LoadConfig(configPath); err != nil {
			return Config{}, 0, err
		}
	}

	if flagSet.Changed("store") {
		cfg.Store = override.Store
	}
	if flagSet.Changed("data-dir") {
		cfg.DataDir = override.DataDir
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = override.Log.Level
	}
	if flagSet.Changed("log-format") {
		cfg.Log.Format = override.Log.Format
	}
	if flagSet.Changed("trace-dir") {
		cfg.Trace.Dir = override.Trace.Dir
	}
	if flagSet.Changed("trace-compression") {
		cfg.Trace.Compression = override.Trace.Compression
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, 0, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, duration, nil
}
