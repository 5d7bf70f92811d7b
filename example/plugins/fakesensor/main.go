// fakesensor is a reference plugin. It simulates a temperature and humidity
// sensor with a relay, historizes samples periodically and answers the host's
// commands, binding queries and manual device creations.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/logging"
	"github.com/snowmerak/hubplug/lib/plugin"
	"github.com/snowmerak/hubplug/lib/trace"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fakesensor: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	transport := plugin.DefaultTransportOptions()
	var (
		transportType string
		logLevel      string
		tracePath     string
	)

	flagSet := pflag.NewFlagSet("fakesensor", pflag.ContinueOnError)
	flagSet.StringVar(&transportType, "transport", string(plugin.TransportStdio), "transport to the host: stdio or unix")
	flagSet.StringVar(&transport.SocketPath, "socket", "", "unix socket the host listens on")
	flagSet.IntVar(&transport.Stream.MaxMessageSize, "max-message-size", channel.DefaultMaxMessageSize, "largest message in bytes")
	flagSet.StringVar(&logLevel, "log-level", "INFO", "DEBUG, INFO, WARN or ERROR")
	flagSet.StringVar(&tracePath, "trace", "", "record the frames exchanged with the host to this file")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	transport.Type = plugin.TransportType(transportType)

	// stdout may be the transport, logs always go to stderr
	logger := logging.Setup(logging.Options{Level: logLevel, Output: os.Stderr}).With("component", "fakesensor")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ch, err := plugin.Connect(ctx, transport)
	if err != nil {
		return fmt.Errorf("connect to host: %w", err)
	}

	if tracePath != "" {
		opts := trace.DefaultOptions()
		opts.Side = trace.SidePlugin
		opts.Name = "fakesensor"
		recorder, err := trace.Create(tracePath, opts)
		if err != nil {
			ch.Close()
			return err
		}
		defer recorder.Close()
		ch = trace.Wrap(ch, recorder)
	}

	api := plugin.New(ch, nil)
	// the host waits for the hang up after Stop
	defer api.Close()

	runErr := make(chan error, 1)
	go func() {
		runErr <- api.Run(ctx)
	}()

	sensor := NewSensor(api, logger)
	if err := sensor.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	loopErr := sensor.Loop(ctx)
	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return loopErr
}
