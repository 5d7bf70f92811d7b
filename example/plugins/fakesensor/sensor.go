package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/event"
	"github.com/snowmerak/hubplug/lib/historization"
	"github.com/snowmerak/hubplug/lib/plugin"
	"github.com/snowmerak/hubplug/lib/protocol"
)

const (
	defaultDevice = "thermo1"
	defaultModel  = "TH-1"
	defaultPeriod = 5 * time.Second
)

var models = []string{"TH-1", "TH-2 outdoor"}

// Sensor simulates a temperature and humidity sensor with a relay.
type Sensor struct {
	api    *plugin.API
	logger *slog.Logger

	device      string
	model       string
	period      time.Duration
	fingerprint string

	temperature *historization.Numeric
	humidity    *historization.Numeric
	relay       *historization.Switch
}

func NewSensor(api *plugin.API, logger *slog.Logger) *Sensor {
	return &Sensor{
		api:         api,
		logger:      logger,
		device:      defaultDevice,
		model:       defaultModel,
		period:      defaultPeriod,
		temperature: historization.NewTemperature("temperature").WithRange(-40, 85),
		humidity:    historization.NewHumidity("humidity"),
		relay:       historization.NewSwitch("relay"),
	}
}

func (s *Sensor) keywords() []historization.Keyword {
	return []historization.Keyword{s.temperature, s.humidity, s.relay}
}

// Start waits for the host's Init, applies the stored configuration and
// declares the device when the host does not know it yet.
func (s *Sensor) Start(ctx context.Context) error {
	if err := s.api.WaitInitialized(ctx); err != nil {
		return err
	}
	info, err := s.api.Information()
	if err != nil {
		return err
	}
	s.logger.Info("Initialized", "type", info.Type, "version", info.Version)

	configuration, err := s.api.Configuration(ctx)
	if err != nil {
		return err
	}
	s.apply(configuration)

	if err := s.declare(ctx, s.device, s.model); err != nil {
		return err
	}

	s.temperature.Set(20 + rand.Float64()*2)
	s.humidity.Set(45 + rand.Float64()*10)
	return s.api.SetPluginState(ctx, protocol.StateRunning, "", nil)
}

func (s *Sensor) declare(ctx context.Context, device, model string) error {
	exists, err := s.api.DeviceExists(ctx, device)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	details := datacontainer.FromStrings(map[string]string{"simulated": "true"})
	return s.api.DeclareDeviceKeywords(ctx, device, model, s.keywords(), details)
}

// apply reads the configuration keys the sensor understands. It reports
// whether the configuration changed since the last call.
func (s *Sensor) apply(configuration *datacontainer.Container) bool {
	fingerprint := configuration.Fingerprint()
	if fingerprint == s.fingerprint {
		return false
	}
	s.fingerprint = fingerprint

	s.device = configuration.StringOr("device", defaultDevice)
	s.model = configuration.StringOr("model", defaultModel)
	s.period = defaultPeriod
	if seconds, err := configuration.Float("period"); err == nil && seconds > 0 {
		s.period = time.Duration(seconds * float64(time.Second))
	}
	s.logger.Info("Configuration applied", "device", s.device, "period", s.period)
	return true
}

// Loop historizes a sample every period and serves host requests until the
// host asks the plugin to stop.
func (s *Sensor) Loop(ctx context.Context) error {
	next := time.Now().Add(s.period)
	for {
		// Wait treats a non-positive timeout as no limit
		wait := max(time.Until(next), time.Millisecond)
		ev, err := s.api.Events().Wait(ctx, wait)
		if errors.Is(err, event.ErrTimeout) {
			if err := s.sample(ctx); err != nil {
				s.logger.Warn("Failed to historize sample", "error", err)
			}
			next = time.Now().Add(s.period)
			continue
		}
		if err != nil {
			return err
		}

		if ev.ID == event.StopRequested {
			s.logger.Info("Stop requested")
			return nil
		}
		if err := s.handle(ctx, ev); err != nil {
			s.logger.Warn("Failed to handle host request", "event", ev.ID.String(), "error", err)
		}
	}
}

func (s *Sensor) sample(ctx context.Context) error {
	s.temperature.Set(s.temperature.Get() + rand.NormFloat64()*0.2)
	s.humidity.Set(s.humidity.Get() + rand.NormFloat64()*0.5)
	return s.api.HistorizeDataBatch(ctx, s.device, []historization.Keyword{s.temperature, s.humidity})
}

func (s *Sensor) handle(ctx context.Context, ev event.Event) error {
	switch ev.ID {
	case event.UpdateConfiguration:
		configuration, err := event.DataAs[*datacontainer.Container](ev)
		if err != nil {
			return err
		}
		if s.apply(configuration) {
			return s.declare(ctx, s.device, s.model)
		}
		return nil

	case event.DeviceCommand:
		command, err := event.DataAs[*plugin.DeviceCommand](ev)
		if err != nil {
			return err
		}
		return s.command(ctx, command)

	case event.ExtraCommand:
		command, err := event.DataAs[*plugin.ExtraCommand](ev)
		if err != nil {
			return err
		}
		if command.Command != "resync" {
			return fmt.Errorf("unknown extra command %q", command.Command)
		}
		return s.sample(ctx)

	case event.BindingQuery:
		request, err := event.DataAs[*plugin.BindingQueryRequest](ev)
		if err != nil {
			return err
		}
		if request.Query.StringOr("query", "") != "models" {
			return request.Fail(ctx, "unsupported query")
		}
		result := datacontainer.New()
		if err := result.Set("models", models); err != nil {
			return err
		}
		return request.Answer(ctx, result)

	case event.ManuallyDeviceCreation:
		request, err := event.DataAs[*plugin.ManuallyDeviceCreationRequest](ev)
		if err != nil {
			return err
		}
		model := request.Configuration.StringOr("model", "")
		if model == "" {
			return request.Fail(ctx, "model missing")
		}
		if err := s.declare(ctx, request.DeviceName, model); err != nil {
			request.Fail(ctx, err.Error())
			return err
		}
		return request.Succeed(ctx, request.DeviceName)
	}
	return fmt.Errorf("unexpected event %s", ev.ID)
}

func (s *Sensor) command(ctx context.Context, command *plugin.DeviceCommand) error {
	if command.Device != s.device {
		return fmt.Errorf("unknown device %q", command.Device)
	}
	if command.Keyword != s.relay.Name() {
		return fmt.Errorf("keyword %q is read only", command.Keyword)
	}
	if err := s.relay.SetCommand(command.Body); err != nil {
		return err
	}
	return s.api.HistorizeData(ctx, s.device, s.relay)
}
