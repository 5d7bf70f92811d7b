package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/host"
	"github.com/snowmerak/hubplug/lib/logging"
	"github.com/snowmerak/hubplug/lib/plugin"
	"github.com/snowmerak/hubplug/lib/protocol"
)

type harness struct {
	host      *host.Host
	backend   *host.MemoryBackend
	pluginEnd *channel.MemoryChannel
	loopDone  chan error
}

func start(t *testing.T) *harness {
	t.Helper()

	hostEnd, pluginEnd := channel.Pipe(32, 8192)
	backend := host.NewMemoryBackend()
	backend.SetConfiguration("fakesensor", datacontainer.MustParse(`{"device": "sensor1", "period": 0.02}`))

	hostOpts := host.DefaultOptions()
	hostOpts.Logger = logging.Discard()
	hostOpts.AnswerTimeout = 2 * time.Second
	h := host.New("fakesensor", hostEnd, backend, hostOpts)

	pluginOpts := plugin.DefaultOptions()
	pluginOpts.Logger = logging.Discard()
	pluginOpts.CorrelationTimeout = 2 * time.Second
	api := plugin.New(pluginEnd, pluginOpts)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		hostEnd.Close()
		pluginEnd.Close()
	})

	go h.Serve(ctx)
	go api.Run(ctx)

	require.NoError(t, h.Init(ctx, protocol.PluginInformation{Type: "fakesensor", Version: "1.0.0"}, t.TempDir()))

	sensor := NewSensor(api, logging.Discard())
	startCtx, startCancel := context.WithTimeout(ctx, 2*time.Second)
	defer startCancel()
	require.NoError(t, sensor.Start(startCtx))

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- sensor.Loop(ctx)
	}()

	return &harness{host: h, backend: backend, pluginEnd: pluginEnd, loopDone: loopDone}
}

func TestSensor_DeclaresAndHistorizes(t *testing.T) {
	s := start(t)

	require.Eventually(t, func() bool {
		return s.host.State() == protocol.StateRunning
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, s.backend.Keywords("fakesensor", "sensor1"), 3)

	require.Eventually(t, func() bool {
		return len(s.backend.History("fakesensor", "sensor1", "temperature")) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, s.backend.History("fakesensor", "sensor1", "humidity"))
}

func TestSensor_RelayCommand(t *testing.T) {
	s := start(t)
	ctx := context.Background()

	require.NoError(t, s.host.SendDeviceCommand(ctx, "sensor1", "relay", "on"))
	require.Eventually(t, func() bool {
		history := s.backend.History("fakesensor", "sensor1", "relay")
		return len(history) == 1 && history[0].Value == "1"
	}, 2*time.Second, 10*time.Millisecond)

	// read only keywords and unknown devices are ignored
	require.NoError(t, s.host.SendDeviceCommand(ctx, "sensor1", "temperature", "30"))
	require.NoError(t, s.host.SendDeviceCommand(ctx, "sensor9", "relay", "off"))
	require.NoError(t, s.host.SendDeviceCommand(ctx, "sensor1", "relay", "off"))
	require.Eventually(t, func() bool {
		return len(s.backend.History("fakesensor", "sensor1", "relay")) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSensor_BindingQuery(t *testing.T) {
	s := start(t)
	ctx := context.Background()

	result, err := s.host.BindingQuery(ctx, datacontainer.FromStrings(map[string]string{"query": "models"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"models":["TH-1","TH-2 outdoor"]}`, result.Serialize())

	_, err = s.host.BindingQuery(ctx, datacontainer.FromStrings(map[string]string{"query": "ports"}))
	assert.ErrorIs(t, err, host.ErrRequestFailed)
}

func TestSensor_ManualCreation(t *testing.T) {
	s := start(t)
	ctx := context.Background()

	name, err := s.host.ManuallyCreateDevice(ctx, "garage", datacontainer.FromStrings(map[string]string{"model": "TH-2 outdoor"}))
	require.NoError(t, err)
	assert.Equal(t, "garage", name)
	assert.Len(t, s.backend.Keywords("fakesensor", "garage"), 3)

	_, err = s.host.ManuallyCreateDevice(ctx, "attic", datacontainer.New())
	assert.ErrorIs(t, err, host.ErrRequestFailed)
}

func TestSensor_UpdateConfigurationMovesDevice(t *testing.T) {
	s := start(t)

	require.NoError(t, s.host.UpdateConfiguration(context.Background(), datacontainer.MustParse(`{"device": "sensor2", "period": 0.02}`)))
	require.Eventually(t, func() bool {
		return len(s.backend.History("fakesensor", "sensor2", "temperature")) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSensor_StopEndsLoop(t *testing.T) {
	s := start(t)

	stopErr := make(chan error, 1)
	go func() {
		stopErr <- s.host.Stop(context.Background())
	}()

	select {
	case err := <-s.loopDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop still running after stop")
	}

	// main hangs up once the loop is over
	s.pluginEnd.Close()
	require.NoError(t, <-stopErr)
}
