package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/event"
	"github.com/snowmerak/hubplug/lib/historization"
	"github.com/snowmerak/hubplug/lib/host"
	"github.com/snowmerak/hubplug/lib/logging"
	"github.com/snowmerak/hubplug/lib/plugin"
	"github.com/snowmerak/hubplug/lib/protocol"
)

type session struct {
	host      *host.Host
	api       *plugin.API
	backend   *host.MemoryBackend
	pluginEnd *channel.MemoryChannel
	runDone   chan error
}

// connect wires a Host and a plugin API over a memory pipe and completes the handshake.
func connect(t *testing.T, hostOpts *host.Options) *session {
	t.Helper()

	hostEnd, pluginEnd := channel.Pipe(16, 8192)
	backend := host.NewMemoryBackend()

	if hostOpts == nil {
		hostOpts = host.DefaultOptions()
	}
	hostOpts.Logger = logging.Discard()
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
	runDone := make(chan error, 1)
	go func() {
		runDone <- api.Run(ctx)
	}()

	require.NoError(t, h.Init(ctx, protocol.PluginInformation{Type: "fakesensor", Version: "1.0.0"}, t.TempDir()))

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, api.WaitInitialized(waitCtx))

	// wait for one round trip through the receive loop
	_, err := api.DeviceExists(waitCtx, "sensor")
	require.NoError(t, err)

	return &session{host: h, api: api, backend: backend, pluginEnd: pluginEnd, runDone: runDone}
}

func (s *session) nextEvent(t *testing.T) event.Event {
	t.Helper()
	ev, err := s.api.Events().Wait(context.Background(), 2*time.Second)
	require.NoError(t, err)
	return ev
}

func TestHost_ServesPluginRequests(t *testing.T) {
	s := connect(t, nil)
	ctx := context.Background()

	info, err := s.api.Information()
	require.NoError(t, err)
	assert.Equal(t, "fakesensor", info.Type)

	require.NoError(t, s.api.SetPluginState(ctx, protocol.StateRunning, "", nil))

	temp := historization.NewTemperature("temp")
	temp.Set(20.5)
	relay := historization.NewSwitch("relay")
	details := datacontainer.FromStrings(map[string]string{"room": "kitchen"})
	require.NoError(t, s.api.DeclareDeviceKeywords(ctx, "thermo1", "TH-1", []historization.Keyword{temp, relay}, details))
	require.NoError(t, s.api.HistorizeData(ctx, "thermo1", temp))

	// answers come back in order, so everything above has been handled
	exists, err := s.api.DeviceExists(ctx, "thermo1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.api.DeviceExists(ctx, "thermo2")
	require.NoError(t, err)
	assert.False(t, exists)

	has, err := s.api.HasKeyword(ctx, "thermo1", relay)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := s.api.DeviceDetails(ctx, "thermo1")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", got.StringOr("room", ""))

	assert.Equal(t, protocol.StateRunning, s.host.State())
	report, ok := s.backend.State("fakesensor")
	require.True(t, ok)
	assert.Equal(t, protocol.StateRunning, report.State)

	history := s.backend.History("fakesensor", "thermo1", "temp")
	require.Len(t, history, 1)
	assert.Equal(t, "20.5", history[0].Value)
	assert.Len(t, s.backend.Keywords("fakesensor", "thermo1"), 2)
}

func TestHost_Recipients(t *testing.T) {
	s := connect(t, nil)
	ctx := context.Background()

	s.backend.AddRecipient(1, map[string]string{"email": "ada@example.com", "city": "Lyon"})
	s.backend.AddRecipient(2, map[string]string{"email": "bob@example.com", "city": "Paris"})
	s.backend.AddRecipient(3, map[string]string{"city": "Lyon"})

	value, err := s.api.RecipientValue(ctx, 2, "email")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", value)

	ids, err := s.api.FindRecipientsFromField(ctx, "city", "Lyon")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 3}, ids)

	exists, err := s.api.RecipientFieldExists(ctx, "email")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.api.RecipientFieldExists(ctx, "mobile")
	require.NoError(t, err)
	assert.False(t, exists)

	// backend errors still produce an answer
	value, err = s.api.RecipientValue(ctx, 9, "email")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestHost_Configuration(t *testing.T) {
	s := connect(t, nil)
	ctx := context.Background()

	s.backend.SetConfiguration("fakesensor", datacontainer.MustParse(`{"period": 5, "unit": "C"}`))
	configuration, err := s.api.Configuration(ctx)
	require.NoError(t, err)
	period, err := configuration.Int("period")
	require.NoError(t, err)
	assert.Equal(t, int64(5), period)

	update := datacontainer.MustParse(`{"period": 10}`)
	require.NoError(t, s.host.UpdateConfiguration(ctx, update))
	ev := s.nextEvent(t)
	require.Equal(t, event.UpdateConfiguration, ev.ID)
	posted, err := event.DataAs[*datacontainer.Container](ev)
	require.NoError(t, err)
	assert.True(t, update.Equal(posted))
}

func TestHost_Commands(t *testing.T) {
	s := connect(t, nil)
	ctx := context.Background()

	require.NoError(t, s.host.SendDeviceCommand(ctx, "thermo1", "relay", "on"))
	ev := s.nextEvent(t)
	require.Equal(t, event.DeviceCommand, ev.ID)
	command, err := event.DataAs[*plugin.DeviceCommand](ev)
	require.NoError(t, err)
	assert.Equal(t, "on", command.Body)

	require.NoError(t, s.host.SendExtraCommand(ctx, "resync", nil))
	ev = s.nextEvent(t)
	require.Equal(t, event.ExtraCommand, ev.ID)
	extra, err := event.DataAs[*plugin.ExtraCommand](ev)
	require.NoError(t, err)
	assert.Equal(t, "resync", extra.Command)
	assert.True(t, extra.Data.Empty())
}

func TestHost_BindingQuery(t *testing.T) {
	s := connect(t, nil)
	ctx := context.Background()

	go func() {
		for range 2 {
			ev, err := s.api.Events().Wait(ctx, 2*time.Second)
			if err != nil {
				return
			}
			req, err := event.DataAs[*plugin.BindingQueryRequest](ev)
			if err != nil {
				return
			}
			if req.Query.StringOr("query", "") == "ports" {
				result := datacontainer.New()
				result.Set("ports", []string{"/dev/ttyUSB0"})
				req.Answer(ctx, result)
			} else {
				req.Fail(ctx, "unsupported query")
			}
		}
	}()

	result, err := s.host.BindingQuery(ctx, datacontainer.FromStrings(map[string]string{"query": "ports"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ports":["/dev/ttyUSB0"]}`, result.Serialize())

	_, err = s.host.BindingQuery(ctx, datacontainer.FromStrings(map[string]string{"query": "weather"}))
	require.ErrorIs(t, err, host.ErrRequestFailed)
	assert.Contains(t, err.Error(), "unsupported query")
}

func TestHost_ManuallyCreateDevice(t *testing.T) {
	s := connect(t, nil)
	ctx := context.Background()

	go func() {
		for range 2 {
			ev, err := s.api.Events().Wait(ctx, 2*time.Second)
			if err != nil {
				return
			}
			req, err := event.DataAs[*plugin.ManuallyDeviceCreationRequest](ev)
			if err != nil {
				return
			}
			model := req.Configuration.StringOr("model", "")
			if model == "" {
				req.Fail(ctx, "model missing")
				continue
			}
			req.Succeed(ctx, req.DeviceName+"-"+model)
		}
	}()

	name, err := s.host.ManuallyCreateDevice(ctx, "garage", datacontainer.FromStrings(map[string]string{"model": "TH-1"}))
	require.NoError(t, err)
	assert.Equal(t, "garage-TH-1", name)

	_, err = s.host.ManuallyCreateDevice(ctx, "attic", datacontainer.New())
	require.ErrorIs(t, err, host.ErrRequestFailed)
	assert.Contains(t, err.Error(), "model missing")
}

func TestHost_AnswerTimeout(t *testing.T) {
	opts := host.DefaultOptions()
	opts.AnswerTimeout = 50 * time.Millisecond
	s := connect(t, opts)

	// nobody consumes the plugin's events, so nobody answers
	_, err := s.host.BindingQuery(context.Background(), datacontainer.New())
	assert.ErrorIs(t, err, host.ErrAnswerTimeout)
}

func TestHost_Stop(t *testing.T) {
	s := connect(t, nil)
	ctx := context.Background()

	// the plugin hangs up once its receive loop ends
	go func() {
		<-s.api.Stopped()
		s.pluginEnd.Close()
	}()

	require.NoError(t, s.host.Stop(ctx))
	select {
	case <-s.host.Done():
	default:
		t.Fatal("host still serving after stop")
	}
	require.NoError(t, <-s.runDone)
	assert.True(t, s.api.StopRequested())
}

func TestHost_StopTimeout(t *testing.T) {
	opts := host.DefaultOptions()
	opts.StopTimeout = 50 * time.Millisecond
	s := connect(t, opts)

	err := s.host.Stop(context.Background())
	assert.ErrorIs(t, err, host.ErrStopTimeout)
	require.NoError(t, <-s.runDone)
}

func TestHost_AwaitNeedsServe(t *testing.T) {
	hostEnd, pluginEnd := channel.Pipe(4, 0)
	defer hostEnd.Close()
	defer pluginEnd.Close()

	opts := host.DefaultOptions()
	opts.Logger = logging.Discard()
	h := host.New("idle", hostEnd, nil, opts)

	_, err := h.BindingQuery(context.Background(), datacontainer.New())
	assert.ErrorIs(t, err, host.ErrNotServing)
}

func TestHost_StartMarksServing(t *testing.T) {
	hostEnd, pluginEnd := channel.Pipe(4, 0)
	defer hostEnd.Close()

	opts := host.DefaultOptions()
	opts.Logger = logging.Discard()
	opts.StopTimeout = 50 * time.Millisecond
	h := host.New("idle", hostEnd, nil, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served, err := h.Start(ctx)
	require.NoError(t, err)

	// no hang-up from the plugin, Stop must wait instead of returning early
	assert.ErrorIs(t, h.Stop(ctx), host.ErrStopTimeout)

	_, err = h.Start(ctx)
	assert.ErrorIs(t, err, host.ErrAlreadyServing)
	assert.ErrorIs(t, h.Serve(ctx), host.ErrAlreadyServing)

	pluginEnd.Close()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop still running after hang-up")
	}
}

func TestHost_PluginHangUpReleasesWaiter(t *testing.T) {
	s := connect(t, nil)

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.pluginEnd.Close()
	}()

	_, err := s.host.ManuallyCreateDevice(context.Background(), "garage", datacontainer.New())
	assert.ErrorIs(t, err, channel.ErrClosed)
}
