package plugin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/event"
	"github.com/snowmerak/hubplug/lib/protocol"
)

func encodeToPlugin(t *testing.T, m protocol.ToPlugin) []byte {
	t.Helper()
	b, err := protocol.EncodeToPlugin(m, 0)
	require.NoError(t, err)
	return b
}

func TestDispatcher_RejectsTrafficBeforeInit(t *testing.T) {
	a, _ := newTestAPI(t, 0)
	ctx := context.Background()

	tests := []protocol.ToPlugin{
		protocol.DeviceCommand{Device: "thermo1", Keyword: "switch", Body: "1"},
		protocol.Stop{},
		protocol.DeviceExistsAnswer{Exists: true},
	}
	for _, m := range tests {
		err := a.OnReceive(ctx, encodeToPlugin(t, m))
		assert.ErrorIs(t, err, ErrUnexpectedBeforeInit, string(m.Tag()))
	}

	assert.False(t, a.Initialized())
	assert.False(t, a.StopRequested())
	assert.Zero(t, a.Events().Len())

	_, err := a.Information()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = a.DataPath()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDispatcher_InitReleasesAllWaiters(t *testing.T) {
	a, _ := newTestAPI(t, 0)

	const waiters = 5
	var wg sync.WaitGroup
	infos := make([]protocol.PluginInformation, waiters)
	errs := make([]error, waiters)
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if errs[i] = a.WaitInitialized(ctx); errs[i] == nil {
				infos[i], errs[i] = a.Information()
			}
		}()
	}

	info := protocol.PluginInformation{Type: "fakesensor", Version: "2.0.0", ReleaseType: protocol.ReleaseBeta}
	require.NoError(t, a.OnReceive(context.Background(), encodeToPlugin(t, protocol.Init{Information: info, DataPath: "/data"})))
	wg.Wait()

	for i := range waiters {
		require.NoError(t, errs[i])
		assert.Equal(t, info, infos[i])
	}

	dataPath, err := a.DataPath()
	require.NoError(t, err)
	assert.Equal(t, "/data", dataPath)
}

func TestDispatcher_DuplicateInitIsRejected(t *testing.T) {
	a, _ := newTestAPI(t, 0)
	ctx := context.Background()

	first := protocol.Init{Information: protocol.PluginInformation{Type: "a", Version: "1"}, DataPath: "/first"}
	second := protocol.Init{Information: protocol.PluginInformation{Type: "b", Version: "2"}, DataPath: "/second"}

	require.NoError(t, a.OnReceive(ctx, encodeToPlugin(t, first)))
	assert.ErrorIs(t, a.OnReceive(ctx, encodeToPlugin(t, second)), ErrDuplicateInit)

	info, err := a.Information()
	require.NoError(t, err)
	assert.Equal(t, "a", info.Type)
	dataPath, _ := a.DataPath()
	assert.Equal(t, "/first", dataPath)
}

func TestDispatcher_ProtocolErrors(t *testing.T) {
	a, _ := newTestAPI(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, a.OnReceive(ctx, nil), channel.ErrEmptyMessage)
	assert.ErrorIs(t, a.OnReceive(ctx, []byte{0xff, 0x01}), protocol.ErrMalformedMessage)

	unknown := protowire.AppendBytes(protowire.AppendTag(nil, 77, protowire.BytesType), nil)
	assert.ErrorIs(t, a.OnReceive(ctx, unknown), ErrUnknownMessageType)
	assert.False(t, a.Initialized())
}

func TestDispatcher_UnsolicitedAnswer(t *testing.T) {
	a, _ := newTestAPI(t, 0)
	ctx := context.Background()
	require.NoError(t, a.OnReceive(ctx, encodeToPlugin(t, initMessage())))

	err := a.OnReceive(ctx, encodeToPlugin(t, protocol.DeviceExistsAnswer{Exists: true}))
	assert.ErrorIs(t, err, ErrUnsolicitedAnswer)
	assert.Zero(t, a.Events().Len())
}

func TestDispatcher_PostsHostRequests(t *testing.T) {
	a, _ := newTestAPI(t, 0)
	ctx := context.Background()
	require.NoError(t, a.OnReceive(ctx, encodeToPlugin(t, initMessage())))

	messages := []protocol.ToPlugin{
		protocol.UpdateConfiguration{Configuration: `{"period":5}`},
		protocol.DeviceCommand{Device: "thermo1", Keyword: "relay", Body: "on"},
		protocol.ExtraCommand{Command: "simulate", Data: `{"count":2}`},
		protocol.BindingQuery{Query: `{"query":"models"}`},
		protocol.ManuallyDeviceCreation{Name: "garage", Configuration: `{"model":"TH-1"}`},
	}
	for _, m := range messages {
		require.NoError(t, a.OnReceive(ctx, encodeToPlugin(t, m)), string(m.Tag()))
	}

	next := func() event.Event {
		ev, err := a.Events().Wait(ctx, time.Second)
		require.NoError(t, err)
		return ev
	}

	ev := next()
	require.Equal(t, event.UpdateConfiguration, ev.ID)
	configuration, err := event.DataAs[*datacontainer.Container](ev)
	require.NoError(t, err)
	period, err := configuration.Int("period")
	require.NoError(t, err)
	assert.Equal(t, int64(5), period)

	ev = next()
	require.Equal(t, event.DeviceCommand, ev.ID)
	command, err := event.DataAs[*DeviceCommand](ev)
	require.NoError(t, err)
	assert.Equal(t, &DeviceCommand{Device: "thermo1", Keyword: "relay", Body: "on"}, command)

	ev = next()
	require.Equal(t, event.ExtraCommand, ev.ID)
	extra, err := event.DataAs[*ExtraCommand](ev)
	require.NoError(t, err)
	assert.Equal(t, "simulate", extra.Command)
	assert.Equal(t, `{"count":2}`, extra.Data.Serialize())

	ev = next()
	require.Equal(t, event.BindingQuery, ev.ID)
	query, err := event.DataAs[*BindingQueryRequest](ev)
	require.NoError(t, err)
	assert.Equal(t, "models", query.Query.StringOr("query", ""))

	ev = next()
	require.Equal(t, event.ManuallyDeviceCreation, ev.ID)
	creation, err := event.DataAs[*ManuallyDeviceCreationRequest](ev)
	require.NoError(t, err)
	assert.Equal(t, "garage", creation.DeviceName)
	assert.NotEqual(t, query.ID, creation.ID)
}

func TestDispatcher_BadContainerIsReported(t *testing.T) {
	a, _ := newTestAPI(t, 0)
	ctx := context.Background()
	require.NoError(t, a.OnReceive(ctx, encodeToPlugin(t, initMessage())))

	err := a.OnReceive(ctx, encodeToPlugin(t, protocol.UpdateConfiguration{Configuration: "{broken"}))
	assert.Error(t, err)
	assert.Zero(t, a.Events().Len())
}

func TestRun_StopEndsLoopOnce(t *testing.T) {
	a, host := newTestAPI(t, 0)
	done := run(t, a)

	host.init()
	host.send(protocol.Stop{})
	host.send(protocol.Stop{})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop did not stop")
	}
	assert.True(t, a.StopRequested())

	// a repeated stop after the loop ended is still a no-op
	require.NoError(t, a.OnReceive(context.Background(), encodeToPlugin(t, protocol.Stop{})))

	var stops int
	for {
		ev, ok := a.Events().TryNext()
		if !ok {
			break
		}
		if ev.ID == event.StopRequested {
			stops++
		}
	}
	assert.Equal(t, 1, stops)

	select {
	case <-a.Stopped():
	default:
		t.Fatal("stopped channel not closed")
	}
}

func TestRun_UnknownMessageDoesNotStopLoop(t *testing.T) {
	a, host := newTestAPI(t, 0)
	done := run(t, a)

	host.init()
	host.sendRaw(protowire.AppendBytes(protowire.AppendTag(nil, 99, protowire.BytesType), nil))
	host.sendRaw([]byte{})
	host.send(protocol.DeviceCommand{Device: "thermo1", Keyword: "relay", Body: "1"})

	ev, err := a.Events().Wait(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, event.DeviceCommand, ev.ID)

	host.send(protocol.Stop{})
	require.NoError(t, <-done)
}

func TestRun_ContextCancel(t *testing.T) {
	a, _ := newTestAPI(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop ignored cancellation")
	}
}

func TestRun_NilChannel(t *testing.T) {
	a := New(nil, nil)
	assert.ErrorIs(t, a.Run(context.Background()), ErrChannelNotReady)
}
