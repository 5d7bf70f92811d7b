package plugin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/logging"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// fakeHost drives the other end of a memory pipe.
type fakeHost struct {
	t  *testing.T
	ch *channel.MemoryChannel
}

func newTestAPI(t *testing.T, timeout time.Duration) (*API, *fakeHost) {
	t.Helper()
	hostEnd, pluginEnd := channel.Pipe(16, 4096)
	t.Cleanup(func() {
		hostEnd.Close()
		pluginEnd.Close()
	})

	opts := DefaultOptions()
	opts.Logger = logging.Discard()
	if timeout > 0 {
		opts.CorrelationTimeout = timeout
	}
	return New(pluginEnd, opts), &fakeHost{t: t, ch: hostEnd}
}

func (h *fakeHost) send(m protocol.ToPlugin) {
	h.t.Helper()
	b, err := protocol.EncodeToPlugin(m, 0)
	require.NoError(h.t, err)
	require.NoError(h.t, h.ch.Send(context.Background(), b))
}

func (h *fakeHost) sendRaw(b []byte) {
	h.t.Helper()
	require.NoError(h.t, h.ch.Send(context.Background(), b))
}

func (h *fakeHost) expect() protocol.ToHost {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b, err := h.ch.Receive(ctx)
	require.NoError(h.t, err)
	m, err := protocol.DecodeToHost(b)
	require.NoError(h.t, err)
	return m
}

func initMessage() protocol.Init {
	return protocol.Init{
		Information: protocol.PluginInformation{Type: "fakesensor", Version: "1.0.0"},
		DataPath:    "/var/lib/hub/fakesensor",
	}
}

func (h *fakeHost) init() {
	h.send(initMessage())
}

// run starts the receive loop and returns its result channel.
func run(t *testing.T, a *API) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()
	return done
}

func waitInitialized(t *testing.T, a *API) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.WaitInitialized(ctx))
}
