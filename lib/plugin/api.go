// Package plugin provides the API a plugin process uses to talk to its host.
//
// This file contains the API type, its construction and the write path.
// The handshake gate, request correlation and inbound dispatch live in
// gate.go, correlation.go and dispatcher.go.
package plugin

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/event"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// API is the plugin side of one host connection. Run must be called to
// process inbound messages; the operations may be called from any goroutine.
type API struct {
	channel channel.Channel
	options *Options
	events  *event.Handler
	logger  *slog.Logger
	session uuid.UUID

	writeMu sync.Mutex

	// handshake
	initMu      sync.Mutex
	initialized chan struct{}
	information protocol.PluginInformation
	dataPath    string

	// correlation
	callSem chan struct{}
	slotMu  sync.Mutex
	slot    *correlationSlot

	// stop
	stopRequested atomic.Bool
	stopped       chan struct{}
}

// New creates an API over ch. A nil ch is accepted; every send then fails
// with ErrChannelNotReady.
func New(ch channel.Channel, opts *Options) *API {
	opts = opts.withDefaults()
	session := uuid.Must(uuid.NewV7())

	return &API{
		channel:     ch,
		options:     opts,
		events:      opts.Events,
		logger:      opts.Logger.With(slog.String("session", session.String())),
		session:     session,
		initialized: make(chan struct{}),
		callSem:     make(chan struct{}, 1),
		stopped:     make(chan struct{}),
	}
}

// Events returns the handler host requests are posted to.
func (a *API) Events() *event.Handler {
	return a.events
}

// Session identifies this API instance in logs.
func (a *API) Session() uuid.UUID {
	return a.session
}

// StopRequested reports whether the host asked the plugin to stop.
func (a *API) StopRequested() bool {
	return a.stopRequested.Load()
}

// Stopped is closed when the host asks the plugin to stop.
func (a *API) Stopped() <-chan struct{} {
	return a.stopped
}

// send encodes m and writes it as one channel message. Oversize messages are
// rejected before the transport is touched.
func (a *API) send(ctx context.Context, m protocol.ToHost) error {
	if a.channel == nil {
		return ErrChannelNotReady
	}

	data, err := protocol.EncodeToHost(m, a.channel.MaxMessageSize())
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if err := a.channel.Send(ctx, data); err != nil {
		return err
	}
	a.logger.Debug("Sent message", "tag", m.Tag(), "bytes", len(data))
	return nil
}

// Close closes the underlying channel.
func (a *API) Close() error {
	if a.channel == nil {
		return nil
	}
	return a.channel.Close()
}
