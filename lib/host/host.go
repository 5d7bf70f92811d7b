// Package host is the host side of the host/plugin protocol.
//
// A Host owns one plugin connection. It sends lifecycle messages and commands
// to the plugin, serves the plugin's requests through registered handlers
// backed by a Backend, and waits for the plugin's answers to binding queries
// and manual device creation.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/logging"
	"github.com/snowmerak/hubplug/lib/protocol"
)

var (
	// ErrNoHandler is reported for a plugin message no handler is registered for.
	ErrNoHandler = errors.New("no handler registered")

	// ErrAnswerTimeout is returned when the plugin does not answer in time.
	ErrAnswerTimeout = errors.New("plugin answer timeout")

	// ErrRequestFailed is returned when the plugin answers a request with an error.
	ErrRequestFailed = errors.New("plugin request failed")

	// ErrStopTimeout is returned by Stop when the plugin keeps the channel open.
	ErrStopTimeout = errors.New("plugin did not stop in time")

	// ErrNotServing is returned by calls that need Serve to be running.
	ErrNotServing = errors.New("host is not serving")

	// ErrAlreadyServing is returned by a second Serve or Start.
	ErrAlreadyServing = errors.New("host is already serving")
)

// Options configures a Host.
type Options struct {
	// AnswerTimeout bounds BindingQuery and ManuallyCreateDevice.
	AnswerTimeout time.Duration
	// HandlerTimeout bounds each handler invocation.
	HandlerTimeout time.Duration
	// StopTimeout bounds how long Stop waits for the plugin to hang up.
	StopTimeout time.Duration

	Logger *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		AnswerTimeout:  30 * time.Second,
		HandlerTimeout: 30 * time.Second,
		StopTimeout:    5 * time.Second,
	}
}

func (o *Options) withDefaults() *Options {
	out := DefaultOptions()
	d := *out
	if o != nil {
		*out = *o
	}
	if out.AnswerTimeout <= 0 {
		out.AnswerTimeout = d.AnswerTimeout
	}
	if out.HandlerTimeout <= 0 {
		out.HandlerTimeout = d.HandlerTimeout
	}
	if out.StopTimeout <= 0 {
		out.StopTimeout = d.StopTimeout
	}
	if out.Logger == nil {
		out.Logger = logging.WithComponent("host")
	}
	return out
}

// pendingAnswer waits for the plugin's answer to one host request.
type pendingAnswer struct {
	tag    protocol.Tag
	answer chan protocol.ToHost
}

// Host manages the connection to a single plugin.
type Host struct {
	Name string

	channel channel.Channel
	backend Backend
	options *Options
	logger  *slog.Logger
	session uuid.UUID

	writeMu sync.Mutex

	handlers     map[protocol.Tag]Handler
	handlerMutex sync.RWMutex

	// host requests awaiting a plugin answer, one at a time
	callMu    sync.Mutex
	pendingMu sync.Mutex
	pending   *pendingAnswer

	state atomic.Int32

	serving atomic.Bool
	done    chan struct{}
	closed  atomic.Bool
}

// New creates a Host for the plugin called name. Requests from the plugin are
// served from backend; a nil backend leaves the handler registry empty.
func New(name string, ch channel.Channel, backend Backend, opts *Options) *Host {
	opts = opts.withDefaults()
	session := uuid.Must(uuid.NewV7())

	h := &Host{
		Name:     name,
		channel:  ch,
		backend:  backend,
		options:  opts,
		logger:   opts.Logger.With(slog.String("plugin", name), slog.String("session", session.String())),
		session:  session,
		handlers: make(map[protocol.Tag]Handler),
		done:     make(chan struct{}),
	}
	if backend != nil {
		h.registerBackendHandlers()
	}
	return h
}

// Session identifies this connection in logs.
func (h *Host) Session() uuid.UUID {
	return h.session
}

// State returns the last state the plugin reported.
func (h *Host) State() protocol.PluginState {
	return protocol.PluginState(h.state.Load())
}

// Done is closed when Serve returns.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// Serve receives and handles plugin messages until the plugin closes the
// channel or ctx is done. A closed channel ends Serve with a nil error.
func (h *Host) Serve(ctx context.Context) error {
	if !h.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	return h.serve(ctx)
}

// Start marks the host as serving before it returns and runs the receive
// loop in a goroutine. The channel receives the loop's result.
func (h *Host) Start(ctx context.Context) (<-chan error, error) {
	if !h.serving.CompareAndSwap(false, true) {
		return nil, ErrAlreadyServing
	}
	result := make(chan error, 1)
	go func() {
		result <- h.serve(ctx)
	}()
	return result, nil
}

func (h *Host) serve(ctx context.Context) error {
	defer close(h.done)
	defer h.failPending()

	h.logger.Info("Serving plugin")
	for {
		data, err := h.channel.Receive(ctx)
		if err != nil {
			if errors.Is(err, channel.ErrClosed) || h.closed.Load() {
				h.logger.Info("Plugin channel closed")
				return nil
			}
			if errors.Is(err, channel.ErrMessageTooLarge) {
				h.logger.Warn("Dropped plugin message", "error", err)
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := h.onReceive(ctx, data); err != nil {
			h.logger.Warn("Failed to handle plugin message", "error", err)
		}
	}
}

func (h *Host) onReceive(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return channel.ErrEmptyMessage
	}

	m, err := protocol.DecodeToHost(data)
	if err != nil {
		return err
	}

	if h.offer(m) {
		return nil
	}

	handler, ok := h.getHandler(m.Tag())
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, m.Tag())
	}

	handlerCtx, cancel := context.WithTimeout(ctx, h.options.HandlerTimeout)
	defer cancel()

	// handlers run inline so the backend sees declarations before values
	answer, herr := handler.Handle(handlerCtx, m)
	if answer != nil {
		if err := h.send(ctx, answer); err != nil {
			return errors.Join(herr, fmt.Errorf("answer %s: %w", answer.Tag(), err))
		}
	}
	if herr != nil {
		return fmt.Errorf("%s: %w", m.Tag(), herr)
	}
	return nil
}

// send encodes m and writes it as one channel message.
func (h *Host) send(ctx context.Context, m protocol.ToPlugin) error {
	data, err := protocol.EncodeToPlugin(m, h.channel.MaxMessageSize())
	if err != nil {
		return err
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if err := h.channel.Send(ctx, data); err != nil {
		return err
	}
	h.logger.Debug("Sent message", "tag", m.Tag(), "bytes", len(data))
	return nil
}

// await sends req and waits for the plugin message tagged answerTag.
func (h *Host) await(ctx context.Context, req protocol.ToPlugin, answerTag protocol.Tag) (protocol.ToHost, error) {
	if !h.serving.Load() {
		return nil, ErrNotServing
	}

	h.callMu.Lock()
	defer h.callMu.Unlock()

	p := &pendingAnswer{tag: answerTag, answer: make(chan protocol.ToHost, 1)}
	h.pendingMu.Lock()
	h.pending = p
	h.pendingMu.Unlock()
	defer h.clearPending(p)

	if err := h.send(ctx, req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(h.options.AnswerTimeout)
	defer timer.Stop()

	select {
	case m, ok := <-p.answer:
		if !ok {
			return nil, channel.ErrClosed
		}
		return m, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no %s within %s", ErrAnswerTimeout, answerTag, h.options.AnswerTimeout)
	case <-h.done:
		return nil, channel.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Host) offer(m protocol.ToHost) bool {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	if h.pending == nil || h.pending.tag != m.Tag() {
		return false
	}
	h.pending.answer <- m
	h.pending = nil
	return true
}

func (h *Host) clearPending(p *pendingAnswer) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	if h.pending == p {
		h.pending = nil
	}
}

// failPending releases a waiter when the plugin goes away.
func (h *Host) failPending() {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	if h.pending != nil {
		close(h.pending.answer)
		h.pending = nil
	}
}

// Close closes the channel. Serve returns once it observes the close.
func (h *Host) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.channel.Close()
}
