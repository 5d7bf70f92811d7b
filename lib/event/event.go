// Package event is the sink the plugin dispatcher posts host requests to. The
// plugin's own logic consumes events in FIFO order with Wait.
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ID identifies the kind of an event.
type ID int

const (
	// StopRequested is posted once when the host asks the plugin to stop.
	StopRequested ID = iota + 1
	UpdateConfiguration
	BindingQuery
	DeviceCommand
	ExtraCommand
	ManuallyDeviceCreation

	// UserFirst is the first id free for plugin defined events.
	UserFirst ID = 1000
)

func (id ID) String() string {
	switch id {
	case StopRequested:
		return "stopRequested"
	case UpdateConfiguration:
		return "updateConfiguration"
	case BindingQuery:
		return "bindingQuery"
	case DeviceCommand:
		return "deviceCommand"
	case ExtraCommand:
		return "extraCommand"
	case ManuallyDeviceCreation:
		return "manuallyDeviceCreation"
	}
	if id >= UserFirst {
		return fmt.Sprintf("user+%d", int(id-UserFirst))
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

var (
	// ErrTimeout is returned by Wait when no event arrived in time.
	ErrTimeout = errors.New("no event before timeout")

	// ErrDataType is returned by DataAs when the payload has another type.
	ErrDataType = errors.New("unexpected event data type")
)

type Event struct {
	Seq  int64
	ID   ID
	At   time.Time
	Data any
}

// DataAs returns the payload of e as a T.
func DataAs[T any](e Event) (T, error) {
	v, ok := e.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s carries %T, want %T", ErrDataType, e.ID, e.Data, zero)
	}
	return v, nil
}

// Handler is an unbounded FIFO of events. Post never blocks so the receive
// loop cannot stall behind a slow consumer.
type Handler struct {
	nextSeq atomic.Int64

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
}

func NewHandler() *Handler {
	return &Handler{
		notify: make(chan struct{}, 1),
	}
}

// Post appends an event.
func (h *Handler) Post(id ID, data any) {
	ev := Event{
		Seq:  h.nextSeq.Add(1),
		ID:   id,
		At:   time.Now().UTC(),
		Data: data,
	}

	h.mu.Lock()
	h.queue = append(h.queue, ev)
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// TryNext pops the oldest event without waiting.
func (h *Handler) TryNext() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.queue) == 0 {
		return Event{}, false
	}
	ev := h.queue[0]
	h.queue[0] = Event{}
	h.queue = h.queue[1:]
	if len(h.queue) > 0 {
		// keep the signal armed for the remaining events
		select {
		case h.notify <- struct{}{}:
		default:
		}
	}
	return ev, true
}

// Wait pops the oldest event, blocking until one is posted, the timeout
// elapses or ctx is done. A non-positive timeout waits without limit.
func (h *Handler) Wait(ctx context.Context, timeout time.Duration) (Event, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		if ev, ok := h.TryNext(); ok {
			return ev, nil
		}

		select {
		case <-h.notify:
		case <-expired:
			return Event{}, ErrTimeout
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of queued events.
func (h *Handler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}
