package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/snowmerak/hubplug/lib/protocol"
)

// correlationSlot waits for the single answer to one outbound request.
type correlationSlot struct {
	request protocol.Tag
	match   func(protocol.ToPlugin) bool
	answer  chan protocol.ToPlugin
}

// await sends req and returns the first inbound message of type T.
func await[T protocol.Answer](ctx context.Context, a *API, req protocol.ToHost) (T, error) {
	m, err := a.sendAndAwait(ctx, req, func(m protocol.ToPlugin) bool {
		_, ok := m.(T)
		return ok
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return m.(T), nil
}

// sendAndAwait turns one request and its answer into a synchronous call.
// Callers are serialized: only one correlation is outstanding per API.
func (a *API) sendAndAwait(ctx context.Context, req protocol.ToHost, match func(protocol.ToPlugin) bool) (protocol.ToPlugin, error) {
	select {
	case a.callSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.stopped:
		return nil, ErrStopped
	}
	defer func() { <-a.callSem }()

	slot := &correlationSlot{
		request: req.Tag(),
		match:   match,
		answer:  make(chan protocol.ToPlugin, 1),
	}
	if err := a.install(slot); err != nil {
		return nil, err
	}
	defer a.clear(slot)

	if err := a.send(ctx, req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(a.options.CorrelationTimeout)
	defer timer.Stop()

	select {
	case m := <-slot.answer:
		return m, nil
	case <-timer.C:
		a.clear(slot)
		// the answer may have been delivered while the timer fired
		select {
		case m := <-slot.answer:
			return m, nil
		default:
		}
		a.logger.Warn("No answer from host", "request", req.Tag(), "timeout", a.options.CorrelationTimeout)
		return nil, fmt.Errorf("%w: no answer to %s within %s", ErrRequestTimeout, req.Tag(), a.options.CorrelationTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.stopped:
		return nil, ErrStopped
	}
}

func (a *API) install(slot *correlationSlot) error {
	a.slotMu.Lock()
	defer a.slotMu.Unlock()

	if a.slot != nil {
		return fmt.Errorf("%w: %s is waiting", ErrCorrelationBusy, a.slot.request)
	}
	a.slot = slot
	return nil
}

// clear removes slot if it is still the installed one.
func (a *API) clear(slot *correlationSlot) {
	a.slotMu.Lock()
	defer a.slotMu.Unlock()

	if a.slot == slot {
		a.slot = nil
	}
}

// offer hands m to the outstanding request if it matches. The slot is
// removed in the same critical section so an answer is delivered at most once.
func (a *API) offer(m protocol.ToPlugin) bool {
	a.slotMu.Lock()
	defer a.slotMu.Unlock()

	if a.slot == nil || !a.slot.match(m) {
		return false
	}
	a.slot.answer <- m
	a.slot = nil
	return true
}

// PendingRequest returns the tag of the outstanding request, if any.
func (a *API) PendingRequest() (protocol.Tag, bool) {
	a.slotMu.Lock()
	defer a.slotMu.Unlock()

	if a.slot == nil {
		return "", false
	}
	return a.slot.request, true
}
