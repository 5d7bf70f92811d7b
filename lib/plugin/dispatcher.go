// Package plugin provides inbound message processing for the plugin API.
//
// This file contains the receive loop and the dispatcher that routes every
// host message to the handshake gate, the outstanding request or the event sink.
package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/event"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// Run receives and dispatches host messages until the host asks the plugin to
// stop, in which case it returns nil. Per-message failures are logged and the
// loop continues. It returns an error when ctx is done or the channel fails.
func (a *API) Run(ctx context.Context) error {
	if a.channel == nil {
		return ErrChannelNotReady
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// unblock Receive as soon as a stop is requested
	go func() {
		select {
		case <-a.stopped:
			cancel()
		case <-ctx.Done():
		}
	}()

	a.logger.Info("Receive loop started")
	for {
		data, err := a.channel.Receive(ctx)
		if err != nil {
			if a.StopRequested() {
				a.logger.Info("Receive loop stopped")
				return nil
			}
			if errors.Is(err, channel.ErrMessageTooLarge) {
				a.logger.Warn("Dropped inbound message", "error", err)
				continue
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := a.OnReceive(ctx, data); err != nil {
			a.logger.Warn("Dropped inbound message", "error", err)
		}

		if a.StopRequested() {
			a.logger.Info("Receive loop stopped")
			return nil
		}
	}
}

// OnReceive processes one raw message. Run calls it for every message; it is
// exported for transports that deliver messages themselves.
func (a *API) OnReceive(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return channel.ErrEmptyMessage
	}

	msg, err := protocol.DecodeToPlugin(data)
	if err != nil {
		return err
	}
	return a.dispatch(ctx, msg)
}

func (a *API) dispatch(_ context.Context, msg protocol.ToPlugin) error {
	if !a.Initialized() {
		init, ok := msg.(protocol.Init)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnexpectedBeforeInit, msg.Tag())
		}
		return a.handleInit(init)
	}

	if a.offer(msg) {
		return nil
	}

	switch m := msg.(type) {
	case protocol.Stop:
		a.handleStop()
		return nil

	case protocol.UpdateConfiguration:
		configuration, err := datacontainer.Parse(m.Configuration)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Tag(), err)
		}
		a.events.Post(event.UpdateConfiguration, configuration)
		return nil

	case protocol.BindingQuery:
		query, err := datacontainer.Parse(m.Query)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Tag(), err)
		}
		req := &BindingQueryRequest{ID: uuid.Must(uuid.NewV7()), Query: query}
		req.once.api = a
		a.events.Post(event.BindingQuery, req)
		return nil

	case protocol.DeviceCommand:
		a.events.Post(event.DeviceCommand, &DeviceCommand{Device: m.Device, Keyword: m.Keyword, Body: m.Body})
		return nil

	case protocol.ExtraCommand:
		data, err := datacontainer.Parse(m.Data)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Tag(), err)
		}
		a.events.Post(event.ExtraCommand, &ExtraCommand{Command: m.Command, Data: data})
		return nil

	case protocol.ManuallyDeviceCreation:
		configuration, err := datacontainer.Parse(m.Configuration)
		if err != nil {
			return fmt.Errorf("%s: %w", m.Tag(), err)
		}
		req := &ManuallyDeviceCreationRequest{ID: uuid.Must(uuid.NewV7()), DeviceName: m.Name, Configuration: configuration}
		req.once.api = a
		a.events.Post(event.ManuallyDeviceCreation, req)
		return nil

	case protocol.Init:
		return a.handleInit(m)

	case protocol.Answer:
		return fmt.Errorf("%w: %s", ErrUnsolicitedAnswer, m.Tag())
	}

	return fmt.Errorf("%w: %s", protocol.ErrUnknownMessageType, msg.Tag())
}

// handleStop moves the plugin to the stop-requested state. Repeated stops are no-ops.
func (a *API) handleStop() {
	if !a.stopRequested.CompareAndSwap(false, true) {
		return
	}
	a.logger.Info("Stop requested by host")
	a.events.Post(event.StopRequested, nil)
	close(a.stopped)
}
