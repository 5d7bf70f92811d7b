package plugin

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// DeviceCommand is posted with event.DeviceCommand.
type DeviceCommand struct {
	Device  string
	Keyword string
	Body    string
}

// ExtraCommand is posted with event.ExtraCommand.
type ExtraCommand struct {
	Command string
	Data    *datacontainer.Container
}

// answerOnce makes the answer callbacks of a host request single-shot.
type answerOnce struct {
	api      *API
	answered atomic.Bool
}

func (o *answerOnce) claim() error {
	if !o.answered.CompareAndSwap(false, true) {
		return ErrAlreadyAnswered
	}
	return nil
}

// BindingQueryRequest is posted with event.BindingQuery. Exactly one of
// Answer or Fail must be called.
type BindingQueryRequest struct {
	ID    uuid.UUID
	Query *datacontainer.Container

	once answerOnce
}

// Answer sends result back to the host.
func (r *BindingQueryRequest) Answer(ctx context.Context, result *datacontainer.Container) error {
	if err := r.once.claim(); err != nil {
		return opError("bindingQueryAnswer", err, r.ID)
	}
	err := r.once.api.send(ctx, protocol.BindingQueryAnswer{Success: true, Result: result.Serialize()})
	return opError("bindingQueryAnswer", err, r.ID)
}

// Fail reports an error message to the host.
func (r *BindingQueryRequest) Fail(ctx context.Context, message string) error {
	if err := r.once.claim(); err != nil {
		return opError("bindingQueryAnswer", err, r.ID, message)
	}
	err := r.once.api.send(ctx, protocol.BindingQueryAnswer{Success: false, Result: message})
	return opError("bindingQueryAnswer", err, r.ID, message)
}

// ManuallyDeviceCreationRequest is posted with event.ManuallyDeviceCreation.
// Exactly one of Succeed or Fail must be called.
type ManuallyDeviceCreationRequest struct {
	ID            uuid.UUID
	DeviceName    string
	Configuration *datacontainer.Container

	once answerOnce
}

// Succeed reports the name of the created device.
func (r *ManuallyDeviceCreationRequest) Succeed(ctx context.Context, newDeviceName string) error {
	if newDeviceName == "" {
		return opError("manuallyDeviceCreationAnswer", invalidArgument("empty device name"), r.ID)
	}
	if err := r.once.claim(); err != nil {
		return opError("manuallyDeviceCreationAnswer", err, r.ID, newDeviceName)
	}
	err := r.once.api.send(ctx, protocol.ManuallyDeviceCreationAnswer{Succeeded: true, NewDeviceName: newDeviceName})
	return opError("manuallyDeviceCreationAnswer", err, r.ID, newDeviceName)
}

// Fail reports why the device could not be created.
func (r *ManuallyDeviceCreationRequest) Fail(ctx context.Context, message string) error {
	if err := r.once.claim(); err != nil {
		return opError("manuallyDeviceCreationAnswer", err, r.ID, message)
	}
	err := r.once.api.send(ctx, protocol.ManuallyDeviceCreationAnswer{Error: message})
	return opError("manuallyDeviceCreationAnswer", err, r.ID, message)
}
