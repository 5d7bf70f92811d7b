// Package host provides handler management.
// This file contains the handler registry and the handlers serving plugin requests from a Backend.
package host

import (
	"context"
	"errors"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// Handler processes one plugin message. A non-nil answer is sent back to the
// plugin even when err is set, so a waiting plugin is never left hanging.
type Handler interface {
	Handle(ctx context.Context, m protocol.ToHost) (answer protocol.ToPlugin, err error)
}

// HandlerFunc is a convenience type for converting functions to Handler
type HandlerFunc func(ctx context.Context, m protocol.ToHost) (protocol.ToPlugin, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, m protocol.ToHost) (protocol.ToPlugin, error) {
	return f(ctx, m)
}

// RegisterHandler registers handler for plugin messages tagged tag, replacing any previous one.
func (h *Host) RegisterHandler(tag protocol.Tag, handler Handler) {
	h.handlerMutex.Lock()
	defer h.handlerMutex.Unlock()
	h.handlers[tag] = handler
}

// RegisterHandlerFunc is a convenience method to register a function as a handler
func (h *Host) RegisterHandlerFunc(tag protocol.Tag, handler func(ctx context.Context, m protocol.ToHost) (protocol.ToPlugin, error)) {
	h.RegisterHandler(tag, HandlerFunc(handler))
}

// UnregisterHandler removes the handler for tag
func (h *Host) UnregisterHandler(tag protocol.Tag) {
	h.handlerMutex.Lock()
	defer h.handlerMutex.Unlock()
	delete(h.handlers, tag)
}

func (h *Host) getHandler(tag protocol.Tag) (Handler, bool) {
	h.handlerMutex.RLock()
	defer h.handlerMutex.RUnlock()
	handler, exists := h.handlers[tag]
	return handler, exists
}

// handle adapts a typed function to Handler.
func handle[T protocol.ToHost](f func(ctx context.Context, m T) (protocol.ToPlugin, error)) Handler {
	return HandlerFunc(func(ctx context.Context, m protocol.ToHost) (protocol.ToPlugin, error) {
		typed, ok := m.(T)
		if !ok {
			return nil, errors.New("handler registered for the wrong message type")
		}
		return f(ctx, typed)
	})
}

// parseOptional parses a details blob, treating the empty string as no details.
func parseOptional(s string) (*datacontainer.Container, error) {
	if s == "" {
		return nil, nil
	}
	return datacontainer.Parse(s)
}

// registerBackendHandlers registers the handlers for every plugin request.
func (h *Host) registerBackendHandlers() {
	b := h.backend

	h.RegisterHandler(protocol.TagPluginState, handle(func(ctx context.Context, m protocol.SetPluginState) (protocol.ToPlugin, error) {
		h.state.Store(int32(m.State))
		h.logger.Info("Plugin state changed", "state", m.State, "message_id", m.CustomMessageID)

		data, err := parseOptional(m.CustomMessageData)
		if err != nil {
			return nil, err
		}
		return nil, b.SetPluginState(ctx, h.Name, m.State, m.CustomMessageID, data)
	}))

	h.RegisterHandler(protocol.TagDeclareDevice, handle(func(ctx context.Context, m protocol.DeclareDevice) (protocol.ToPlugin, error) {
		details, err := parseOptional(m.Details)
		if err != nil {
			return nil, err
		}
		return nil, b.DeclareDevice(ctx, h.Name, m.Device, m.Model, m.Keywords, details)
	}))

	h.RegisterHandler(protocol.TagDeclareKeyword, handle(func(ctx context.Context, m protocol.DeclareKeyword) (protocol.ToPlugin, error) {
		details, err := parseOptional(m.Details)
		if err != nil {
			return nil, err
		}
		return nil, b.DeclareKeyword(ctx, h.Name, m.Device, m.Keyword, details)
	}))

	h.RegisterHandler(protocol.TagHistorizeData, handle(func(ctx context.Context, m protocol.HistorizeData) (protocol.ToPlugin, error) {
		return nil, b.Historize(ctx, h.Name, m.Device, m.Values)
	}))

	h.RegisterHandler(protocol.TagDeviceExists, handle(func(ctx context.Context, m protocol.DeviceExists) (protocol.ToPlugin, error) {
		exists, err := b.DeviceExists(ctx, h.Name, m.Device)
		return protocol.DeviceExistsAnswer{Exists: exists}, err
	}))

	h.RegisterHandler(protocol.TagDeviceDetails, handle(func(ctx context.Context, m protocol.DeviceDetails) (protocol.ToPlugin, error) {
		details, err := b.DeviceDetails(ctx, h.Name, m.Device)
		return protocol.DeviceDetailsAnswer{Details: details.Serialize()}, err
	}))

	h.RegisterHandler(protocol.TagKeywordExists, handle(func(ctx context.Context, m protocol.KeywordExists) (protocol.ToPlugin, error) {
		exists, err := b.KeywordExists(ctx, h.Name, m.Device, m.Keyword)
		return protocol.KeywordExistsAnswer{Exists: exists}, err
	}))

	h.RegisterHandler(protocol.TagRecipientValueRequest, handle(func(ctx context.Context, m protocol.RecipientValueRequest) (protocol.ToPlugin, error) {
		value, err := b.RecipientValue(ctx, m.RecipientID, m.FieldName)
		return protocol.RecipientValueAnswer{Value: value}, err
	}))

	h.RegisterHandler(protocol.TagFindRecipientsFromField, handle(func(ctx context.Context, m protocol.FindRecipientsFromField) (protocol.ToPlugin, error) {
		ids, err := b.FindRecipientsFromField(ctx, m.FieldName, m.ExpectedFieldValue)
		return protocol.FindRecipientsFromFieldAnswer{RecipientIDs: ids}, err
	}))

	h.RegisterHandler(protocol.TagRecipientFieldExists, handle(func(ctx context.Context, m protocol.RecipientFieldExists) (protocol.ToPlugin, error) {
		exists, err := b.RecipientFieldExists(ctx, m.FieldName)
		return protocol.RecipientFieldExistsAnswer{Exists: exists}, err
	}))

	h.RegisterHandler(protocol.TagConfigurationRequest, handle(func(ctx context.Context, _ protocol.ConfigurationRequest) (protocol.ToPlugin, error) {
		configuration, err := b.Configuration(ctx, h.Name)
		return protocol.ConfigurationAnswer{Configuration: configuration.Serialize()}, err
	}))
}
