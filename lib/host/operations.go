package host

import (
	"context"
	"fmt"
	"time"

	"github.com/snowmerak/hubplug/lib/datacontainer"
	"github.com/snowmerak/hubplug/lib/protocol"
)

// Init performs the handshake. The plugin rejects every other message until it arrives.
func (h *Host) Init(ctx context.Context, information protocol.PluginInformation, dataPath string) error {
	if err := h.send(ctx, protocol.Init{Information: information, DataPath: dataPath}); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	h.logger.Info("Sent init", "type", information.Type, "version", information.Version, "data_path", dataPath)
	return nil
}

// Stop asks the plugin to stop and waits until it hangs up or StopTimeout
// elapses. Serve must be running for the hang-up to be observed.
func (h *Host) Stop(ctx context.Context) error {
	if err := h.send(ctx, protocol.Stop{}); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	h.logger.Info("Sent stop")

	if !h.serving.Load() {
		return nil
	}

	timer := time.NewTimer(h.options.StopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: waited %s", ErrStopTimeout, h.options.StopTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateConfiguration pushes a new configuration to the plugin.
func (h *Host) UpdateConfiguration(ctx context.Context, configuration *datacontainer.Container) error {
	err := h.send(ctx, protocol.UpdateConfiguration{Configuration: configuration.Serialize()})
	if err != nil {
		return fmt.Errorf("update configuration: %w", err)
	}
	return nil
}

// SendDeviceCommand asks the plugin to apply body to a keyword of device.
func (h *Host) SendDeviceCommand(ctx context.Context, device, keyword, body string) error {
	err := h.send(ctx, protocol.DeviceCommand{Device: device, Keyword: keyword, Body: body})
	if err != nil {
		return fmt.Errorf("device command %s.%s: %w", device, keyword, err)
	}
	return nil
}

// SendExtraCommand sends a plugin-specific command. data may be nil.
func (h *Host) SendExtraCommand(ctx context.Context, command string, data *datacontainer.Container) error {
	m := protocol.ExtraCommand{Command: command}
	if !data.Empty() {
		m.Data = data.Serialize()
	}
	if err := h.send(ctx, m); err != nil {
		return fmt.Errorf("extra command %s: %w", command, err)
	}
	return nil
}

// BindingQuery asks the plugin for dynamic configuration choices and returns its result.
func (h *Host) BindingQuery(ctx context.Context, query *datacontainer.Container) (*datacontainer.Container, error) {
	m, err := h.await(ctx, protocol.BindingQuery{Query: query.Serialize()}, protocol.TagBindingQueryAnswer)
	if err != nil {
		return nil, fmt.Errorf("binding query: %w", err)
	}

	answer := m.(protocol.BindingQueryAnswer)
	if !answer.Success {
		return nil, fmt.Errorf("binding query: %w: %s", ErrRequestFailed, answer.Result)
	}
	result, err := datacontainer.Parse(answer.Result)
	if err != nil {
		return nil, fmt.Errorf("binding query: %w", err)
	}
	return result, nil
}

// ManuallyCreateDevice asks the plugin to create a device from a user
// configuration and returns the name the plugin gave it.
func (h *Host) ManuallyCreateDevice(ctx context.Context, name string, configuration *datacontainer.Container) (string, error) {
	req := protocol.ManuallyDeviceCreation{Name: name, Configuration: configuration.Serialize()}
	m, err := h.await(ctx, req, protocol.TagManuallyDeviceCreationAnswer)
	if err != nil {
		return "", fmt.Errorf("manual device creation %s: %w", name, err)
	}

	answer := m.(protocol.ManuallyDeviceCreationAnswer)
	if !answer.Succeeded {
		return "", fmt.Errorf("manual device creation %s: %w: %s", name, ErrRequestFailed, answer.Error)
	}
	return answer.NewDeviceName, nil
}
