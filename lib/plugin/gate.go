package plugin

import (
	"context"

	"github.com/snowmerak/hubplug/lib/protocol"
)

// handleInit opens the handshake gate once. Later calls fail with ErrDuplicateInit.
func (a *API) handleInit(m protocol.Init) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	if a.Initialized() {
		return ErrDuplicateInit
	}

	a.information = m.Information
	a.dataPath = m.DataPath
	close(a.initialized)

	a.logger.Info("Plugin initialized",
		"type", m.Information.Type,
		"version", m.Information.Version,
		"data_path", m.DataPath)
	return nil
}

// Initialized reports whether the handshake happened.
func (a *API) Initialized() bool {
	select {
	case <-a.initialized:
		return true
	default:
		return false
	}
}

// WaitInitialized blocks until the host's Init arrives. There is no built-in
// timeout: it returns early only when ctx is done or the plugin is stopped.
func (a *API) WaitInitialized(ctx context.Context) error {
	select {
	case <-a.initialized:
		return nil
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Information returns the plugin description received with Init.
func (a *API) Information() (protocol.PluginInformation, error) {
	if !a.Initialized() {
		return protocol.PluginInformation{}, ErrNotInitialized
	}
	return a.information, nil
}

// DataPath returns the data directory received with Init.
func (a *API) DataPath() (string, error) {
	if !a.Initialized() {
		return "", ErrNotInitialized
	}
	return a.dataPath, nil
}
