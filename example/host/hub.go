package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/host"
	"github.com/snowmerak/hubplug/lib/hoststore"
	"github.com/snowmerak/hubplug/lib/protocol"
	"github.com/snowmerak/hubplug/lib/trace"
)

// hub runs the configured plugins against one store.
type hub struct {
	cfg    Config
	store  *hoststore.Store
	logger *slog.Logger

	plugins []*runningPlugin
}

type runningPlugin struct {
	name     string
	loader   *host.Loader
	recorder *trace.Recorder
}

func newHub(cfg Config, store *hoststore.Store, logger *slog.Logger) *hub {
	return &hub{cfg: cfg, store: store, logger: logger}
}

// seed stores the configured recipients.
func (h *hub) seed(ctx context.Context) error {
	for id, fields := range h.cfg.Recipients {
		if err := h.store.AddRecipient(ctx, id, fields); err != nil {
			return err
		}
	}
	return nil
}

// launch starts the plugin, connects to it and sends Init.
func (h *hub) launch(ctx context.Context, name string, pc PluginConfig) error {
	logger := h.logger.With("plugin", name)

	configuration, err := pc.LoadConfiguration()
	if err != nil {
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	changed, err := h.store.SetConfiguration(ctx, name, configuration)
	if err != nil {
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	if changed {
		logger.Info("Plugin configuration changed", "fingerprint", configuration.Fingerprint())
	}

	opts := host.DefaultLoaderOptions()
	opts.Args = pc.Args
	opts.Env = pc.Env
	if pc.Transport != "" {
		opts.Transport = host.TransportType(pc.Transport)
	}
	opts.Host.AnswerTimeout = h.cfg.Timeouts.Answer
	opts.Host.StopTimeout = h.cfg.Timeouts.Stop
	opts.Host.Logger = logger

	running := &runningPlugin{name: name}
	if h.cfg.Trace.Dir != "" {
		recorder, err := h.openTrace(name)
		if err != nil {
			return err
		}
		running.recorder = recorder
		opts.Wrap = func(ch channel.Channel) channel.Channel {
			return trace.Wrap(ch, recorder)
		}
	}

	running.loader = host.NewLoader(pc.Path, name, h.store, opts)
	if err := running.loader.Load(ctx); err != nil {
		if running.recorder != nil {
			running.recorder.Close()
		}
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	h.plugins = append(h.plugins, running)

	dataPath := filepath.Join(h.cfg.DataDir, name)
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return fmt.Errorf("plugin %s: create data path: %w", name, err)
	}

	info := protocol.PluginInformation{
		Type:                          name,
		Version:                       pc.Version,
		ReleaseType:                   protocol.ReleaseStable,
		Path:                          pc.Path,
		SupportManuallyDeviceCreation: pc.ManualDeviceCreation,
	}
	if err := running.loader.Host().Init(ctx, info, dataPath); err != nil {
		return fmt.Errorf("plugin %s: init: %w", name, err)
	}

	go func() {
		<-running.loader.Host().Done()
		logger.Info("Plugin disconnected", "state", running.loader.Host().State().String())
	}()

	logger.Info("Plugin started", "pid", running.loader.Process().Pid(), "session", running.loader.Host().Session().String())
	return nil
}

func (h *hub) openTrace(name string) (*trace.Recorder, error) {
	compression, err := trace.ParseCompression(h.cfg.Trace.Compression)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(h.cfg.Trace.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}

	opts := trace.DefaultOptions()
	opts.Compression = compression
	opts.Name = name
	path := filepath.Join(h.cfg.Trace.Dir, fmt.Sprintf("%s-%s.trace", name, time.Now().Format("20060102-150405")))
	return trace.Create(path, opts)
}

// close stops every plugin, newest first.
func (h *hub) close(ctx context.Context) error {
	var errs []error
	for i := len(h.plugins) - 1; i >= 0; i-- {
		p := h.plugins[i]
		if err := p.loader.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.name, err))
		}
		if p.recorder != nil {
			if err := p.recorder.Close(); err != nil {
				errs = append(errs, fmt.Errorf("plugin %s trace: %w", p.name, err))
			}
		}
	}
	h.plugins = nil
	return errors.Join(errs...)
}
