// Package plugin provides configuration for the plugin API.
package plugin

import (
	"log/slog"
	"time"

	"github.com/snowmerak/hubplug/lib/event"
	"github.com/snowmerak/hubplug/lib/logging"
)

// DefaultCorrelationTimeout bounds how long a request waits for the host's answer.
const DefaultCorrelationTimeout = 60 * time.Second

// Options configures an API.
type Options struct {
	// CorrelationTimeout bounds every request that expects an answer.
	CorrelationTimeout time.Duration

	// Events receives host requests. A new handler is created when nil.
	Events *event.Handler

	// Logger defaults to the process logger tagged with component=plugin.
	Logger *slog.Logger
}

// DefaultOptions returns options with a 60 second correlation timeout.
func DefaultOptions() *Options {
	return &Options{
		CorrelationTimeout: DefaultCorrelationTimeout,
	}
}

func (o *Options) withDefaults() *Options {
	out := DefaultOptions()
	if o != nil {
		*out = *o
	}
	if out.CorrelationTimeout <= 0 {
		out.CorrelationTimeout = DefaultCorrelationTimeout
	}
	if out.Events == nil {
		out.Events = event.NewHandler()
	}
	if out.Logger == nil {
		out.Logger = logging.WithComponent("plugin")
	}
	return out
}
