// Package plugin provides transport selection for the plugin side.
package plugin

import (
	"context"
	"fmt"

	"github.com/snowmerak/hubplug/lib/channel"
)

// TransportType selects how a plugin reaches its host.
type TransportType string

const (
	// TransportStdio uses the process's stdin/stdout (default). The host
	// launched the plugin and owns the other end of the pipes.
	TransportStdio TransportType = "stdio"
	// TransportUnixSocket dials a unix domain socket the host listens on.
	TransportUnixSocket TransportType = "unix"
)

// TransportOptions configures Connect.
type TransportOptions struct {
	Type       TransportType
	SocketPath string
	Stream     channel.StreamOptions
}

// DefaultTransportOptions returns options using stdio communication.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		Type:   TransportStdio,
		Stream: channel.DefaultStreamOptions(),
	}
}

// Connect opens the channel to the host.
func Connect(ctx context.Context, opts TransportOptions) (channel.Channel, error) {
	switch opts.Type {
	case TransportStdio, "":
		return channel.Stdio(opts.Stream), nil
	case TransportUnixSocket:
		if opts.SocketPath == "" {
			return nil, fmt.Errorf("%w: unix transport needs a socket path", ErrInvalidArgument)
		}
		return channel.DialUnix(ctx, opts.SocketPath, opts.Stream)
	}
	return nil, fmt.Errorf("%w: unknown transport %q", ErrInvalidArgument, opts.Type)
}
