// Package channel provides the message-oriented duplex transports that carry
// protocol envelopes between a host and a plugin process.
//
// Every Channel preserves message boundaries and enforces a hard maximum
// message size fixed when the channel is created. Implementations:
//
//   - Pipe: an in-process pair of bounded queues, used by tests and by hosts
//     that run a plugin in the same process.
//   - Stream: framed messages over an io.Reader/io.Writer pair (stdio pipes of a
//     forked plugin, unix domain sockets).
package channel

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_channel.go -package=mocks github.com/snowmerak/hubplug/lib/channel Channel

// Channel is a bounded, message-boundary-preserving duplex transport.
type Channel interface {
	// Send writes one message. It fails with ErrMessageTooLarge before
	// touching the transport when len(data) exceeds MaxMessageSize.
	Send(ctx context.Context, data []byte) error

	// Receive blocks until one complete message is available, the context
	// is done, or the channel is closed.
	Receive(ctx context.Context) ([]byte, error)

	// MaxMessageSize returns the fixed per-message limit in bytes.
	MaxMessageSize() int

	// Close releases the transport. Pending and future calls fail with ErrClosed.
	Close() error
}

var (
	// ErrMessageTooLarge is returned when a message exceeds the channel's maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrEmptyMessage reports a zero-length delivery.
	ErrEmptyMessage = errors.New("empty message")

	// ErrClosed is returned by operations on a closed channel.
	ErrClosed = errors.New("channel closed")
)

// DefaultMaxMessageSize is the per-message limit used when none is configured.
const DefaultMaxMessageSize = 64 * 1024

// DefaultCapacity is the number of messages a queue holds before Send blocks.
const DefaultCapacity = 100
