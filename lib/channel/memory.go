package channel

import (
	"context"
	"fmt"
	"sync"
)

// queue is one direction of a Pipe.
type queue struct {
	messages  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newQueue(capacity int) *queue {
	return &queue{
		messages: make(chan []byte, capacity),
		closed:   make(chan struct{}),
	}
}

func (q *queue) close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

// MemoryChannel is one endpoint of an in-process Pipe.
type MemoryChannel struct {
	send    *queue
	receive *queue
	maxSize int
}

// Pipe creates two connected endpoints. Each direction holds at most capacity
// messages of at most maxMessageSize bytes. Non-positive values select the defaults.
func Pipe(capacity, maxMessageSize int) (*MemoryChannel, *MemoryChannel) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}

	aToB := newQueue(capacity)
	bToA := newQueue(capacity)

	a := &MemoryChannel{send: aToB, receive: bToA, maxSize: maxMessageSize}
	b := &MemoryChannel{send: bToA, receive: aToB, maxSize: maxMessageSize}
	return a, b
}

// Send implements Channel. The data is copied so the caller may reuse its buffer.
func (c *MemoryChannel) Send(ctx context.Context, data []byte) error {
	if len(data) > c.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(data), c.maxSize)
	}

	select {
	case <-c.send.closed:
		return ErrClosed
	default:
	}

	message := make([]byte, len(data))
	copy(message, data)

	select {
	case c.send.messages <- message:
		return nil
	case <-c.send.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements Channel. Messages queued before the peer closed are still delivered.
func (c *MemoryChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case message := <-c.receive.messages:
		return message, nil
	case <-c.receive.closed:
		select {
		case message := <-c.receive.messages:
			return message, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MaxMessageSize implements Channel.
func (c *MemoryChannel) MaxMessageSize() int {
	return c.maxSize
}

// Pending returns the number of messages waiting to be received on this endpoint.
func (c *MemoryChannel) Pending() int {
	return len(c.receive.messages)
}

// Close closes both directions. The peer drains what was already queued, then sees ErrClosed.
func (c *MemoryChannel) Close() error {
	c.send.close()
	c.receive.close()
	return nil
}
