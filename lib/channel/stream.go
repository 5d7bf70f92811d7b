package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

const (
	// 1 byte for the frame type, 4 bytes for the message sequence, 4 bytes for the length
	FrameHeaderSize = 9

	FrameTypeStart = uint8(0x01) // length carries the total message size
	FrameTypeEnd   = uint8(0x02)
	FrameTypeData  = uint8(0x03)
	FrameTypeAbort = uint8(0x06)
)

// DefaultChunkSize is the maximum payload of a single data frame.
const DefaultChunkSize = 1024

// StreamOptions configures a Stream.
type StreamOptions struct {
	MaxMessageSize int
	ChunkSize      int
	// Capacity is the number of complete messages buffered ahead of Receive.
	Capacity int
}

// DefaultStreamOptions returns the options used by Stdio and the unix socket helpers.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		MaxMessageSize: DefaultMaxMessageSize,
		ChunkSize:      DefaultChunkSize,
		Capacity:       DefaultCapacity,
	}
}

func (o StreamOptions) withDefaults() StreamOptions {
	d := DefaultStreamOptions()
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.Capacity <= 0 {
		o.Capacity = d.Capacity
	}
	return o
}

type inbound struct {
	data []byte
	err  error
}

type partial struct {
	data     []byte
	expected uint32
	dropped  bool
}

// Stream is a Channel carrying framed messages over a byte stream. A message
// is written as a start frame, one or more data frames and an end frame; a
// writer whose context is cancelled mid-message emits an abort frame instead.
type Stream struct {
	reader io.Reader
	writer io.Writer

	writerLock sync.Mutex
	sequence   atomic.Uint32

	readBuffer map[uint32]*partial
	incoming   chan inbound
	readErr    error

	options StreamOptions

	done      chan struct{}
	closeOnce sync.Once
	closers   []io.Closer
}

// NewStream starts a Stream over reader and writer. Closing the Stream closes
// both if they implement io.Closer.
func NewStream(reader io.Reader, writer io.Writer, options StreamOptions) *Stream {
	options = options.withDefaults()

	s := &Stream{
		reader:     reader,
		writer:     writer,
		readBuffer: make(map[uint32]*partial),
		incoming:   make(chan inbound, options.Capacity),
		options:    options,
		done:       make(chan struct{}),
	}

	if c, ok := reader.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	if c, ok := writer.(io.Closer); ok && !sameEndpoint(reader, writer) {
		s.closers = append(s.closers, c)
	}

	go s.readLoop()

	return s
}

func sameEndpoint(reader io.Reader, writer io.Writer) bool {
	r, ok := reader.(io.ReadWriter)
	if !ok {
		return false
	}
	w, ok := writer.(io.ReadWriter)
	return ok && r == w
}

// Stdio returns a Stream over the process's standard input and output. It is
// the plugin side of a host that launched it with lib/process.
func Stdio(options StreamOptions) *Stream {
	return NewStream(os.Stdin, os.Stdout, options)
}

// MaxMessageSize implements Channel.
func (s *Stream) MaxMessageSize() int {
	return s.options.MaxMessageSize
}

// Send implements Channel.
func (s *Stream) Send(ctx context.Context, data []byte) error {
	if len(data) > s.options.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(data), s.options.MaxMessageSize)
	}

	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	// whole messages are written under the lock so frames never interleave
	s.writerLock.Lock()
	defer s.writerLock.Unlock()

	seq := s.sequence.Add(1)
	done := ctx.Done()

	if err := s.writeFrame(FrameTypeStart, seq, uint32(len(data)), nil); err != nil {
		return err
	}

	for len(data) > 0 {
		select {
		case <-done:
			return s.abort(ctx, seq)
		default:
		}

		chunkSize := min(len(data), s.options.ChunkSize)
		if err := s.writeFrame(FrameTypeData, seq, uint32(chunkSize), data[:chunkSize]); err != nil {
			return err
		}
		data = data[chunkSize:]
	}

	select {
	case <-done:
		return s.abort(ctx, seq)
	default:
	}

	return s.writeFrame(FrameTypeEnd, seq, 0, nil)
}

func (s *Stream) abort(ctx context.Context, seq uint32) error {
	if err := s.writeFrame(FrameTypeAbort, seq, 0, nil); err != nil {
		return fmt.Errorf("failed to write abort frame: %w", err)
	}
	return ctx.Err()
}

func (s *Stream) writeFrame(frameType uint8, seq uint32, length uint32, payload []byte) error {
	frame := make([]byte, FrameHeaderSize+len(payload))
	frame[0] = frameType
	binary.BigEndian.PutUint32(frame[1:5], seq)
	binary.BigEndian.PutUint32(frame[5:9], length)
	copy(frame[FrameHeaderSize:], payload)

	if _, err := s.writer.Write(frame); err != nil {
		select {
		case <-s.done:
			return ErrClosed
		default:
		}
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Receive implements Channel. A message announced larger than MaxMessageSize
// is discarded by the reader and reported here as ErrMessageTooLarge; the
// stream stays usable.
func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case in, ok := <-s.incoming:
		if !ok {
			return nil, s.readErr
		}
		return in.data, in.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Stream) readLoop() {
	defer close(s.incoming)

	header := make([]byte, FrameHeaderSize)
	for {
		if _, err := io.ReadFull(s.reader, header); err != nil {
			s.readErr = s.terminalError(err)
			return
		}

		frameType := header[0]
		seq := binary.BigEndian.Uint32(header[1:5])
		length := binary.BigEndian.Uint32(header[5:9])

		switch frameType {
		case FrameTypeStart:
			if _, exists := s.readBuffer[seq]; exists {
				s.readErr = fmt.Errorf("%w: duplicate start for message %d", ErrCorruptStream, seq)
				return
			}
			p := &partial{expected: length}
			if int64(length) > int64(s.options.MaxMessageSize) {
				p.dropped = true
			} else {
				p.data = make([]byte, 0, length)
			}
			s.readBuffer[seq] = p

		case FrameTypeData:
			p, ok := s.readBuffer[seq]
			if !ok {
				s.readErr = fmt.Errorf("%w: data for unknown message %d", ErrCorruptStream, seq)
				return
			}
			if p.dropped {
				if _, err := io.CopyN(io.Discard, s.reader, int64(length)); err != nil {
					s.readErr = s.terminalError(err)
					return
				}
				continue
			}
			if uint32(len(p.data))+length > p.expected {
				s.readErr = fmt.Errorf("%w: message %d overruns its announced size", ErrCorruptStream, seq)
				return
			}
			start := len(p.data)
			p.data = p.data[:start+int(length)]
			if _, err := io.ReadFull(s.reader, p.data[start:]); err != nil {
				s.readErr = s.terminalError(err)
				return
			}

		case FrameTypeEnd:
			p, ok := s.readBuffer[seq]
			if !ok {
				s.readErr = fmt.Errorf("%w: end for unknown message %d", ErrCorruptStream, seq)
				return
			}
			delete(s.readBuffer, seq)

			in := inbound{data: p.data}
			if p.dropped {
				in = inbound{err: fmt.Errorf("%w: incoming %d bytes, limit %d", ErrMessageTooLarge, p.expected, s.options.MaxMessageSize)}
			} else if uint32(len(p.data)) != p.expected {
				s.readErr = fmt.Errorf("%w: message %d ended short", ErrCorruptStream, seq)
				return
			}
			if !s.deliver(in) {
				s.readErr = ErrClosed
				return
			}

		case FrameTypeAbort:
			delete(s.readBuffer, seq)

		default:
			s.readErr = fmt.Errorf("%w: unknown frame type 0x%02x", ErrCorruptStream, frameType)
			return
		}
	}
}

func (s *Stream) deliver(in inbound) bool {
	select {
	case s.incoming <- in:
		return true
	case <-s.done:
		return false
	}
}

func (s *Stream) terminalError(err error) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return fmt.Errorf("failed to read frame: %w", err)
}

// Close implements Channel.
func (s *Stream) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		close(s.done)
		for _, c := range s.closers {
			if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// ErrCorruptStream reports a framing violation. The stream cannot recover from it.
var ErrCorruptStream = errors.New("corrupt stream")
