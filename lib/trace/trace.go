// Package trace records the frames crossing a channel.Channel to a file and
// reads them back.
//
// A trace starts with a fixed header: the magic "HPTR", a format version byte
// and a Compression byte. The rest of the file is one compressed stream of
// CBOR items, a Header followed by one Record per frame.
package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/snowmerak/hubplug/lib/channel"
	"github.com/snowmerak/hubplug/lib/logging"
)

const (
	magic   = "HPTR"
	version = 1
)

var (
	// ErrClosed is returned by a Recorder after Close.
	ErrClosed = errors.New("trace closed")

	// ErrBadHeader is returned when a file does not start with a trace header.
	ErrBadHeader = errors.New("not a trace file")
)

// Side is the end of the channel the trace was taken on.
type Side uint8

const (
	SideHost   Side = 1
	SidePlugin Side = 2
)

func (s Side) String() string {
	switch s {
	case SideHost:
		return "host"
	case SidePlugin:
		return "plugin"
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// Direction tells whether the traced end sent or received a frame.
type Direction uint8

const (
	Sent     Direction = 1
	Received Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Sent:
		return "sent"
	case Received:
		return "received"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Header opens the record stream.
type Header struct {
	Session string    `cbor:"1,keyasint"`
	Side    Side      `cbor:"2,keyasint"`
	Started time.Time `cbor:"3,keyasint"`
	Name    string    `cbor:"4,keyasint,omitempty"`
}

// Record is one frame. Err holds the send error when the transport refused it.
type Record struct {
	Seq       uint64    `cbor:"1,keyasint"`
	At        time.Time `cbor:"2,keyasint"`
	Direction Direction `cbor:"3,keyasint"`
	Data      []byte    `cbor:"4,keyasint"`
	Err       string    `cbor:"5,keyasint,omitempty"`
}

// Options configures a Recorder.
type Options struct {
	Compression Compression
	Side        Side
	// Session defaults to a new uuid v7.
	Session string
	// Name labels the trace, usually with the plugin name.
	Name   string
	Logger *slog.Logger
}

// DefaultOptions returns zstd compressed host side options.
func DefaultOptions() *Options {
	return &Options{
		Compression: CompressionZstd,
		Side:        SideHost,
	}
}

// Recorder appends records to a trace. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	body   bodyWriter
	enc    *cbor.Encoder
	closer io.Closer
	seq    uint64
	closed bool

	header Header
	logger *slog.Logger
}

// NewRecorder writes a trace header to w and returns a Recorder appending to it.
func NewRecorder(w io.Writer, opts *Options) (*Recorder, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Side != SideHost && opts.Side != SidePlugin {
		return nil, fmt.Errorf("invalid trace side %d", opts.Side)
	}

	session := opts.Session
	if session == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("session id: %w", err)
		}
		session = id.String()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.WithComponent("trace")
	}

	if _, err := io.WriteString(w, magic); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	if _, err := w.Write([]byte{version, byte(opts.Compression)}); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}

	body, err := newBodyWriter(w, opts.Compression)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		body: body,
		enc:  newEncoder(body),
		header: Header{
			Session: session,
			Side:    opts.Side,
			Started: time.Now().UTC(),
			Name:    opts.Name,
		},
		logger: logger.With("session", session),
	}
	if err := r.enc.Encode(r.header); err != nil {
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return r, nil
}

// Create creates the trace file at path. Close closes the file.
func Create(path string, opts *Options) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	r, err := NewRecorder(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Header returns the header written at the start of the trace.
func (r *Recorder) Header() Header {
	return r.header
}

// Record appends a frame.
func (r *Recorder) Record(direction Direction, data []byte, sendErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	r.seq++
	rec := Record{
		Seq:       r.seq,
		At:        time.Now().UTC(),
		Direction: direction,
		Data:      data,
	}
	if sendErr != nil {
		rec.Err = sendErr.Error()
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("write trace record: %w", err)
	}
	return nil
}

// Flush pushes buffered records to the underlying writer.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	return r.body.Flush()
}

// Close ends the compressed stream and closes the file opened by Create.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.closed = true

	err := r.body.Close()
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
	}
	r.logger.Debug("Trace closed", "records", r.seq)
	return err
}

type tap struct {
	channel.Channel
	recorder *Recorder
}

// Wrap returns a Channel that behaves like ch and records every frame it
// sends or receives. Recording failures are logged and never reach callers.
func Wrap(ch channel.Channel, recorder *Recorder) channel.Channel {
	return &tap{Channel: ch, recorder: recorder}
}

func (t *tap) Send(ctx context.Context, data []byte) error {
	err := t.Channel.Send(ctx, data)
	if errors.Is(err, channel.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	t.record(Sent, data, err)
	return err
}

func (t *tap) Receive(ctx context.Context) ([]byte, error) {
	data, err := t.Channel.Receive(ctx)
	if err == nil {
		t.record(Received, data, nil)
	}
	return data, err
}

func (t *tap) record(direction Direction, data []byte, sendErr error) {
	if err := t.recorder.Record(direction, data, sendErr); err != nil && !errors.Is(err, ErrClosed) {
		t.recorder.logger.Warn("Failed to record frame", "direction", direction.String(), "error", err)
	}
}
