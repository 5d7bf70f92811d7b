package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/snowmerak/hubplug/lib/protocol"
)

// Reader replays the records of a trace.
type Reader struct {
	header      Header
	compression Compression
	dec         *cbor.Decoder
	release     func()
	closer      io.Closer
}

// NewReader reads the trace header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	var prefix [len(magic) + 2]byte
	if _, err := io.ReadFull(br, prefix[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if string(prefix[:len(magic)]) != magic {
		return nil, ErrBadHeader
	}
	if v := prefix[len(magic)]; v != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, v)
	}
	compression := Compression(prefix[len(magic)+1])

	body, release, err := newBodyReader(br, compression)
	if err != nil {
		return nil, err
	}

	tr := &Reader{
		compression: compression,
		dec:         newDecoder(body),
		release:     release,
	}
	if err := tr.dec.Decode(&tr.header); err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	return tr, nil
}

// Open opens the trace file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Compression() Compression {
	return r.compression
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("read trace record: %w", err)
	}
	return rec, nil
}

// Close releases the decompressor and the file opened by Open.
func (r *Reader) Close() error {
	r.release()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Describe decodes the frame of rec as seen from side and returns its
// variant tag.
func Describe(side Side, rec Record) (protocol.Tag, error) {
	toPlugin := (side == SideHost) == (rec.Direction == Sent)
	if toPlugin {
		m, err := protocol.DecodeToPlugin(rec.Data)
		if err != nil {
			return "", err
		}
		return m.Tag(), nil
	}

	m, err := protocol.DecodeToHost(rec.Data)
	if err != nil {
		return "", err
	}
	return m.Tag(), nil
}
