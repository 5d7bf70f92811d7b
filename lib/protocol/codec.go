package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/snowmerak/hubplug/lib/channel"
)

// variant is implemented by every concrete message.
type variant interface {
	Tag() Tag
	field() protowire.Number
	validate() error
	marshal() []byte
}

// EncodeToPlugin serializes m into an envelope. A positive maxSize bounds the
// encoded length; exceeding it fails with ErrSerialization wrapping
// channel.ErrMessageTooLarge.
func EncodeToPlugin(m ToPlugin, maxSize int) ([]byte, error) {
	v, ok := m.(variant)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported plugin message %T", ErrSerialization, m)
	}
	return encodeEnvelope(v, maxSize)
}

// EncodeToHost serializes m into an envelope. See EncodeToPlugin for maxSize.
func EncodeToHost(m ToHost, maxSize int) ([]byte, error) {
	v, ok := m.(variant)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported host message %T", ErrSerialization, m)
	}
	return encodeEnvelope(v, maxSize)
}

func encodeEnvelope(v variant, maxSize int) ([]byte, error) {
	if err := v.validate(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", v.Tag(), err)
	}

	b := appendMessage(nil, v.field(), v.marshal())
	if maxSize > 0 && len(b) > maxSize {
		return nil, fmt.Errorf("%w: %w: %s encodes to %d bytes, limit %d",
			ErrSerialization, channel.ErrMessageTooLarge, v.Tag(), len(b), maxSize)
	}
	return b, nil
}

// DecodeToPlugin parses an envelope sent by the host.
func DecodeToPlugin(b []byte) (ToPlugin, error) {
	return decodeEnvelope(b, toPluginDecoders, "plugin")
}

// DecodeToHost parses an envelope sent by a plugin.
func DecodeToHost(b []byte) (ToHost, error) {
	return decodeEnvelope(b, toHostDecoders, "host")
}

func decodeEnvelope[T any](b []byte, decoders map[protowire.Number]func([]byte) (T, error), direction string) (T, error) {
	var result T
	found := false

	err := forEachField(b, func(f field) error {
		decode, ok := decoders[f.num]
		if !ok {
			return fmt.Errorf("%w: %s envelope field %d", ErrUnknownMessageType, direction, f.num)
		}
		if found {
			return malformed("%s envelope holds more than one variant", direction)
		}
		payload, err := f.message()
		if err != nil {
			return err
		}
		if result, err = decode(payload); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if !found {
		var zero T
		return zero, malformed("%s envelope holds no variant", direction)
	}
	return result, nil
}

func decodeSingleString(b []byte, message string) (string, error) {
	var v string
	var seen presence
	err := forEachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		seen.set(f.num)
		var err error
		v, err = f.str()
		return err
	})
	if err != nil {
		return "", err
	}
	return v, seen.require(message, 1)
}

func decodeSingleBool(b []byte, message string) (bool, error) {
	var v bool
	var seen presence
	err := forEachField(b, func(f field) error {
		if f.num != 1 {
			return nil
		}
		seen.set(f.num)
		var err error
		v, err = f.boolean()
		return err
	})
	if err != nil {
		return false, err
	}
	return v, seen.require(message, 1)
}
