package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// forEachField walks the top-level fields of an encoded message. Fields with
// wire types other than varint and bytes are skipped.
func forEachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return malformed("field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return malformed("field %d: unexpected wire type %d", f.num, f.typ)
	}
	return nil
}

func (f field) str() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.bytes), nil
}

func (f field) boolean() (bool, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return false, err
	}
	return protowire.DecodeBool(f.varint), nil
}

func (f field) int32() (int32, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	v := int64(f.varint)
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, malformed("field %d: int32 out of range", f.num)
	}
	return int32(v), nil
}

func (f field) enum() (int32, error) {
	return f.int32()
}

func (f field) message() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return f.bytes, nil
}

// presence tracks which required fields were seen during decoding.
type presence uint32

func (p *presence) set(num protowire.Number) {
	*p |= 1 << uint(num)
}

func (p presence) require(message string, nums ...protowire.Number) error {
	for _, num := range nums {
		if p&(1<<uint(num)) == 0 {
			return malformed("%s: required field %d missing", message, num)
		}
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

func invalidEnum(name string, v int32) error {
	return fmt.Errorf("%w: %w: %s %d", ErrMalformedMessage, ErrInvalidEnumValue, name, v)
}

// parseEnum runs an enum name parser and reports a failure as malformed input.
func parseEnum[T any](parse func(string) (T, error), s string) (T, error) {
	v, err := parse(s)
	if err != nil {
		return v, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return v, nil
}

func incomplete(message, fieldName string) error {
	return fmt.Errorf("%w: %s: required field %s is unset", ErrSerialization, message, fieldName)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}
