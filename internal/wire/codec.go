// Package wire holds the stage.v1 message shapes exchanged with controllers
// and the lighting backend, together with their protobuf and JSON codecs.
//
// Messages are encoded with protowire directly so the package stays
// compatible with the stage.proto schema used by existing clients without
// carrying generated code.
package wire

import (
	"encoding/json"
	"mime"
	"unicode/utf8"

	"github.com/juju/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrDecode is the cause of every failure to decode a payload.
const ErrDecode = errors.ConstError("malformed payload")

// Content types understood by ForContentType.
const (
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeProtobuf    = "application/x-protobuf"
	ContentTypeJSON        = "application/json"
)

// Message is implemented by every stage.v1 message.
type Message interface {
	// Marshal returns the protobuf encoding of the message.
	Marshal() []byte
	// Unmarshal resets the message and fills it from b.
	Unmarshal(b []byte) error
}

// Codec turns messages into bodies and back.
type Codec interface {
	ContentType() string
	Marshal(m Message) ([]byte, error)
	Unmarshal(b []byte, m Message) error
}

var (
	// Protobuf is the binary codec used by default.
	Protobuf Codec = protoCodec{}
	// JSON encodes the same shapes as JSON objects with camelCase keys.
	JSON Codec = jsonCodec{}
)

// ForContentType picks the codec for a Content-Type or Accept value. Anything
// that is not JSON is treated as protobuf.
func ForContentType(value string) Codec {
	mediaType, _, err := mime.ParseMediaType(value)
	if err == nil && mediaType == ContentTypeJSON {
		return JSON
	}
	return Protobuf
}

type protoCodec struct{}

func (protoCodec) ContentType() string { return ContentTypeOctetStream }

func (protoCodec) Marshal(m Message) ([]byte, error) { return m.Marshal(), nil }

func (protoCodec) Unmarshal(b []byte, m Message) error { return m.Unmarshal(b) }

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Marshal(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	return b, errors.Trace(err)
}

func (jsonCodec) Unmarshal(b []byte, m Message) error {
	if len(b) == 0 {
		b = []byte("{}")
	}
	if err := json.Unmarshal(b, m); err != nil {
		return errors.Annotatef(ErrDecode, "json: %v", err)
	}
	return nil
}

// ChannelValues is a run of 8-bit channel values. It travels as bytes in
// protobuf and as an array of numbers in JSON.
type ChannelValues []byte

func (c ChannelValues) MarshalJSON() ([]byte, error) {
	values := make([]int, len(c))
	for i, v := range c {
		values[i] = int(v)
	}
	return json.Marshal(values)
}

func (c *ChannelValues) UnmarshalJSON(b []byte) error {
	var values []int
	if err := json.Unmarshal(b, &values); err != nil {
		return err
	}
	if values == nil {
		*c = nil
		return nil
	}
	out := make(ChannelValues, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return errors.NotValidf("channel value %d at %d", v, i)
		}
		out[i] = byte(v)
	}
	*c = out
	return nil
}

func decodeErrorf(format string, args ...any) error {
	return errors.Annotatef(ErrDecode, format, args...)
}

// field is one decoded key/value pair of a protobuf message.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// eachField walks the fields of b in order. Fields of wire types other than
// varint and length-delimited are validated and skipped.
func eachField(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return decodeErrorf("tag: %v", protowire.ParseError(n))
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
			if n < 0 {
				return decodeErrorf("field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return decodeErrorf("field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return decodeErrorf("field %d: wire type %d, want %d", f.num, f.typ, typ)
	}
	return nil
}

func (f field) int64() (int64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return int64(f.varint), nil
}

func (f field) uint64() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.varint, nil
}

func (f field) int32() (int32, error) {
	v, err := f.int64()
	return int32(v), err
}

func (f field) bool() (bool, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return false, err
	}
	return protowire.DecodeBool(f.varint), nil
}

func (f field) string() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}
	if !utf8.Valid(f.bytes) {
		return "", decodeErrorf("field %d: invalid UTF-8", f.num)
	}
	return string(f.bytes), nil
}

func (f field) raw() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	if len(f.bytes) == 0 {
		return nil, nil
	}
	return append([]byte(nil), f.bytes...), nil
}

func (f field) message(m Message) error {
	if err := f.expect(protowire.BytesType); err != nil {
		return err
	}
	if err := m.Unmarshal(f.bytes); err != nil {
		return errors.Annotatef(err, "field %d", f.num)
	}
	return nil
}

// int64s appends a repeated int64 field in either packed or unpacked form.
func (f field) int64s(dst []int64) ([]int64, error) {
	switch f.typ {
	case protowire.VarintType:
		return append(dst, int64(f.varint)), nil
	case protowire.BytesType:
		b := f.bytes
		for len(b) > 0 {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, decodeErrorf("field %d: %v", f.num, protowire.ParseError(n))
			}
			dst = append(dst, int64(v))
			b = b[n:]
		}
		return dst, nil
	}
	return nil, decodeErrorf("field %d: wire type %d not valid for repeated int64", f.num, f.typ)
}

// encoder appends proto3 fields, omitting scalar zero values.
type encoder []byte

func (e *encoder) int64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	*e = protowire.AppendTag(*e, num, protowire.VarintType)
	*e = protowire.AppendVarint(*e, uint64(v))
}

func (e *encoder) uint64(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	*e = protowire.AppendTag(*e, num, protowire.VarintType)
	*e = protowire.AppendVarint(*e, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if !v {
		return
	}
	*e = protowire.AppendTag(*e, num, protowire.VarintType)
	*e = protowire.AppendVarint(*e, protowire.EncodeBool(v))
}

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	*e = protowire.AppendTag(*e, num, protowire.BytesType)
	*e = protowire.AppendString(*e, v)
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	*e = protowire.AppendTag(*e, num, protowire.BytesType)
	*e = protowire.AppendBytes(*e, v)
}

// message always writes the field so presence survives a round trip.
func (e *encoder) message(num protowire.Number, m Message) {
	*e = protowire.AppendTag(*e, num, protowire.BytesType)
	*e = protowire.AppendBytes(*e, m.Marshal())
}

func (e *encoder) packedInt64s(num protowire.Number, vs []int64) {
	if len(vs) == 0 {
		return
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	*e = protowire.AppendTag(*e, num, protowire.BytesType)
	*e = protowire.AppendBytes(*e, packed)
}
