package meshcop

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TLV encoding errors.
var (
	ErrTruncated   = errors.New("truncated TLV")
	ErrValueLength = errors.New("unexpected TLV value length")
)

// escapeLength is the length octet that switches to the extended
// 16-bit length form.
const escapeLength = 0xFF

// Tlv is a single decoded Type-Length-Value record. The Value is kept
// verbatim; interpretation is up to the caller.
type Tlv struct {
	Type  TlvType
	Value []byte
}

// NewUint8 builds a TLV with a 1-octet unsigned value.
func NewUint8(t TlvType, v uint8) Tlv {
	return Tlv{Type: t, Value: []byte{v}}
}

// NewUint16 builds a TLV with a 2-octet big-endian unsigned value.
func NewUint16(t TlvType, v uint16) Tlv {
	value := make([]byte, 2)
	binary.BigEndian.PutUint16(value, v)
	return Tlv{Type: t, Value: value}
}

// NewUint32 builds a TLV with a 4-octet big-endian unsigned value.
func NewUint32(t TlvType, v uint32) Tlv {
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, v)
	return Tlv{Type: t, Value: value}
}

// NewUint64 builds a TLV with an 8-octet big-endian unsigned value.
func NewUint64(t TlvType, v uint64) Tlv {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, v)
	return Tlv{Type: t, Value: value}
}

// NewBytes builds a TLV with an opaque value. The slice is copied.
func NewBytes(t TlvType, v []byte) Tlv {
	value := make([]byte, len(v))
	copy(value, v)
	return Tlv{Type: t, Value: value}
}

// NewString builds a TLV with a UTF-8 string value.
func NewString(t TlvType, v string) Tlv {
	return Tlv{Type: t, Value: []byte(v)}
}

// NewInt8 builds a TLV with a 1-octet signed value (State TLV).
func NewInt8(t TlvType, v int8) Tlv {
	return Tlv{Type: t, Value: []byte{byte(v)}}
}

// AsUint8 interprets the value as a 1-octet unsigned integer.
func (t Tlv) AsUint8() (uint8, error) {
	if len(t.Value) != 1 {
		return 0, fmt.Errorf("%w: %s has %d octets, want 1", ErrValueLength, t.Type, len(t.Value))
	}
	return t.Value[0], nil
}

// AsInt8 interprets the value as a 1-octet signed integer.
func (t Tlv) AsInt8() (int8, error) {
	v, err := t.AsUint8()
	return int8(v), err
}

// AsUint16 interprets the value as a 2-octet big-endian unsigned integer.
func (t Tlv) AsUint16() (uint16, error) {
	if len(t.Value) != 2 {
		return 0, fmt.Errorf("%w: %s has %d octets, want 2", ErrValueLength, t.Type, len(t.Value))
	}
	return binary.BigEndian.Uint16(t.Value), nil
}

// AsUint32 interprets the value as a 4-octet big-endian unsigned integer.
func (t Tlv) AsUint32() (uint32, error) {
	if len(t.Value) != 4 {
		return 0, fmt.Errorf("%w: %s has %d octets, want 4", ErrValueLength, t.Type, len(t.Value))
	}
	return binary.BigEndian.Uint32(t.Value), nil
}

// AsUint64 interprets the value as an 8-octet big-endian unsigned integer.
func (t Tlv) AsUint64() (uint64, error) {
	if len(t.Value) != 8 {
		return 0, fmt.Errorf("%w: %s has %d octets, want 8", ErrValueLength, t.Type, len(t.Value))
	}
	return binary.BigEndian.Uint64(t.Value), nil
}

// AsString interprets the value as a UTF-8 string.
func (t Tlv) AsString() string {
	return string(t.Value)
}

// encodedSize returns the number of octets Encode will emit for t.
func (t Tlv) encodedSize() int {
	n := 2 + len(t.Value)
	if len(t.Value) >= escapeLength {
		n += 2
	}
	return n
}

// TlvSet is an ordered sequence of TLVs. Order is preserved across
// encode/decode; lookups return the first match.
type TlvSet []Tlv

// Get returns the first TLV of the given type.
func (s TlvSet) Get(t TlvType) (Tlv, bool) {
	for _, tlv := range s {
		if tlv.Type == t {
			return tlv, true
		}
	}
	return Tlv{}, false
}

// GetAll returns every TLV of the given type, preserving order.
func (s TlvSet) GetAll(t TlvType) []Tlv {
	var out []Tlv
	for _, tlv := range s {
		if tlv.Type == t {
			out = append(out, tlv)
		}
	}
	return out
}

// Contains reports whether the set carries a TLV of the given type.
func (s TlvSet) Contains(t TlvType) bool {
	_, ok := s.Get(t)
	return ok
}

// Encode serializes the set into its wire form.
func (s TlvSet) Encode() []byte {
	size := 0
	for _, tlv := range s {
		size += tlv.encodedSize()
	}

	out := make([]byte, 0, size)
	for _, tlv := range s {
		out = append(out, byte(tlv.Type))
		if len(tlv.Value) >= escapeLength {
			out = append(out, escapeLength)
			var ext [2]byte
			binary.BigEndian.PutUint16(ext[:], uint16(len(tlv.Value)))
			out = append(out, ext[:]...)
		} else {
			out = append(out, byte(len(tlv.Value)))
		}
		out = append(out, tlv.Value...)
	}
	return out
}

// Decode parses a wire payload into a TlvSet. Unknown TLV types pass
// through opaquely.
func Decode(data []byte) (TlvSet, error) {
	var set TlvSet
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: %d trailing octets", ErrTruncated, len(data))
		}
		typ := TlvType(data[0])
		length := int(data[1])
		data = data[2:]
		if length == escapeLength {
			if len(data) < 2 {
				return nil, fmt.Errorf("%w: missing extended length of %s", ErrTruncated, typ)
			}
			length = int(binary.BigEndian.Uint16(data[:2]))
			data = data[2:]
		}
		if len(data) < length {
			return nil, fmt.Errorf("%w: %s wants %d octets, %d remain", ErrTruncated, typ, length, len(data))
		}
		value := make([]byte, length)
		copy(value, data[:length])
		set = append(set, Tlv{Type: typ, Value: value})
		data = data[length:]
	}
	return set, nil
}
