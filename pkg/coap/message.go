package coap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Message encoding errors.
var (
	ErrMessageTooShort = errors.New("message shorter than CoAP header")
	ErrBadVersion      = errors.New("unsupported CoAP version")
	ErrBadToken        = errors.New("token longer than 8 octets")
	ErrBadOption       = errors.New("malformed CoAP option")
)

// Version is the only CoAP protocol version in existence.
const Version = 1

// Type is the CoAP message type.
type Type uint8

// Message types.
const (
	Confirmable    Type = 0
	NonConfirmable Type = 1
	Acknowledgement Type = 2
	Reset          Type = 3
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return "UNKNOWN"
	}
}

// Code is the CoAP request method or response code, packed as
// class<<5 | detail.
type Code uint8

// Codes used by MeshCoP.
const (
	CodeEmpty    Code = 0
	CodeGet      Code = 1 // 0.01
	CodePost     Code = 2 // 0.02
	CodeCreated  Code = 65
	CodeDeleted  Code = 66
	CodeValid    Code = 67
	CodeChanged  Code = 68
	CodeContent  Code = 69
	CodeBadRequest Code = 128
	CodeUnauthorized Code = 129
	CodeNotFound Code = 132
	CodeInternalError Code = 160
)

// IsRequest reports whether the code is a request method.
func (c Code) IsRequest() bool {
	return c != CodeEmpty && c>>5 == 0
}

// IsSuccess reports whether the code is a 2.xx response.
func (c Code) IsSuccess() bool {
	return c>>5 == 2
}

// String returns the dotted class.detail form.
func (c Code) String() string {
	return fmt.Sprintf("%d.%02d", c>>5, c&0x1F)
}

// optUriPath is the Uri-Path option number, the only option MeshCoP
// management messages carry.
const optUriPath = 11

// payloadMarker separates options from the payload.
const payloadMarker = 0xFF

// maxTokenLength per RFC 7252.
const maxTokenLength = 8

// Message is a CoAP message. UriPath holds the joined "/a/b" form.
type Message struct {
	Type      Type
	Code      Code
	MessageID uint16
	Token     []byte
	UriPath   string
	Payload   []byte
}

// NewRequest builds a confirmable request.
func NewRequest(code Code, uriPath string, payload []byte) *Message {
	return &Message{
		Type:    Confirmable,
		Code:    code,
		UriPath: uriPath,
		Payload: payload,
	}
}

// Response builds a piggybacked acknowledgement carrying the response
// code and payload for m.
func (m *Message) Response(code Code, payload []byte) *Message {
	return &Message{
		Type:      Acknowledgement,
		Code:      code,
		MessageID: m.MessageID,
		Token:     m.Token,
		Payload:   payload,
	}
}

// Encode serializes the message.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Token) > maxTokenLength {
		return nil, ErrBadToken
	}

	out := make([]byte, 4, 4+len(m.Token)+len(m.UriPath)+len(m.Payload)+8)
	out[0] = Version<<6 | byte(m.Type)<<4 | byte(len(m.Token))
	out[1] = byte(m.Code)
	binary.BigEndian.PutUint16(out[2:], m.MessageID)
	out = append(out, m.Token...)

	prev := 0
	for _, segment := range splitUriPath(m.UriPath) {
		out = appendOption(out, optUriPath-prev, []byte(segment))
		prev = optUriPath
	}

	if len(m.Payload) > 0 {
		out = append(out, payloadMarker)
		out = append(out, m.Payload...)
	}
	return out, nil
}

// Decode parses a CoAP message.
func Decode(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, ErrMessageTooShort
	}
	if data[0]>>6 != Version {
		return nil, ErrBadVersion
	}

	m := &Message{
		Type:      Type(data[0] >> 4 & 0x3),
		Code:      Code(data[1]),
		MessageID: binary.BigEndian.Uint16(data[2:]),
	}
	tkl := int(data[0] & 0x0F)
	if tkl > maxTokenLength {
		return nil, ErrBadToken
	}
	data = data[4:]
	if len(data) < tkl {
		return nil, ErrMessageTooShort
	}
	m.Token = append([]byte(nil), data[:tkl]...)
	data = data[tkl:]

	var pathSegments []string
	option := 0
	for len(data) > 0 && data[0] != payloadMarker {
		delta, length, rest, err := decodeOptionHeader(data)
		if err != nil {
			return nil, err
		}
		if len(rest) < length {
			return nil, ErrBadOption
		}
		option += delta
		if option == optUriPath {
			pathSegments = append(pathSegments, string(rest[:length]))
		}
		data = rest[length:]
	}
	if len(pathSegments) > 0 {
		m.UriPath = "/" + strings.Join(pathSegments, "/")
	}

	if len(data) > 0 {
		// Skip the payload marker; an empty payload after the marker
		// is a format error per RFC 7252.
		if len(data) == 1 {
			return nil, ErrBadOption
		}
		m.Payload = append([]byte(nil), data[1:]...)
	}
	return m, nil
}

func splitUriPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// appendOption writes one option with the nibble/extended encoding of
// RFC 7252 §3.1.
func appendOption(out []byte, delta int, value []byte) []byte {
	deltaNibble, deltaExt := optionNibble(delta)
	lengthNibble, lengthExt := optionNibble(len(value))

	out = append(out, byte(deltaNibble<<4|lengthNibble))
	out = append(out, deltaExt...)
	out = append(out, lengthExt...)
	return append(out, value...)
}

func optionNibble(v int) (int, []byte) {
	switch {
	case v < 13:
		return v, nil
	case v < 269:
		return 13, []byte{byte(v - 13)}
	default:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(v-269))
		return 14, ext
	}
}

func decodeOptionHeader(data []byte) (delta, length int, rest []byte, err error) {
	deltaNibble := int(data[0] >> 4)
	lengthNibble := int(data[0] & 0x0F)
	rest = data[1:]

	delta, rest, err = extendNibble(deltaNibble, rest)
	if err != nil {
		return 0, 0, nil, err
	}
	length, rest, err = extendNibble(lengthNibble, rest)
	if err != nil {
		return 0, 0, nil, err
	}
	return delta, length, rest, nil
}

func extendNibble(nibble int, data []byte) (int, []byte, error) {
	switch nibble {
	case 13:
		if len(data) < 1 {
			return 0, nil, ErrBadOption
		}
		return int(data[0]) + 13, data[1:], nil
	case 14:
		if len(data) < 2 {
			return 0, nil, ErrBadOption
		}
		return int(binary.BigEndian.Uint16(data)) + 269, data[2:], nil
	case 15:
		return 0, nil, ErrBadOption
	default:
		return nibble, data, nil
	}
}
