package scclient

import (
	"encoding/json"
	"errors"
)

// errNonObjectPayload marks a payload that is valid JSON but not an
// object or array at the top level. Callers treat this as a protocol
// violation rather than a parse failure.
var errNonObjectPayload = errors.New("scclient: top-level payload is not a JSON object or array")

// Codec encodes outbound packets and decodes inbound payloads. The
// active codec is shared across an entire socket's lifetime and must be
// safe to call from the socket's worker goroutine only — callers never
// invoke it directly.
type Codec interface {
	// Encode returns the wire bytes for a single outbound packet.
	Encode(p *packet) ([]byte, error)
	// Decode parses a received message into zero or more packets. A
	// batched (array) payload decodes to more than one packet; a plain
	// object decodes to exactly one.
	Decode(payload []byte) ([]*packet, error)
	// IsBinary reports whether Encode produces binary frames (true) or
	// UTF-8 text frames (false).
	IsBinary() bool
}

// jsonCodec is the identity codec: packets are JSON objects on the wire,
// verbatim.
type jsonCodec struct{}

// NewJSONCodec returns the default text codec used when no WithCodec
// option is supplied.
func NewJSONCodec() Codec { return jsonCodec{} }

func (jsonCodec) Encode(p *packet) ([]byte, error) {
	return json.Marshal(p)
}

func (jsonCodec) Decode(payload []byte) ([]*packet, error) {
	trimmed := trimLeadingSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, err
		}
		packets := make([]*packet, 0, len(raw))
		for _, elem := range raw {
			var p packet
			if err := json.Unmarshal(elem, &p); err != nil {
				return nil, err
			}
			packets = append(packets, &p)
		}
		return packets, nil
	}

	if len(trimmed) > 0 && trimmed[0] != '{' {
		var v any
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		return nil, errNonObjectPayload
	}

	var p packet
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return []*packet{&p}, nil
}

func (jsonCodec) IsBinary() bool { return false }

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return b[i:]
		}
	}
	return b[i:]
}
