package scclient

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// binaryCodec is a Go port of sc-codec-min-bin: MessagePack framing with
// field-alias compression for #publish, emit, and response packets.
// Unlike the original C++ codec, this #publish compression round-trips
// the channel name instead of silently dropping it.
type binaryCodec struct{}

// NewBinaryCodec returns the compressed MessagePack codec selected via
// WithCodec(NewBinaryCodec()).
func NewBinaryCodec() Codec { return binaryCodec{} }

func (binaryCodec) IsBinary() bool { return true }

func (binaryCodec) Encode(p *packet) ([]byte, error) {
	obj, err := packetToMap(p)
	if err != nil {
		return nil, err
	}
	compressSinglePacket(obj)
	return msgpack.Marshal(obj)
}

func (binaryCodec) Decode(payload []byte) ([]*packet, error) {
	var decoded any
	if err := msgpack.Unmarshal(payload, &decoded); err != nil {
		return nil, err
	}

	switch v := decoded.(type) {
	case []any:
		packets := make([]*packet, 0, len(v))
		for _, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("scclient: batched element is not an object")
			}
			decompressSinglePacket(obj)
			p, err := mapToPacket(obj)
			if err != nil {
				return nil, err
			}
			packets = append(packets, p)
		}
		return packets, nil
	case map[string]any:
		decompressSinglePacket(v)
		p, err := mapToPacket(v)
		if err != nil {
			return nil, err
		}
		return []*packet{p}, nil
	default:
		return nil, fmt.Errorf("scclient: decoded payload is neither object nor array")
	}
}

// compressSinglePacket rewrites one decoded packet object in place,
// applying publish, then emit, then response compression. The three are
// mutually exclusive by construction: publish and emit both key off
// "event" but publish's check is specific to "#publish" and erases the
// fields emit would otherwise key off; response keys off "rid", which
// publish/emit packets never carry.
func compressSinglePacket(obj map[string]any) {
	compressPublish(obj)
	compressEmit(obj)
	compressResponse(obj)
}

func decompressSinglePacket(obj map[string]any) {
	decompressEmit(obj)
	decompressPublish(obj)
	decompressResponse(obj)
}

func compressPublish(obj map[string]any) {
	event, _ := obj["event"].(string)
	if event != eventPublish {
		return
	}
	data, ok := obj["data"].(map[string]any)
	if !ok {
		return
	}

	a := []any{data["channel"], data["data"]}
	if cid := toUint64(obj["cid"]); cid != 0 {
		a = append(a, cid)
	}
	obj["p"] = a

	delete(obj, "event")
	delete(obj, "data")
	delete(obj, "cid")
}

func decompressPublish(obj map[string]any) {
	p, ok := obj["p"].([]any)
	if !ok {
		return
	}

	obj["event"] = eventPublish
	var channel, innerData any
	if len(p) > 0 {
		channel = p[0]
	}
	if len(p) > 1 {
		innerData = p[1]
	}
	obj["data"] = map[string]any{"channel": channel, "data": innerData}

	if len(p) > 2 {
		obj["cid"] = p[2]
	}
	delete(obj, "p")
}

func compressEmit(obj map[string]any) {
	event, ok := obj["event"].(string)
	if !ok || event == "" {
		return
	}

	a := []any{event, obj["data"]}
	if cid := toUint64(obj["cid"]); cid != 0 {
		a = append(a, cid)
	}
	obj["e"] = a

	delete(obj, "event")
	delete(obj, "data")
	delete(obj, "cid")
}

func decompressEmit(obj map[string]any) {
	e, ok := obj["e"].([]any)
	if !ok || len(e) < 2 {
		return
	}

	obj["event"] = e[0]
	obj["data"] = e[1]
	if len(e) > 2 {
		obj["cid"] = e[2]
	}
	delete(obj, "e")
}

func compressResponse(obj map[string]any) {
	rid := toUint64(obj["rid"])
	if rid == 0 {
		return
	}

	obj["r"] = []any{rid, obj["error"], obj["data"]}

	delete(obj, "rid")
	delete(obj, "error")
	delete(obj, "data")
}

func decompressResponse(obj map[string]any) {
	r, ok := obj["r"].([]any)
	if !ok || len(r) < 3 {
		return
	}

	obj["rid"] = r[0]
	if r[1] != nil {
		obj["error"] = r[1]
	}
	if r[2] != nil {
		obj["data"] = r[2]
	}
	delete(obj, "r")
}

// packetToMap converts a typed packet into the generic map the
// compression rewrites operate on.
func packetToMap(p *packet) (map[string]any, error) {
	obj := make(map[string]any, 5)

	if p.hasEvent() {
		obj["event"] = p.Event
	}
	if p.CID != 0 {
		obj["cid"] = p.CID
	}
	if p.RID != 0 {
		obj["rid"] = p.RID
	}
	if len(p.Data) > 0 {
		var v any
		if err := json.Unmarshal(p.Data, &v); err != nil {
			return nil, err
		}
		obj["data"] = v
	}
	if len(p.Error) > 0 {
		var v any
		if err := json.Unmarshal(p.Error, &v); err != nil {
			return nil, err
		}
		obj["error"] = v
	}

	return obj, nil
}

// mapToPacket converts a generic (post-decompression) map back into a
// typed packet.
func mapToPacket(obj map[string]any) (*packet, error) {
	p := &packet{}

	if event, ok := obj["event"].(string); ok {
		p.Event = event
	}
	p.CID = toUint64(obj["cid"])
	p.RID = toUint64(obj["rid"])

	if data, ok := obj["data"]; ok {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		p.Data = raw
	}
	if errVal, ok := obj["error"]; ok && errVal != nil {
		raw, err := json.Marshal(errVal)
		if err != nil {
			return nil, err
		}
		p.Error = raw
	}

	return p, nil
}

// toUint64 normalizes the numeric types msgpack.Unmarshal may produce
// for a decoded integer (int8...int64, uint8...uint64, float32/64) into
// a uint64, returning 0 for anything else (including nil/absent).
func toUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case uint32:
		return uint64(n)
	case uint16:
		return uint64(n)
	case uint8:
		return uint64(n)
	case int64:
		return uint64(n)
	case int32:
		return uint64(n)
	case int16:
		return uint64(n)
	case int8:
		return uint64(n)
	case int:
		return uint64(n)
	case float64:
		return uint64(n)
	case float32:
		return uint64(n)
	default:
		return 0
	}
}
