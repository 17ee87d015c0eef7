package scclient

import "encoding/json"

// packet is the JSON object shape exchanged on the wire. Not every
// field is present on every packet: event+data for emits and
// publishes, cid for outbound calls expecting a response, rid+data/error
// for inbound acknowledgements.
type packet struct {
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	CID   uint64          `json:"cid,omitempty"`
	RID   uint64          `json:"rid,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (p *packet) hasEvent() bool {
	return p.Event != ""
}

// encodeData marshals v into a packet's Data field. A nil v encodes to
// JSON null, matching the handshake packet's {"data": null}.
func encodeData(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("null"), nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

const (
	eventHandshake     = "#handshake"
	eventSubscribe     = "#subscribe"
	eventUnsubscribe   = "#unsubscribe"
	eventPublish       = "#publish"
	eventSetAuthToken  = "#setAuthToken"
	eventRemoveAuthTok = "#removeAuthToken"
)

// pingFrame and pongFrame are SocketCluster's two-byte heartbeat shortcut,
// sent as raw text messages that bypass the codec entirely.
const (
	pingFrame = "#1"
	pongFrame = "#2"
)
