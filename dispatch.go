package scclient

import (
	"encoding/json"
	"fmt"
	"time"
)

// dispatch classifies one decoded packet by its event/rid shape and
// routes it. It only ever runs on the actor goroutine, as part of
// onMessage.
func (s *Socket) dispatch(p *packet) {
	switch {
	case p.Event == eventPublish:
		s.handlePublish(p)
	case p.Event == eventRemoveAuthTok:
		s.handleRemoveToken()
	case p.Event == eventSetAuthToken:
		s.handleSetToken(p)
	case p.Event != "":
		s.handleInboundEvent(p)
	case p.Event == "" && p.RID == 1:
		s.handleAuthenticated(p)
	default:
		s.handleAckReceive(p)
	}
}

func (s *Socket) handlePublish(p *packet) {
	var env struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(p.Data, &env); err != nil {
		s.emitError(ProtocolError, err)
		return
	}

	ch, ok := s.channels[env.Channel]
	if !ok {
		return
	}

	var data any
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			s.emitError(ProtocolError, err)
			return
		}
	}
	ch.bus.emit(channelEventMessage, data)
}

func (s *Socket) handleRemoveToken() {
	s.signedAuthToken = ""
	s.authToken = nil
	s.bus.emit(EventDeauthenticate, nil)
}

func (s *Socket) handleSetToken(p *packet) {
	var body struct {
		Token       string  `json:"token"`
		PingTimeout float64 `json:"pingTimeout"`
	}
	if err := json.Unmarshal(p.Data, &body); err != nil {
		s.emitError(ProtocolError, err)
		return
	}
	if body.PingTimeout > 0 {
		s.pingTimeout = time.Duration(body.PingTimeout) * time.Millisecond
	}

	payload, err := decodeJWTPayload(body.Token)
	if err != nil {
		s.emitError(ProtocolError, err)
		return
	}

	wasUnauthenticated := s.signedAuthToken == ""
	s.signedAuthToken = body.Token
	s.authToken = payload

	if wasUnauthenticated {
		s.bus.emit(EventAuthenticate, body.Token)
		s.resubscribePendingLocked()
	}
	s.bus.emit(EventAuthTokenChange, body.Token)
}

func (s *Socket) handleInboundEvent(p *packet) {
	var data any
	if len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, &data); err != nil {
			s.emitError(ProtocolError, err)
			return
		}
	}

	var respond func(any)
	if p.CID != 0 {
		cid := p.CID
		respond = func(resp any) {
			s.do(func() { s.respondToEvent(cid, resp) })
		}
	}

	s.bus.emit(EventEmit, InboundEvent{Name: p.Event, Data: data, Respond: respond})
}

func (s *Socket) respondToEvent(cid uint64, resp any) {
	if s.state != StateOpen {
		return
	}
	raw, err := encodeData(resp)
	if err != nil {
		s.emitError(ProtocolError, err)
		return
	}
	s.sendPacketLocked(&packet{RID: cid, Data: raw})
}

func (s *Socket) handleAuthenticated(p *packet) {
	var data any
	if len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, &data); err != nil {
			s.emitError(ProtocolError, err)
			return
		}
	}
	if m, ok := data.(map[string]any); ok {
		if pt, ok := m["pingTimeout"].(float64); ok && pt > 0 {
			s.pingTimeout = time.Duration(pt) * time.Millisecond
		}
	}

	s.resetPingTimeout()
	// state is already StateOpen as of handleDialSuccess; the handshake
	// ack only gates the events below, which depend on the server
	// having accepted the app-level handshake.
	s.backoff.reset()
	s.resubscribePendingLocked()
	s.bus.emit(EventConnect, data)
}

func (s *Socket) handleAckReceive(p *packet) {
	item, ok := s.pending.take(p.RID)
	if !ok {
		s.emitError(UnexpectedRid, nil)
		return
	}

	if len(p.Error) > 0 && string(p.Error) != "null" {
		var errVal any
		json.Unmarshal(p.Error, &errVal)
		scerr := &SCError{Kind: ResponseError, CallID: p.RID, Cause: fmt.Errorf("%v", errVal), Timestamp: time.Now()}
		handler := item.handler
		go handler(scerr, errVal)
		return
	}

	var data any
	if len(p.Data) > 0 {
		if err := json.Unmarshal(p.Data, &data); err != nil {
			s.emitError(ProtocolError, err)
			return
		}
	}
	if data == nil {
		data = map[string]any{}
	}
	handler := item.handler
	go handler(nil, data)
}
