package scclient

import (
	"sync"

	"github.com/google/uuid"
)

// EventID names one of the socket-level events a caller can subscribe to
// with On. Channel-level events (subscribe, subscribe-fail,
// subscription-state-change, unsubscribe) are also mirrored here at the
// socket level, carrying the channel name in their payload; see
// channel.go for the per-channel equivalents. Channel messages are not
// mirrored: they are delivered only through Channel.Watch.
type EventID string

const (
	// EventRaw fires for every inbound WebSocket message, undecoded,
	// before ping handling or codec decode.
	EventRaw EventID = "raw"
	// EventError fires for ProtocolError, JSONParseFailure, and
	// UnexpectedRid; payload is an *SCError.
	EventError EventID = "error"
	// EventConnecting fires on the CLOSED->CONNECTING transition.
	EventConnecting EventID = "connecting"
	// EventConnect fires once the application handshake completes;
	// payload is the handshake response data.
	EventConnect EventID = "connect"
	// EventConnectAbort fires when connecting fails before OPEN; payload
	// is the error.
	EventConnectAbort EventID = "connectAbort"
	// EventDisconnect fires on an OPEN->CLOSED transition that is not a
	// connect-time failure; payload is the error, nil for a graceful
	// close.
	EventDisconnect EventID = "disconnect"
	// EventAuthenticate fires the first time a signed auth token is set
	// from an empty state; payload is the token string.
	EventAuthenticate EventID = "authenticate"
	// EventAuthTokenChange fires on every #setAuthToken; payload is the
	// token string.
	EventAuthTokenChange EventID = "authTokenChange"
	// EventDeauthenticate fires on #removeAuthToken; payload is nil.
	EventDeauthenticate EventID = "deauthenticate"
	// EventSubscribe mirrors a channel's subscribe event; payload is the
	// channel name.
	EventSubscribe EventID = "subscribe"
	// EventSubscribeFail mirrors a channel's subscribe-fail event;
	// payload is a *SCError with Channel set.
	EventSubscribeFail EventID = "subscribeFail"
	// EventSubscriptionStateChange mirrors a channel's state-change
	// event; payload is a ChannelStateChange.
	EventSubscriptionStateChange EventID = "subscriptionStateChange"
	// EventUnsubscribe mirrors a channel's unsubscribe event; payload is
	// the channel name.
	EventUnsubscribe EventID = "unsubscribe"
	// EventEmit fires for every server-initiated event that is not one
	// of the reserved #-prefixed ones; payload is an InboundEvent.
	EventEmit EventID = "emit"
)

// InboundEvent is EventEmit's payload: a server-initiated event, plus a
// Respond closure when the server attached a cid expecting an
// acknowledgement (nil otherwise).
type InboundEvent struct {
	Name    string
	Data    any
	Respond func(any)
}

// ChannelStateChange is the payload of EventSubscriptionStateChange and
// a channel's OnStateChange.
type ChannelStateChange struct {
	Channel string
	Old     ChannelState
	New     ChannelState
}

// Subscription is a detachable handle returned by On and Channel.Watch
// and friends.
type Subscription struct {
	id  uuid.UUID
	bus *eventBus
	evt EventID
}

// Detach removes the listener. Safe to call more than once.
func (s Subscription) Detach() {
	if s.bus == nil {
		return
	}
	s.bus.off(s.evt, s.id)
}

// eventBus is a minimal typed pub-sub table, shared by Socket (socket-
// level events) and Channel (channel-level events). Registration and
// emission are both safe to call from any goroutine: unlike FSM state,
// listener registration carries no invariant that requires routing
// through the actor.
type eventBus struct {
	mu        sync.RWMutex
	listeners map[EventID]map[uuid.UUID]func(any)
}

func newEventBus() *eventBus {
	return &eventBus{listeners: make(map[EventID]map[uuid.UUID]func(any))}
}

func (b *eventBus) on(evt EventID, fn func(any)) Subscription {
	id := uuid.New()
	b.mu.Lock()
	m := b.listeners[evt]
	if m == nil {
		m = make(map[uuid.UUID]func(any))
		b.listeners[evt] = m
	}
	m[id] = fn
	b.mu.Unlock()
	return Subscription{id: id, bus: b, evt: evt}
}

func (b *eventBus) off(evt EventID, id uuid.UUID) {
	b.mu.Lock()
	delete(b.listeners[evt], id)
	b.mu.Unlock()
}

// emit runs every listener for evt in its own goroutine so a listener
// that calls back into the socket (emitting, subscribing) never
// deadlocks against the socket's own actor goroutine. The actor still
// dispatches inbound packets strictly in arrival order; this only gives
// up ordering between listener invocations once they are handed off,
// so two listeners on the same event can observe them out of order
// relative to each other.
func (b *eventBus) emit(evt EventID, payload any) {
	b.mu.RLock()
	fns := make([]func(any), 0, len(b.listeners[evt]))
	for _, fn := range b.listeners[evt] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		go fn(payload)
	}
}
