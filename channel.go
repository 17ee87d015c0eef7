package scclient

import (
	"sync"
	"time"
)

// ChannelState is a Channel's position in its subscription lifecycle.
type ChannelState int32

const (
	ChannelUnsubscribed ChannelState = iota
	ChannelPending
	ChannelSubscribed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelUnsubscribed:
		return "unsubscribed"
	case ChannelPending:
		return "pending"
	case ChannelSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

const (
	channelEventMessage       = "message"
	channelEventSubscribe     = "subscribe"
	channelEventSubscribeFail = "subscribeFail"
	channelEventStateChange   = "stateChange"
	channelEventUnsubscribe   = "unsubscribe"
)

// Channel is a named, server-maintained pub/sub topic. A Channel is
// returned by Socket.Subscribe and shared between the socket's registry
// and the caller. It holds a back-reference to its socket rather than
// duplicating the socket's mutation logic; Go's garbage collector makes
// the resulting reference cycle harmless.
type Channel struct {
	name   string
	socket *Socket
	bus    *eventBus

	mu          sync.RWMutex
	state       ChannelState
	waitForAuth bool
	data        any
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// State returns the channel's current subscription state.
func (c *Channel) State() ChannelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Watch registers fn to receive every #publish delivered to this
// channel.
func (c *Channel) Watch(fn func(data any)) Subscription {
	return c.bus.on(channelEventMessage, func(payload any) { fn(payload) })
}

// OnSubscribe registers fn to run when the channel becomes SUBSCRIBED.
func (c *Channel) OnSubscribe(fn func()) Subscription {
	return c.bus.on(channelEventSubscribe, func(any) { fn() })
}

// OnSubscribeFail registers fn to run when a #subscribe call is
// rejected.
func (c *Channel) OnSubscribeFail(fn func(err *SCError)) Subscription {
	return c.bus.on(channelEventSubscribeFail, func(payload any) {
		if err, ok := payload.(*SCError); ok {
			fn(err)
		}
	})
}

// OnStateChange registers fn to run on every state transition.
func (c *Channel) OnStateChange(fn func(ChannelStateChange)) Subscription {
	return c.bus.on(channelEventStateChange, func(payload any) {
		if chg, ok := payload.(ChannelStateChange); ok {
			fn(chg)
		}
	})
}

// OnUnsubscribe registers fn to run when the channel leaves SUBSCRIBED
// or PENDING, whether by explicit Unsubscribe or by the socket closing.
func (c *Channel) OnUnsubscribe(fn func()) Subscription {
	return c.bus.on(channelEventUnsubscribe, func(any) { fn() })
}

// Unsubscribe unsubscribes the channel, routed through the socket
// facade.
func (c *Channel) Unsubscribe() { c.socket.Unsubscribe(c.name) }

// Destroy detaches all local watchers, unsubscribes, and removes the
// channel from the socket's registry.
func (c *Channel) Destroy() { c.socket.DestroyChannel(c.name) }

// Subscribe idempotently registers interest in name, attempting
// #subscribe immediately if the subscribe gate is satisfied.
func (s *Socket) Subscribe(name string, opts ...SubscribeOption) *Channel {
	o := subscribeDefaults()
	for _, opt := range opts {
		opt(&o)
	}

	result := make(chan *Channel, 1)
	s.do(func() { result <- s.subscribeLocked(name, o) })
	select {
	case ch := <-result:
		return ch
	case <-s.closedCh:
		return &Channel{name: name, socket: s, bus: newEventBus()}
	}
}

func (s *Socket) subscribeLocked(name string, o subscribeOptions) *Channel {
	ch, exists := s.channels[name]
	if !exists {
		ch = &Channel{name: name, socket: s, bus: newEventBus()}
		s.channels[name] = ch
	}

	ch.mu.Lock()
	ch.waitForAuth = o.waitForAuth
	ch.data = o.data
	if ch.state == ChannelUnsubscribed {
		ch.state = ChannelPending
	}
	ch.mu.Unlock()

	s.trySubscribe(ch)
	return ch
}

// trySubscribe sends #subscribe for ch if it is PENDING and the
// subscribe gate is satisfied: the socket is OPEN, and either the
// channel does not require auth or the socket already has a signed auth
// token. Re-run on every OPEN transition and every authenticate event.
func (s *Socket) trySubscribe(ch *Channel) {
	ch.mu.RLock()
	state := ch.state
	waitForAuth := ch.waitForAuth
	data := ch.data
	ch.mu.RUnlock()

	if state != ChannelPending {
		return
	}
	if s.state != StateOpen {
		return
	}
	if waitForAuth && s.signedAuthToken == "" {
		return
	}

	payload := map[string]any{"channel": ch.name}
	if data != nil {
		payload["data"] = data
	}
	raw, err := encodeData(payload)
	if err != nil {
		s.emitError(ProtocolError, err)
		return
	}

	cid := s.nextCID()
	s.pending.add(cid, func(err error, data any) {
		s.do(func() { s.handleSubscribeAck(ch, err, data) })
	}, s.opts.AckTimeout, s.handleAckTimeout)
	s.sendPacketLocked(&packet{Event: eventSubscribe, Data: raw, CID: cid})
}

func (s *Socket) handleSubscribeAck(ch *Channel, err error, data any) {
	if err != nil {
		ch.mu.Lock()
		old := ch.state
		ch.state = ChannelUnsubscribed
		ch.mu.Unlock()

		if old == ChannelUnsubscribed {
			return
		}
		scerr := &SCError{Kind: ResponseError, Channel: ch.name, Cause: err, Timestamp: time.Now()}
		ch.bus.emit(channelEventSubscribeFail, scerr)
		ch.bus.emit(channelEventStateChange, ChannelStateChange{Channel: ch.name, Old: old, New: ChannelUnsubscribed})
		s.bus.emit(EventSubscribeFail, scerr)
		s.bus.emit(EventSubscriptionStateChange, ChannelStateChange{Channel: ch.name, Old: old, New: ChannelUnsubscribed})
		return
	}

	ch.mu.Lock()
	old := ch.state
	ch.state = ChannelSubscribed
	ch.mu.Unlock()

	if old == ChannelSubscribed {
		return
	}
	ch.bus.emit(channelEventSubscribe, ch.name)
	ch.bus.emit(channelEventStateChange, ChannelStateChange{Channel: ch.name, Old: old, New: ChannelSubscribed})
	s.bus.emit(EventSubscribe, ch.name)
	s.bus.emit(EventSubscriptionStateChange, ChannelStateChange{Channel: ch.name, Old: old, New: ChannelSubscribed})
}

// Unsubscribe demotes name to UNSUBSCRIBED and, if the socket is OPEN,
// sends #unsubscribe.
func (s *Socket) Unsubscribe(name string) {
	s.do(func() { s.unsubscribeLocked(name) })
}

func (s *Socket) unsubscribeLocked(name string) {
	ch, ok := s.channels[name]
	if !ok {
		return
	}

	ch.mu.Lock()
	old := ch.state
	ch.state = ChannelUnsubscribed
	ch.mu.Unlock()

	if old == ChannelUnsubscribed {
		return
	}

	ch.bus.emit(channelEventUnsubscribe, nil)
	ch.bus.emit(channelEventStateChange, ChannelStateChange{Channel: name, Old: old, New: ChannelUnsubscribed})
	s.bus.emit(EventUnsubscribe, name)
	s.bus.emit(EventSubscriptionStateChange, ChannelStateChange{Channel: name, Old: old, New: ChannelUnsubscribed})

	if s.state == StateOpen {
		raw, _ := encodeData(name)
		s.sendPacketLocked(&packet{Event: eventUnsubscribe, Data: raw})
	}
}

// DestroyChannel detaches all watchers, unsubscribes, and removes name
// from the registry.
func (s *Socket) DestroyChannel(name string) {
	s.do(func() {
		s.unsubscribeLocked(name)
		if ch, ok := s.channels[name]; ok {
			ch.bus.mu.Lock()
			for evt := range ch.bus.listeners {
				delete(ch.bus.listeners, evt)
			}
			ch.bus.mu.Unlock()
		}
		delete(s.channels, name)
	})
}

// suspendChannelsLocked demotes every SUBSCRIBED or PENDING channel to
// PENDING on a CLOSED transition.
func (s *Socket) suspendChannelsLocked() {
	for _, ch := range s.channels {
		ch.mu.Lock()
		old := ch.state
		if old != ChannelSubscribed && old != ChannelPending {
			ch.mu.Unlock()
			continue
		}
		ch.state = ChannelPending
		ch.mu.Unlock()

		ch.bus.emit(channelEventUnsubscribe, nil)
		ch.bus.emit(channelEventStateChange, ChannelStateChange{Channel: ch.name, Old: old, New: ChannelPending})
		s.bus.emit(EventUnsubscribe, ch.name)
		s.bus.emit(EventSubscriptionStateChange, ChannelStateChange{Channel: ch.name, Old: old, New: ChannelPending})
	}
}

// resubscribePendingLocked re-runs the subscribe gate for every PENDING
// channel, called on the OPEN transition and on every authenticate
// event.
func (s *Socket) resubscribePendingLocked() {
	for _, ch := range s.channels {
		s.trySubscribe(ch)
	}
}
