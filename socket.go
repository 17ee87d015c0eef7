package scclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ConnectionState is a Socket's position in the CLOSED/CONNECTING/OPEN
// state machine.
type ConnectionState int32

const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateOpen
)

func (s ConnectionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int32(s))
	}
}

// EventHandler receives a server-initiated event's name, decoded data,
// and (if the server attached a cid) a function to respond.
type EventHandler func(event string, data any, respond func(any))

// Socket is a connection to a SocketCluster server. All exported methods
// are safe to call from any goroutine; internally, every state mutation
// is serialized onto one actor goroutine.
type Socket struct {
	opts ConnectOptions
	bus  *eventBus

	cmds     chan func()
	closedCh chan struct{}

	stateAtomic atomic.Int32

	// actor-owned state below; only ever touched inside a closure
	// executed by run().
	state           ConnectionState
	transport       transport
	queue           *egressQueue
	pending         *pendingTable
	channels        map[string]*Channel
	backoff         *backoff
	nextCallID      uint64
	signedAuthToken string
	authToken       json.RawMessage
	pingTimeout     time.Duration
	pingTimer       *time.Timer
	reconnectTimer  *time.Timer
	closedByUser    bool
	stopped         bool
}

// New constructs a Socket. The socket is not connected until Connect is
// called.
func New(opts ...Option) (*Socket, error) {
	cfg := defaultConnectOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg, err := resolveOptions(cfg)
	if err != nil {
		return nil, err
	}

	s := &Socket{
		opts:     cfg,
		bus:      newEventBus(),
		cmds:     make(chan func()),
		closedCh: make(chan struct{}),
		channels: make(map[string]*Channel),
		backoff:  newBackoff(cfg.AutoReconnectOptions),
	}
	s.pending = newPendingTable(s.do)
	s.pingTimeout = cfg.AckTimeout
	go s.run()
	return s, nil
}

func (s *Socket) run() {
	for fn := range s.cmds {
		fn()
		if s.stopped {
			close(s.closedCh)
			return
		}
	}
}

// do schedules fn on the actor goroutine, returning immediately if the
// socket has already finished closing.
func (s *Socket) do(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.closedCh:
	}
}

// State reports the socket's current connection state.
func (s *Socket) State() ConnectionState {
	return ConnectionState(s.stateAtomic.Load())
}

// AuthToken returns the decoded JWT payload of the last #setAuthToken,
// or nil if unauthenticated.
func (s *Socket) AuthToken() json.RawMessage {
	result := make(chan json.RawMessage, 1)
	s.do(func() { result <- s.authToken })
	select {
	case v := <-result:
		return v
	case <-s.closedCh:
		return nil
	}
}

// On subscribes to a socket-level event; see EventID for the full list.
func (s *Socket) On(evt EventID, fn func(any)) Subscription {
	return s.bus.on(evt, fn)
}

// OnEvent registers fn as a handler for server-initiated events not
// reserved by the protocol; each call adds another handler. Equivalent to
// s.On(EventEmit, ...) with the InboundEvent unpacked for convenience.
func (s *Socket) OnEvent(fn EventHandler) Subscription {
	return s.bus.on(EventEmit, func(payload any) {
		evt, ok := payload.(InboundEvent)
		if !ok {
			return
		}
		fn(evt.Name, evt.Data, evt.Respond)
	})
}

// Connect dials the server and performs the application handshake. It
// returns once the dial has been accepted by the actor; connection
// outcomes (success, failure, eventual reconnects) are reported through
// the connect/connectAbort/disconnect events.
func (s *Socket) Connect() error {
	errCh := make(chan error, 1)
	s.do(func() { errCh <- s.connectLocked() })
	select {
	case err := <-errCh:
		return err
	case <-s.closedCh:
		return ErrClosed
	}
}

func (s *Socket) connectLocked() error {
	if s.stopped {
		return ErrClosed
	}
	if s.state != StateClosed {
		return ErrAlreadyConnected
	}

	s.state = StateConnecting
	s.stateAtomic.Store(int32(StateConnecting))
	s.nextCallID = 1
	s.closedByUser = false
	s.bus.emit(EventConnecting, nil)

	go s.dial()
	return nil
}

func (s *Socket) dial() {
	tr := newWSTransport(dialOptions{
		tlsSkipVerify:     s.opts.TLSSkipVerify,
		perMessageDeflate: s.opts.PerMessageDeflate,
		handshakeTimeout:  defaultDialOptions.handshakeTimeout,
		userAgent:         s.opts.UserAgent,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialOptions.handshakeTimeout)
	defer cancel()

	err := tr.dial(ctx, buildURL(s.opts), nil)
	if err != nil {
		s.do(func() { s.handleConnectFailure(err) })
		return
	}
	s.do(func() { s.handleDialSuccess(tr) })
}

func buildURL(o ConnectOptions) string {
	scheme := "ws"
	if o.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, o.Host, o.Port, o.Path)
}

func (s *Socket) handleConnectFailure(err error) {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.stateAtomic.Store(int32(StateClosed))
	s.bus.emit(EventConnectAbort, err)
	s.maybeScheduleReconnect()
}

func (s *Socket) handleDialSuccess(tr transport) {
	if s.state != StateConnecting {
		tr.close(closeNormal)
		return
	}

	s.transport = tr
	s.queue = newEgressQueue()
	s.state = StateOpen
	s.stateAtomic.Store(int32(StateOpen))
	go s.runWritePump(tr, s.queue)
	go tr.readLoop(
		func(data []byte, binary bool) { s.do(func() { s.onMessage(data, binary) }) },
		func(err error) { s.do(func() { s.handleDisconnect(err) }) },
	)

	cid := s.nextCID()
	s.sendPacketLocked(&packet{Event: eventHandshake, Data: json.RawMessage("null"), CID: cid})
	s.armPingTimeout()
}

func (s *Socket) runWritePump(tr transport, q *egressQueue) {
	for {
		frame, ok := q.pop()
		if !ok {
			return
		}
		if err := tr.writeMessage(frame.data, frame.binary); err != nil {
			return
		}
	}
}

func (s *Socket) onMessage(data []byte, binary bool) {
	s.bus.emit(EventRaw, data)

	if !binary && len(data) == 2 && data[0] == '#' && data[1] == '1' {
		s.resetPingTimeout()
		s.queue.push(outboundFrame{data: []byte(pongFrame), binary: false})
		return
	}

	packets, err := s.opts.Codec.Decode(data)
	if err != nil {
		if errors.Is(err, errNonObjectPayload) {
			s.emitError(ProtocolError, err)
		} else {
			s.emitError(JSONParseFailure, err)
		}
		return
	}
	for _, p := range packets {
		s.dispatch(p)
	}
}

func (s *Socket) handleDisconnect(err error) {
	if s.state == StateClosed {
		return
	}
	wasOpen := s.state == StateOpen
	s.state = StateClosed
	s.stateAtomic.Store(int32(StateClosed))
	s.teardownConnection()

	if wasOpen {
		s.bus.emit(EventDisconnect, err)
	} else {
		s.bus.emit(EventConnectAbort, err)
	}
	s.maybeScheduleReconnect()
}

func (s *Socket) maybeScheduleReconnect() {
	if s.closedByUser || s.stopped || !s.opts.AutoReconnect {
		return
	}
	d := s.backoff.next()
	s.reconnectTimer = time.AfterFunc(d, func() {
		s.do(func() { s.connectLocked() })
	})
}

func (s *Socket) teardownConnection() {
	if s.pingTimer != nil {
		s.pingTimer.Stop()
		s.pingTimer = nil
	}
	if s.queue != nil {
		s.queue.clear()
		s.queue.close()
	}
	for _, item := range s.pending.drain() {
		handler := item.handler
		go handler(newSCError(Cancelled, nil), nil)
	}
	s.suspendChannelsLocked()
	s.transport = nil
}

// Close terminates the socket, returning any error from closing the
// underlying transport. It is terminal: a closed socket cannot be
// reconnected; the actor goroutine exits once its command loop
// observes the closed flag.
func (s *Socket) Close() error {
	errCh := make(chan error, 1)
	s.do(func() { errCh <- s.closeLocked() })
	select {
	case err := <-errCh:
		return err
	case <-s.closedCh:
		return nil
	}
}

// Disconnect is an alias for Close.
func (s *Socket) Disconnect() error {
	return s.Close()
}

func (s *Socket) closeLocked() error {
	if s.stopped {
		return nil
	}
	s.closedByUser = true
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	wasConnected := s.state != StateClosed
	wasOpen := s.state == StateOpen
	s.state = StateClosed
	s.stateAtomic.Store(int32(StateClosed))

	var closeErr error
	if wasConnected && s.transport != nil {
		closeErr = s.transport.close(closeNormal)
	}
	s.teardownConnection()
	s.stopped = true
	if wasOpen {
		s.bus.emit(EventDisconnect, nil)
	}
	return closeErr
}

// Emit sends event with data, invoking handler with the server's
// acknowledgement (or an error) if handler is non-nil.
func (s *Socket) Emit(event string, data any, handler ResponseHandler, opts ...EmitOption) error {
	o := emitDefaults()
	for _, opt := range opts {
		opt(&o)
	}
	encoded, err := encodeData(data)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	s.do(func() { errCh <- s.emitLocked(event, encoded, handler, o) })
	select {
	case err := <-errCh:
		return err
	case <-s.closedCh:
		return ErrClosed
	}
}

func (s *Socket) emitLocked(event string, data json.RawMessage, handler ResponseHandler, o emitOptions) error {
	if s.state != StateOpen {
		return ErrNotConnected
	}

	p := &packet{Event: event, Data: data}
	if handler != nil {
		cid := s.nextCID()
		p.CID = cid
		timeout := s.opts.AckTimeout
		if o.noTimeout {
			timeout = 0
		}
		s.pending.add(cid, handler, timeout, s.handleAckTimeout)
	}
	s.sendPacketLocked(p)
	return nil
}

func (s *Socket) handleAckTimeout(cid uint64) {
	item, ok := s.pending.take(cid)
	if !ok {
		return
	}
	msg := fmt.Sprintf("no ack for call id %d", cid)
	handler := item.handler
	go handler(newSCError(AckTimeout, fmt.Errorf(msg)), map[string]any{
		"error": map[string]any{"message": msg},
	})
}

func (s *Socket) sendPacketLocked(p *packet) {
	raw, err := s.opts.Codec.Encode(p)
	if err != nil {
		s.emitError(ProtocolError, err)
		return
	}
	s.queue.push(outboundFrame{data: raw, binary: s.opts.Codec.IsBinary()})
}

func (s *Socket) nextCID() uint64 {
	cid := s.nextCallID
	s.nextCallID++
	return cid
}

func (s *Socket) armPingTimeout() {
	if s.pingTimer != nil {
		s.pingTimer.Stop()
	}
	s.pingTimer = time.AfterFunc(s.pingTimeout, func() {
		s.do(s.pingTimeoutFired)
	})
}

func (s *Socket) resetPingTimeout() {
	s.armPingTimeout()
}

func (s *Socket) pingTimeoutFired() {
	if s.state != StateOpen {
		return
	}
	if s.transport != nil {
		s.transport.close(closeProtocolError)
	}
	s.handleDisconnect(fmt.Errorf("scclient: ping timeout after %s", s.pingTimeout))
}

func (s *Socket) emitError(kind ErrorKind, cause error) {
	e := newSCError(kind, cause)
	s.bus.emit(EventError, e)
	if s.opts.ErrorHandler != nil {
		go s.opts.ErrorHandler(e)
	}
}
