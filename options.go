package scclient

import "time"

// Option configures a Socket at construction time.
type Option func(*ConnectOptions)

// WithHost sets the server hostname.
func WithHost(host string) Option {
	return func(o *ConnectOptions) { o.Host = host }
}

// WithPort sets the server port.
func WithPort(port int) Option {
	return func(o *ConnectOptions) { o.Port = port }
}

// WithPath sets the WebSocket endpoint path. Defaults to "/socketcluster/".
func WithPath(path string) Option {
	return func(o *ConnectOptions) { o.Path = path }
}

// WithSecure selects wss:// over ws://.
func WithSecure(secure bool) Option {
	return func(o *ConnectOptions) { o.Secure = secure }
}

// WithTLSSkipVerify disables server certificate verification.
func WithTLSSkipVerify(skip bool) Option {
	return func(o *ConnectOptions) { o.TLSSkipVerify = skip }
}

// WithUserAgent overrides the handshake request's User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *ConnectOptions) { o.UserAgent = ua }
}

// WithAutoReconnect enables or disables automatic reconnection.
func WithAutoReconnect(enabled bool) Option {
	return func(o *ConnectOptions) { o.AutoReconnect = enabled }
}

// WithAutoReconnectOptions tunes the reconnect delay calculation.
func WithAutoReconnectOptions(opts AutoReconnectOptions) Option {
	return func(o *ConnectOptions) { o.AutoReconnectOptions = opts }
}

// WithAckTimeout bounds how long an emit waits for a response.
func WithAckTimeout(d time.Duration) Option {
	return func(o *ConnectOptions) { o.AckTimeout = d }
}

// WithPerMessageDeflate enables the WebSocket compression extension.
func WithPerMessageDeflate(enabled bool) Option {
	return func(o *ConnectOptions) { o.PerMessageDeflate = enabled }
}

// WithCodec selects the wire framing, NewJSONCodec() or NewBinaryCodec().
func WithCodec(c Codec) Option {
	return func(o *ConnectOptions) { o.Codec = c }
}

// WithErrorHandler registers an ambient sink for protocol-level errors,
// in addition to the error event. LogErrors is a ready-made one.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *ConnectOptions) { o.ErrorHandler = h }
}

// SubscribeOption configures a channel subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	waitForAuth bool
	data        any
}

func subscribeDefaults() subscribeOptions {
	return subscribeOptions{}
}

// WithWaitForAuth defers the #subscribe call until the socket has a
// signed auth token.
func WithWaitForAuth() SubscribeOption {
	return func(o *subscribeOptions) { o.waitForAuth = true }
}

// WithSubscriptionData attaches data to the #subscribe call, for servers
// that authorize subscriptions based on request-time parameters.
func WithSubscriptionData(data any) SubscribeOption {
	return func(o *subscribeOptions) { o.data = data }
}

// EmitOption configures a single Emit call.
type EmitOption func(*emitOptions)

type emitOptions struct {
	noTimeout bool
}

func emitDefaults() emitOptions {
	return emitOptions{}
}

// WithNoTimeout disables the ack timeout for one emit, regardless of the
// socket's configured AckTimeout.
func WithNoTimeout() EmitOption {
	return func(o *emitOptions) { o.noTimeout = true }
}
