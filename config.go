package scclient

import (
	"fmt"
	"os"
	"time"
)

// ConnectOptions configures a Socket's transport and protocol behavior.
// Zero value plus defaultConnectOptions() is a usable configuration
// against a plaintext localhost server.
type ConnectOptions struct {
	// Host is the SocketCluster server's hostname.
	// Fallback: SOCKETCLUSTER_HOST environment variable, then "localhost".
	Host string
	// Port is the server's port. Fallback: SOCKETCLUSTER_PORT environment
	// variable. Defaults to 443 when Secure is true, 80 otherwise.
	Port int
	// Path is the WebSocket endpoint path.
	Path string
	// Secure selects wss:// over ws://.
	Secure bool
	// TLSSkipVerify disables server certificate verification. Only ever
	// set this for local development against a self-signed server.
	TLSSkipVerify bool
	// UserAgent overrides the User-Agent header sent on the handshake
	// request. Empty leaves gorilla/websocket's default.
	UserAgent string
	// AutoReconnect enables automatic reconnection after an unexpected
	// disconnect, per AutoReconnectOptions.
	AutoReconnect bool
	// AutoReconnectOptions tunes the reconnect delay. Ignored if
	// AutoReconnect is false.
	AutoReconnectOptions AutoReconnectOptions
	// AckTimeout bounds how long an emit waits for a response before its
	// handler is invoked with an AckTimeout error. Zero disables the
	// timeout for that emit (see WithNoTimeout).
	AckTimeout time.Duration
	// PerMessageDeflate enables the WebSocket compression extension.
	PerMessageDeflate bool
	// Codec selects the wire framing. Defaults to NewJSONCodec().
	Codec Codec
	// AuthTokenName is the key under which a persisted signed auth token
	// would be stored by a caller wiring up its own persistence; scclient
	// does not persist tokens itself.
	AuthTokenName string
	// ErrorHandler, if set, receives every ProtocolError, JSONParseFailure,
	// and UnexpectedRid in addition to their delivery on the error event.
	ErrorHandler ErrorHandler
}

func defaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Path:                 "/socketcluster/",
		AutoReconnect:        true,
		AutoReconnectOptions: DefaultAutoReconnectOptions(),
		AckTimeout:           10 * time.Second,
		Codec:                NewJSONCodec(),
		AuthTokenName:        "socketcluster.authToken",
	}
}

// resolveOptions fills empty fields from environment variables and
// applies the host, port, path and codec defaults. It performs no
// validation and always returns a nil error.
func resolveOptions(opts ConnectOptions) (ConnectOptions, error) {
	if opts.Host == "" {
		opts.Host = os.Getenv("SOCKETCLUSTER_HOST")
	}
	if opts.Port == 0 {
		if p := os.Getenv("SOCKETCLUSTER_PORT"); p != "" {
			fmt.Sscanf(p, "%d", &opts.Port)
		}
	}
	if opts.Port == 0 {
		if opts.Secure {
			opts.Port = 443
		} else {
			opts.Port = 80
		}
	}
	if opts.Codec == nil {
		opts.Codec = NewJSONCodec()
	}
	if opts.Path == "" {
		opts.Path = "/socketcluster/"
	}

	if opts.Host == "" {
		opts.Host = "localhost"
	}

	return opts, nil
}
