package scclient

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Sentinel errors for socket state.
var (
	ErrNotConnected     = errors.New("socket is not connected")
	ErrAlreadyConnected = errors.New("socket is already connected or connecting")
	ErrClosed           = errors.New("socket is closed")
)

// ErrorKind classifies the named error kinds of the SocketCluster protocol
// core. Values are surfaced either through an emit's response handler or
// through the socket's error event, per the rules in errors.go's callers.
type ErrorKind int

const (
	// ProtocolError marks a malformed inbound packet or unexpected shape.
	ProtocolError ErrorKind = iota
	// UnexpectedRid marks a response packet whose rid has no matching
	// pending call.
	UnexpectedRid
	// JSONParseFailure marks a packet whose payload failed to parse.
	JSONParseFailure
	// ResponseError marks a response packet that carries a server-side
	// error field.
	ResponseError
	// AckTimeout marks an emit whose response never arrived within the
	// configured ack timeout.
	AckTimeout
	// Cancelled marks a pending response handler invoked because the
	// socket closed before a response arrived.
	Cancelled
)

var errorKindNames = [...]string{
	ProtocolError:     "ProtocolError",
	UnexpectedRid:     "UnexpectedRid",
	JSONParseFailure:  "JSONParseFailure",
	ResponseError:     "ResponseError",
	AckTimeout:        "AckTimeout",
	Cancelled:         "Cancelled",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// SCError is the error type carried on an emit's response handler and on
// the error event. It names which protocol-level failure occurred and,
// where relevant, which call or channel it concerns.
type SCError struct {
	Kind      ErrorKind
	CallID    uint64 // cid/rid this error concerns, 0 if not call-scoped
	Channel   string // channel name this error concerns, "" if not channel-scoped
	Cause     error
	Timestamp time.Time
}

func (e *SCError) Error() string {
	switch {
	case e.Cause != nil && e.CallID != 0:
		return fmt.Sprintf("%s: %v (cid=%d)", e.Kind, e.Cause, e.CallID)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	case e.CallID != 0:
		return fmt.Sprintf("%s (cid=%d)", e.Kind, e.CallID)
	default:
		return e.Kind.String()
	}
}

func (e *SCError) Unwrap() error {
	return e.Cause
}

func newSCError(kind ErrorKind, cause error) *SCError {
	return &SCError{Kind: kind, Cause: cause, Timestamp: time.Now()}
}

// ErrorHandler receives errors the socket cannot deliver to a direct
// caller: protocol/JSON parse failures and unexpected rids. Response
// errors and ack timeouts go to the emit's own handler instead.
type ErrorHandler func(*SCError)

// LogErrors returns an ErrorHandler that logs every error to the given
// logger.
func LogErrors(logger *log.Logger) ErrorHandler {
	return func(e *SCError) {
		logger.Printf("[scclient] %s", e.Error())
	}
}
