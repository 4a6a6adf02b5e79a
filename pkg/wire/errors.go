package wire

import (
	"errors"
	"fmt"
)

// Protocol-level error kinds: malformed or unexpected messages that
// aren't the browser's fault in the CDP-error-code sense.
var (
	// ErrInvalidMessage means a frame could not be parsed as JSON or was
	// missing a required field.
	ErrInvalidMessage = errors.New("wire: invalid message")
	// ErrUnexpectedResponse means a response arrived whose id has no
	// pending waiter. Internal-only: never surfaced to a Call caller.
	ErrUnexpectedResponse = errors.New("wire: unexpected response id")
	// ErrMissingField means a helper expected a field a Result/Params
	// object didn't have.
	ErrMissingField = errors.New("wire: missing field")
	// ErrTypeMismatch means a helper read a field whose JSON type didn't
	// match what was expected.
	ErrTypeMismatch = errors.New("wire: type mismatch")
)

// Launch-level error kinds, used by package launcher.
var (
	ErrChromeNotFound  = errors.New("launcher: no chrome-family executable found")
	ErrLaunchFailed    = errors.New("launcher: failed to start browser process")
	ErrWsURLParseError = errors.New("launcher: failed to parse devtools websocket url")
	ErrStartupTimeout  = errors.New("launcher: timed out waiting for devtools listening banner")
)

// CDPKind classifies a CDP wire-level error by its numeric code.
type CDPKind int

const (
	CDPUnknown CDPKind = iota
	CDPInvalidRequest
	CDPMethodNotFound
	CDPInvalidParams
	CDPInternalError
	CDPServerError
	CDPProtocolError
)

func (k CDPKind) String() string {
	switch k {
	case CDPInvalidRequest:
		return "InvalidRequest"
	case CDPMethodNotFound:
		return "MethodNotFound"
	case CDPInvalidParams:
		return "InvalidParams"
	case CDPInternalError:
		return "InternalError"
	case CDPServerError:
		return "ServerError"
	case CDPProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// CDPError wraps a CDP-level error response, preserving the original
// code/message/data while exposing a classified Kind for errors.Is-style
// dispatch via MapCDPError.
type CDPError struct {
	Kind    CDPKind
	Code    int64
	Message string
	Data    string
}

func (e *CDPError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("cdp error %s (%d): %s: %s", e.Kind, e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("cdp error %s (%d): %s", e.Kind, e.Code, e.Message)
}

// MapCDPError classifies a wire Error by its JSON-RPC-derived code, per
// the code table: -32600 InvalidRequest, -32601 MethodNotFound, -32602
// InvalidParams, -32603 InternalError, -32000..-32099 ServerError, else
// ProtocolError.
func MapCDPError(e *Error) *CDPError {
	kind := CDPProtocolError
	switch {
	case e.Code == -32600:
		kind = CDPInvalidRequest
	case e.Code == -32601:
		kind = CDPMethodNotFound
	case e.Code == -32602:
		kind = CDPInvalidParams
	case e.Code == -32603:
		kind = CDPInternalError
	case e.Code <= -32000 && e.Code >= -32099:
		kind = CDPServerError
	}
	return &CDPError{Kind: kind, Code: e.Code, Message: e.Message, Data: e.Data}
}
