package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TransportError reports a failure below the protocol layer: the server
// process could not be spawned, exited unexpectedly, a pipe write or read
// failed, or the byte stream was not decodable.
type TransportError struct {
	Op     string // "connect", "request", "notify", "close"
	Output string // captured server stdout/stderr, when available
	Cause  error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("mcp %s: %v", e.Op, e.Cause)
	if e.Output != "" {
		msg += ", output: " + e.Output
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Cause }

// TimeoutError reports that no reply was observed within the bounded wait
// window. Callers may branch on it to decide whether to retry.
type TimeoutError struct {
	Op   string
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp %s: response timeout after %d seconds", e.Op, int(e.Wait.Seconds()))
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("mcp rpc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mcp rpc error %d", e.Code)
}

// ProtocolError reports a well-formed exchange that violated the protocol
// contract: a reply without a result, an unexpected HTTP status, an unknown
// tool, or a client used before Initialize succeeded.
type ProtocolError struct {
	Op      string // "initialize", "list tools", "call tool", ...
	Tool    string // tool name, when the failure concerns one tool
	Message string
	RPC     *RPCError // server-reported error object, when present
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("mcp")
	if e.Op != "" {
		b.WriteString(" " + e.Op)
	}
	if e.Tool != "" {
		fmt.Fprintf(&b, " %q", e.Tool)
	}
	b.WriteString(": " + e.Message)
	if e.RPC != nil {
		fmt.Fprintf(&b, ": %v", e.RPC)
	} else if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.RPC != nil {
		return e.RPC
	}
	return e.Cause
}

// HTTPStatusError is returned by the HTTP transport when the server answers
// with a status other than the expected one.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Headers    map[string][]string
	SessionID  string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp http %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, string(e.Body))
}

// ValidationError reports tool arguments that failed the client-side schema
// checks. It is always raised before any transport traffic for the call.
type ValidationError struct {
	Tool    string
	Missing []string // required parameters that were not supplied
	Unknown []string // supplied parameters not present in the schema
	Param   string   // offending parameter for a type mismatch
	Want    string   // declared schema type
	Got     string   // runtime kind of the supplied value
	Message string   // unsupported-schema and other shape failures
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("tool %q missing required parameters: %s", e.Tool, strings.Join(e.Missing, ", "))
	case len(e.Unknown) > 0:
		return fmt.Sprintf("tool %q received unknown parameters: %s", e.Tool, strings.Join(e.Unknown, ", "))
	case e.Param != "" && e.Got == "null":
		return fmt.Sprintf("parameter %q for tool %q cannot be null (expected type %q)", e.Param, e.Tool, e.Want)
	case e.Param != "":
		return fmt.Sprintf("parameter %q for tool %q should be of type %q, but got %q", e.Param, e.Tool, e.Want, e.Got)
	default:
		return fmt.Sprintf("tool %q: %s", e.Tool, e.Message)
	}
}
