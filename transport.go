package mcp

import (
	"context"
	"encoding/json"
)

// Transport moves JSON-RPC payloads between the client and one MCP server.
//
// Exactly two implementations exist: StdioTransport (local subprocess) and
// HTTPTransport (streamable HTTP endpoint). Transports are single-flight: one
// Request blocks until the reply to that request has been read, so replies
// correlate positionally. A transport instance belongs to exactly one Client.
type Transport interface {
	// Connect establishes whatever the transport needs before traffic can
	// flow. It is idempotent; calling it on a connected transport is a no-op.
	Connect() error

	// Request sends one payload and blocks for exactly one reply.
	Request(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

	// Notify sends one payload for which no reply is expected.
	Notify(ctx context.Context, payload json.RawMessage) error

	// Close releases the transport's resources. It is idempotent and safe to
	// call on a transport that was never connected.
	Close() error
}
