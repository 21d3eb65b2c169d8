// Package mcp implements a Model Context Protocol (MCP) client.
//
// The client speaks JSON-RPC 2.0 to an MCP server over one of two
// transports: a local subprocess exchanging newline-framed JSON on
// stdin/stdout, or a streamable HTTP endpoint with session affinity via the
// Mcp-Session-Id header.
//
// A session is driven by exactly one owner:
//
//	transport, err := mcp.NewTransport(desc)
//	client := mcp.NewClient(mcp.ClientOptions{Transport: transport})
//	err = client.Initialize(ctx)
//	tools, err := client.ListTools(ctx)
//	result, err := client.CallTool(ctx, "echo", map[string]any{"text": "hi"})
//	err = client.Close()
//
// At most one request is outstanding per transport at any time, and replies
// are correlated positionally rather than by JSON-RPC id. Concurrent tool
// invocations require either external serialization or independent
// client/transport pairs.
//
// Tool arguments are validated against the tool's declared input schema
// before any bytes reach the wire; see ValidateArguments.
package mcp
