package mcp

import "encoding/json"

// ProtocolVersion is the MCP revision this client negotiates during the
// initialize handshake and advertises in the MCP-Protocol-Version header.
const ProtocolVersion = "2025-03-26"

// JSON-RPC 2.0 envelope types (subset used by MCP).

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcNotification is an rpcRequest without an id; no reply is expected and
// notifications do not consume a request id.
type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Initialize / lifecycle.

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// ServerImplementation identifies the server, as reported inside the
// initialize result.
type ServerImplementation struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

// InitializeResult is the decoded form of the initialize handshake result.
// Client.ServerInfo returns the raw object; this type is a convenience for
// callers that want the well-known fields.
type InitializeResult struct {
	ProtocolVersion string               `json:"protocolVersion"`
	Capabilities    map[string]any       `json:"capabilities,omitempty"`
	ServerInfo      ServerImplementation `json:"serverInfo"`
	Instructions    string               `json:"instructions,omitempty"`
}

// Tools.

// ToolDefinition describes one server-exposed tool. InputSchema is the
// tool's declared JSON Schema, preserved verbatim.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type toolListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallToolResult is the decoded shape of a tools/call result. CallTool
// returns the raw result object; this type is a convenience for callers that
// want the well-known fields.
type CallToolResult struct {
	Content           []ContentPart   `json:"content,omitempty"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
	IsError           bool            `json:"isError,omitempty"`
}

// ContentPart is one element of a tool result's content array. The protocol
// defines several part shapes; the raw payload is preserved alongside the
// discriminating type and the text field of text parts.
type ContentPart struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

func (p *ContentPart) UnmarshalJSON(b []byte) error {
	p.Raw = append(p.Raw[:0], b...)
	var tmp struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	p.Type = tmp.Type
	p.Text = tmp.Text
	return nil
}

// Resources.

type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MediaType   string `json:"mimeType,omitempty"`
}

type resourcesListResult struct {
	Resources []ResourceInfo `json:"resources"`
}

type readResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

type ResourceContent struct {
	URI        string `json:"uri,omitempty"`
	Text       string `json:"text,omitempty"`
	BlobBase64 string `json:"blob,omitempty"`
	MediaType  string `json:"mimeType,omitempty"`
}

// Prompts.

type PromptInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type promptsListResult struct {
	Prompts []PromptInfo `json:"prompts"`
}

type getPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

type PromptMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}
