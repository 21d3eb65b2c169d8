package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/mjohns91/ansible.mcp/internal/schema"
)

// ConnectionState tracks where a Client is in its session lifecycle. Only
// Ready permits list/call operations.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateInitializing
	StateReady
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

const (
	defaultClientName    = "ansible-mcp-client"
	defaultClientVersion = "1.0.0"
)

type ClientOptions struct {
	Transport Transport

	// ClientInfo is the identity sent during the handshake. Zero value gets
	// a default name and version.
	ClientInfo ClientInfo

	// StrictValidation additionally compiles each tool's full declared input
	// schema and validates arguments against it, beyond the built-in subset
	// checks.
	StrictValidation bool
}

// Client drives one MCP session over an exclusively owned transport.
//
// A Client is a single logical session: operations are expected to be
// invoked sequentially by one owner, and at most one request is outstanding
// at a time. It is not safe for concurrent use; callers needing parallel
// tool invocations must hold independent client/transport pairs.
type Client struct {
	transport Transport
	info      ClientInfo
	strict    bool

	state      ConnectionState
	connected  bool // transport Connect has succeeded; survives a failed handshake
	serverInfo json.RawMessage
	tools      []ToolDefinition
	haveTools  bool
	nextID     atomic.Int64
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("mcp: transport is required")
	}
	info := opts.ClientInfo
	if info.Name == "" {
		info.Name = defaultClientName
	}
	if info.Version == "" {
		info.Version = defaultClientVersion
	}
	return &Client{
		transport: opts.Transport,
		info:      info,
		strict:    opts.StrictValidation,
	}, nil
}

// State returns the client's connection state.
func (c *Client) State() ConnectionState { return c.state }

// Initialize connects the transport if needed and performs the MCP
// handshake, caching the server's initialize result and sending the
// initialized notification.
//
// Calling Initialize again after a failure retries only the handshake; an
// already connected transport is not re-spawned or re-opened, so callers can
// wrap Initialize in their own bounded retry loop without leaking
// subprocesses or connections.
func (c *Client) Initialize(ctx context.Context) error {
	if !c.connected {
		if err := c.transport.Connect(); err != nil {
			return err
		}
		c.connected = true
	}

	c.state = StateInitializing
	result, err := c.roundTrip(ctx, "initialize", "", "initialize", initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"roots":    map[string]any{"listChanged": true},
			"sampling": map[string]any{},
		},
		ClientInfo: c.info,
	})
	if err != nil {
		c.state = StateDisconnected
		return err
	}
	c.serverInfo = result

	if err := c.notify(ctx, "notifications/initialized", nil); err != nil {
		c.state = StateDisconnected
		return err
	}

	c.state = StateReady
	return nil
}

// ServerInfo returns the raw initialize result cached for the session.
func (c *Client) ServerInfo() (json.RawMessage, error) {
	if c.serverInfo == nil {
		return nil, c.notInitialized("server info")
	}
	return c.serverInfo, nil
}

// ListTools returns the server's tool listing. The listing is fetched once
// and cached until Close.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	if c.state != StateReady {
		return nil, c.notInitialized("list tools")
	}
	if c.haveTools {
		return c.tools, nil
	}
	result, err := c.roundTrip(ctx, "list tools", "", "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var list toolListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, &ProtocolError{Op: "list tools", Message: "malformed tool listing", Cause: err}
	}
	c.tools = list.Tools
	c.haveTools = true
	return c.tools, nil
}

// GetTool returns the definition of one tool by name, fetching the listing
// if it has not been cached yet.
func (c *Client) GetTool(ctx context.Context, name string) (ToolDefinition, error) {
	if c.state != StateReady {
		return ToolDefinition{}, c.notInitialized("get tool")
	}
	tools, err := c.ListTools(ctx)
	if err != nil {
		return ToolDefinition{}, err
	}
	for _, tool := range tools {
		if tool.Name == name {
			return tool, nil
		}
	}
	return ToolDefinition{}, &ProtocolError{Op: "get tool", Tool: name, Message: "tool not found"}
}

// CallTool validates args against the tool's declared input schema and, only
// if they pass, invokes the tool. The raw decoded result object is returned;
// callers surface its content/isError/structuredContent fields themselves.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if c.state != StateReady {
		return nil, c.notInitialized("call tool")
	}
	tool, err := c.GetTool(ctx, name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArguments(tool, args); err != nil {
		return nil, err
	}
	if c.strict && len(tool.InputSchema) > 0 {
		doc, err := json.Marshal(args)
		if err != nil {
			return nil, &ValidationError{Tool: name, Message: fmt.Sprintf("arguments not serializable: %v", err)}
		}
		if err := schema.Validate(tool.InputSchema, doc); err != nil {
			return nil, &ValidationError{Tool: name, Message: err.Error()}
		}
	}
	return c.roundTrip(ctx, "call tool", name, "tools/call", callToolParams{Name: name, Arguments: args})
}

// ListResources fetches the server's resource listing. Unlike the tool
// listing it is not cached.
func (c *Client) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	if c.state != StateReady {
		return nil, c.notInitialized("list resources")
	}
	result, err := c.roundTrip(ctx, "list resources", "", "resources/list", nil)
	if err != nil {
		return nil, err
	}
	var list resourcesListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, &ProtocolError{Op: "list resources", Message: "malformed resource listing", Cause: err}
	}
	return list.Resources, nil
}

// ReadResource reads one resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	if c.state != StateReady {
		return nil, c.notInitialized("read resource")
	}
	result, err := c.roundTrip(ctx, "read resource", "", "resources/read", readResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	var out ReadResourceResult
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, &ProtocolError{Op: "read resource", Message: "malformed resource contents", Cause: err}
	}
	return &out, nil
}

// ListPrompts fetches the server's prompt listing.
func (c *Client) ListPrompts(ctx context.Context) ([]PromptInfo, error) {
	if c.state != StateReady {
		return nil, c.notInitialized("list prompts")
	}
	result, err := c.roundTrip(ctx, "list prompts", "", "prompts/list", nil)
	if err != nil {
		return nil, err
	}
	var list promptsListResult
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, &ProtocolError{Op: "list prompts", Message: "malformed prompt listing", Cause: err}
	}
	return list.Prompts, nil
}

// GetPrompt resolves one prompt with the supplied arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error) {
	if c.state != StateReady {
		return nil, c.notInitialized("get prompt")
	}
	result, err := c.roundTrip(ctx, "get prompt", "", "prompts/get", getPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var out GetPromptResult
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, &ProtocolError{Op: "get prompt", Message: "malformed prompt result", Cause: err}
	}
	return &out, nil
}

// Close releases the transport and resets the session: state, cached server
// info and tool listing, and the request id counter. Safe to call more than
// once.
func (c *Client) Close() error {
	if c == nil || c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.state = StateDisconnected
	c.connected = false
	c.serverInfo = nil
	c.tools = nil
	c.haveTools = false
	c.nextID.Store(0)
	return err
}

// buildRequest composes a JSON-RPC request, consuming the next id.
// Notifications do not consume ids; see notify.
func (c *Client) buildRequest(method string, params any) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
}

// roundTrip sends one request and extracts the result. Presence of a result
// field is the success criterion; anything else is a protocol failure.
func (c *Client) roundTrip(ctx context.Context, op, tool, method string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(c.buildRequest(method, params))
	if err != nil {
		return nil, &ProtocolError{Op: op, Tool: tool, Message: "params not serializable", Cause: err}
	}
	raw, err := c.transport.Request(ctx, payload)
	if err != nil {
		return nil, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Op: op, Tool: tool, Message: "malformed response", Cause: err}
	}
	if len(resp.Result) == 0 {
		return nil, &ProtocolError{Op: op, Tool: tool, Message: "server returned no result", RPC: resp.Error}
	}
	return resp.Result, nil
}

func (c *Client) notify(ctx context.Context, method string, params any) error {
	payload, err := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return &ProtocolError{Op: "notify", Message: "params not serializable", Cause: err}
	}
	return c.transport.Notify(ctx, payload)
}

func (c *Client) notInitialized(op string) error {
	return &ProtocolError{Op: op, Message: "client not initialized, call Initialize first"}
}
