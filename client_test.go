package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakeTransport scripts server behavior in memory and records the traffic it
// observes.
type fakeTransport struct {
	tools []ToolDefinition

	failInitialize bool

	connects   int
	requests   int
	notifies   int
	closes     int
	requestIDs []int64
	methods    []string
}

func (t *fakeTransport) Connect() error {
	t.connects++
	return nil
}

func (t *fakeTransport) Request(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	t.requests++
	var req struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	t.requestIDs = append(t.requestIDs, req.ID)
	t.methods = append(t.methods, req.Method)

	switch req.Method {
	case "initialize":
		if t.failInitialize {
			return mustJSON(rpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &RPCError{Code: -32000, Message: "server not ready"},
			}), nil
		}
		return mustJSON(rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mustJSON(InitializeResult{
				ProtocolVersion: ProtocolVersion,
				ServerInfo:      ServerImplementation{Name: "fake-server", Version: "0.1.0"},
			}),
		}), nil
	case "tools/list":
		return mustJSON(rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  mustJSON(toolListResult{Tools: t.tools}),
		}), nil
	case "tools/call":
		return mustJSON(rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  mustJSON(map[string]any{"content": []map[string]any{{"type": "text", "text": "ok"}}}),
		}), nil
	default:
		return mustJSON(rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: -32601, Message: "method not found"},
		}), nil
	}
}

func (t *fakeTransport) Notify(context.Context, json.RawMessage) error {
	t.notifies++
	return nil
}

func (t *fakeTransport) Close() error {
	t.closes++
	return nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func newReadyClient(t *testing.T, ft *fakeTransport) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{Transport: ft})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBuildRequest_RoundTrip(t *testing.T) {
	c, err := NewClient(ClientOptions{Transport: &fakeTransport{}})
	if err != nil {
		t.Fatal(err)
	}

	b := mustJSON(c.buildRequest("tools/list", nil))
	if got, want := string(b), `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	b = mustJSON(c.buildRequest("tools/call", map[string]any{"name": "echo"}))
	if got, want := string(b), `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo"}}`; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestRequestIDs_IncreaseAndResetOnClose(t *testing.T) {
	ft := &fakeTransport{tools: []ToolDefinition{{Name: "a"}}}
	c := newReadyClient(t, ft)

	if _, err := c.ListTools(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CallTool(context.Background(), "a", nil); err != nil {
		t.Fatal(err)
	}

	want := []int64{1, 2, 3}
	for i, id := range ft.requestIDs {
		if id != want[i] {
			t.Fatalf("request ids = %v, want %v", ft.requestIDs, want)
		}
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ft.requestIDs[len(ft.requestIDs)-1]; got != 1 {
		t.Fatalf("first id after Close = %d, want 1", got)
	}
}

func TestListTools_CachedUntilClose(t *testing.T) {
	ft := &fakeTransport{tools: []ToolDefinition{{Name: "a"}, {Name: "b"}}}
	c := newReadyClient(t, ft)

	first, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if &first[0] != &second[0] {
		t.Fatal("second ListTools returned a different object than the cached one")
	}

	listCalls := 0
	for _, m := range ft.methods {
		if m == "tools/list" {
			listCalls++
		}
	}
	if listCalls != 1 {
		t.Fatalf("tools/list requests = %d, want 1", listCalls)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ListTools(context.Background()); err != nil {
		t.Fatal(err)
	}
	listCalls = 0
	for _, m := range ft.methods {
		if m == "tools/list" {
			listCalls++
		}
	}
	if listCalls != 2 {
		t.Fatalf("tools/list requests after reopen = %d, want 2", listCalls)
	}
}

func TestCallTool_ValidatesBeforeTraffic(t *testing.T) {
	ft := &fakeTransport{tools: []ToolDefinition{{
		Name:        "echo",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
	}}}
	c := newReadyClient(t, ft)

	// Prime the tool cache so the invalid call below needs no traffic at all.
	if _, err := c.ListTools(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := ft.requests

	_, err := c.CallTool(context.Background(), "echo", map[string]any{})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "text") {
		t.Fatalf("error should name the missing parameter: %v", err)
	}
	if ft.requests != before {
		t.Fatalf("transport saw %d requests during an invalid call", ft.requests-before)
	}

	if _, err := c.CallTool(context.Background(), "echo", map[string]any{"text": "hi"}); err != nil {
		t.Fatal(err)
	}
	if ft.requests != before+1 {
		t.Fatalf("valid call should issue exactly one request")
	}
}

func TestCallTool_StrictValidation(t *testing.T) {
	ft := &fakeTransport{tools: []ToolDefinition{{
		Name:        "echo",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string","minLength":5}},"required":["text"]}`),
	}}}
	c, err := NewClient(ClientOptions{Transport: ft, StrictValidation: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Passes the subset checks (a string is a string) but violates minLength.
	_, err = c.CallTool(context.Background(), "echo", map[string]any{"text": "hi"})
	if !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if _, err := c.CallTool(context.Background(), "echo", map[string]any{"text": "hello world"}); err != nil {
		t.Fatal(err)
	}
}

func TestGetTool_NotFound(t *testing.T) {
	ft := &fakeTransport{tools: []ToolDefinition{{Name: "present"}}}
	c := newReadyClient(t, ft)

	_, err := c.GetTool(context.Background(), "missing")
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Tool != "missing" || !strings.Contains(pe.Message, "tool not found") {
		t.Fatalf("unexpected error: %v", pe)
	}
}

func TestOperations_RequireInitialize(t *testing.T) {
	c, err := NewClient(ClientOptions{Transport: &fakeTransport{}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.ListTools(context.Background()); !IsProtocolError(err) {
		t.Fatalf("ListTools before Initialize: %v", err)
	}
	if _, err := c.CallTool(context.Background(), "x", nil); !IsProtocolError(err) {
		t.Fatalf("CallTool before Initialize: %v", err)
	}
	if _, err := c.ServerInfo(); !IsProtocolError(err) {
		t.Fatalf("ServerInfo before Initialize: %v", err)
	}
}

func TestInitialize_ReadyStateAndServerInfo(t *testing.T) {
	ft := &fakeTransport{}
	c := newReadyClient(t, ft)

	if c.State() != StateReady {
		t.Fatalf("state = %v, want ready", c.State())
	}
	raw, err := c.ServerInfo()
	if err != nil {
		t.Fatal(err)
	}
	var info InitializeResult
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatal(err)
	}
	if info.ServerInfo.Name != "fake-server" {
		t.Fatalf("server name = %q", info.ServerInfo.Name)
	}
	if ft.notifies != 1 {
		t.Fatalf("initialized notifications = %d, want 1", ft.notifies)
	}
}

func TestInitialize_RetryDoesNotReconnect(t *testing.T) {
	ft := &fakeTransport{failInitialize: true}
	c, err := NewClient(ClientOptions{Transport: ft})
	if err != nil {
		t.Fatal(err)
	}

	err = c.Initialize(context.Background())
	if !IsProtocolError(err) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32000 {
		t.Fatalf("expected wrapped rpc error, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state after failed handshake = %v", c.State())
	}

	ft.failInitialize = false
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ft.connects != 1 {
		t.Fatalf("transport connected %d times, want 1", ft.connects)
	}
}

func TestClose_ResetsSessionAndIsIdempotent(t *testing.T) {
	ft := &fakeTransport{tools: []ToolDefinition{{Name: "a"}}}
	c := newReadyClient(t, ft)
	if _, err := c.ListTools(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if ft.closes != 2 {
		t.Fatalf("transport closes = %d", ft.closes)
	}

	if _, err := c.ServerInfo(); !IsProtocolError(err) {
		t.Fatalf("ServerInfo after Close: %v", err)
	}
	if _, err := c.ListTools(context.Background()); !IsProtocolError(err) {
		t.Fatalf("ListTools after Close: %v", err)
	}
}

func TestNewTransport_Descriptors(t *testing.T) {
	tr, err := NewTransport(ServerDescriptor{Kind: TransportStdio, Command: "server", Args: []string{"--flag"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*StdioTransport); !ok {
		t.Fatalf("got %T", tr)
	}

	tr, err = NewTransport(ServerDescriptor{Kind: TransportHTTP, URL: "https://example.test/mcp"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*HTTPTransport); !ok {
		t.Fatalf("got %T", tr)
	}

	if _, err := NewTransport(ServerDescriptor{Kind: TransportStdio}); err == nil {
		t.Fatal("stdio descriptor without command should fail")
	}
	if _, err := NewTransport(ServerDescriptor{Kind: TransportHTTP}); err == nil {
		t.Fatal("http descriptor without url should fail")
	}
	if _, err := NewTransport(ServerDescriptor{Kind: "carrier-pigeon"}); err == nil {
		t.Fatal("unknown kind should fail")
	}
}
