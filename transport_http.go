package mcp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/mjohns91/ansible.mcp/internal/sse"
)

// sessionHeader carries the server-assigned session id; once observed it is
// echoed on every subsequent request from this transport instance.
const sessionHeader = "Mcp-Session-Id"

// HTTPTransport talks to an MCP server over streamable HTTP. Each call is an
// independent POST; the only state carried between calls is the session id
// the server may assign.
type HTTPTransport struct {
	URL string

	// Headers are added to every request, e.g. an Authorization header the
	// caller obtained elsewhere.
	Headers map[string]string

	// InsecureSkipTLSVerify disables certificate validation. Only honored
	// when Client is nil.
	InsecureSkipTLSVerify bool

	// Client defaults to a client without its own timeout; bound calls with
	// the request context instead.
	Client *http.Client

	mu        sync.Mutex
	sessionID string
	client    *http.Client
}

// Connect is a no-op: the connection is per-call.
func (t *HTTPTransport) Connect() error { return nil }

// Close is a no-op: there is no persistent connection to release.
func (t *HTTPTransport) Close() error { return nil }

// Request POSTs one payload and decodes the reply. The server must answer
// 200; an SSE-framed body yields the first event's data payload.
func (t *HTTPTransport) Request(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	resp, err := t.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	t.adoptSessionID(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, t.statusError("request", resp)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return t.readSSEReply(resp.Body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "request", Cause: err}
	}
	if !json.Valid(body) {
		return nil, &ProtocolError{Op: "request", Message: "invalid JSON response from server"}
	}
	return json.RawMessage(body), nil
}

// Notify POSTs one payload for which no reply body is expected. The server
// must answer 202 Accepted.
func (t *HTTPTransport) Notify(ctx context.Context, payload json.RawMessage) error {
	resp, err := t.post(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	t.adoptSessionID(resp)

	if resp.StatusCode != http.StatusAccepted {
		return t.statusError("notify", resp)
	}
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, payload json.RawMessage) (*http.Response, error) {
	if t.URL == "" {
		return nil, &TransportError{Op: "request", Cause: errors.New("http transport url is required")}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	// Streamable HTTP servers may answer either way; advertise both.
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("MCP-Protocol-Version", ProtocolVersion)
	for k, v := range t.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	t.mu.Lock()
	if t.sessionID != "" {
		req.Header.Set(sessionHeader, t.sessionID)
	}
	t.mu.Unlock()

	resp, err := t.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Op: "request", Cause: err}
	}
	return resp, nil
}

// adoptSessionID records a server-assigned session id; the latest observed
// value replaces any earlier one.
func (t *HTTPTransport) adoptSessionID(resp *http.Response) {
	if sid := resp.Header.Get(sessionHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}
}

// SessionID returns the server-assigned session id, empty until one has been
// observed.
func (t *HTTPTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *HTTPTransport) statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &ProtocolError{
		Op:      op,
		Message: fmt.Sprintf("unexpected response code: %d", resp.StatusCode),
		Cause: &HTTPStatusError{
			Method:     http.MethodPost,
			URL:        t.URL,
			StatusCode: resp.StatusCode,
			Body:       body,
			Headers:    resp.Header.Clone(),
			SessionID:  t.SessionID(),
		},
	}
}

func (t *HTTPTransport) readSSEReply(r io.Reader) (json.RawMessage, error) {
	sc := sse.NewScanner(r)
	for sc.Scan() {
		data := sc.Data()
		if !json.Valid(data) {
			return nil, &ProtocolError{Op: "request", Message: "invalid JSON response from server"}
		}
		return json.RawMessage(data), nil
	}
	if err := sc.Err(); err != nil {
		return nil, &TransportError{Op: "request", Cause: err}
	}
	return nil, &ProtocolError{Op: "request", Message: "event stream ended without a response"}
}

func (t *HTTPTransport) httpClient() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		t.client = &http.Client{}
		if t.InsecureSkipTLSVerify {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			t.client.Transport = tr
		}
	}
	return t.client
}
