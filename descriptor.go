package mcp

import "fmt"

// TransportKind selects the transport variant of a ServerDescriptor.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// ServerDescriptor is the caller-resolved description of how to reach one
// MCP server. The host layer is responsible for producing it (for example
// from a manifest); the descriptor is treated as immutable once passed in.
type ServerDescriptor struct {
	Kind TransportKind

	// Stdio fields.
	Command string
	Args    []string
	Env     map[string]string // overlay merged onto the inherited environment

	// HTTP fields.
	URL                   string
	Headers               map[string]string
	InsecureSkipTLSVerify bool
}

// NewTransport constructs the transport variant matching the descriptor.
func NewTransport(desc ServerDescriptor) (Transport, error) {
	switch desc.Kind {
	case TransportStdio:
		if desc.Command == "" {
			return nil, fmt.Errorf("mcp: stdio descriptor requires a command")
		}
		return &StdioTransport{
			Command: desc.Command,
			Args:    desc.Args,
			Env:     desc.Env,
		}, nil
	case TransportHTTP:
		if desc.URL == "" {
			return nil, fmt.Errorf("mcp: http descriptor requires a url")
		}
		return &HTTPTransport{
			URL:                   desc.URL,
			Headers:               desc.Headers,
			InsecureSkipTLSVerify: desc.InsecureSkipTLSVerify,
		}, nil
	default:
		return nil, fmt.Errorf("mcp: unknown transport kind %q", desc.Kind)
	}
}
