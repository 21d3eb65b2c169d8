// Package sse decodes Server-Sent Events streams. It understands just enough
// of the format for MCP streamable HTTP responses: "data:" lines joined per
// event, comments and other fields skipped.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Scanner iterates over the events of one SSE stream. After each successful
// Scan, Data returns the event payload (joined data lines, no trailing
// newline).
type Scanner struct {
	lines *bufio.Scanner
	data  []string
	err   error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{lines: bufio.NewScanner(r)}
}

// Scan advances to the next event carrying a data payload. It returns false
// at end of stream or on a read error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	s.data = s.data[:0]
	for s.lines.Scan() {
		line := strings.TrimSuffix(s.lines.Text(), "\r")
		switch {
		case line == "":
			// Event boundary; only dispatch when data accumulated.
			if len(s.data) > 0 {
				return true
			}
		case strings.HasPrefix(line, ":"):
			// Comment.
		case strings.HasPrefix(line, "data:"):
			s.data = append(s.data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Other fields (event, id, retry) are irrelevant here.
		}
	}
	s.err = s.lines.Err()
	return len(s.data) > 0
}

func (s *Scanner) Data() []byte {
	return []byte(strings.Join(s.data, "\n"))
}

// Err returns the read error that ended the stream, nil on clean EOF.
func (s *Scanner) Err() error {
	return s.err
}
