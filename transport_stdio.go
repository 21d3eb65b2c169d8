package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const (
	// defaultReadTimeout bounds the wait for one reply frame.
	defaultReadTimeout = 5 * time.Second

	// closeTimeout bounds the graceful-termination wait before the server
	// process is force-killed.
	closeTimeout = 5 * time.Second

	// startupGrace is how long Connect watches a freshly spawned process for
	// an immediate exit before declaring it alive.
	startupGrace = 100 * time.Millisecond

	// maxFrameBytes caps the size of a single newline-framed server reply.
	maxFrameBytes = 1 << 20

	stderrTailBytes = 8 << 10
)

// StdioTransport runs an MCP server as a local subprocess and exchanges
// newline-framed JSON on its stdin/stdout. Writes are unbuffered: each
// payload is observable to the child before the call returns.
//
// Lifecycle: not started until Connect, running while the child lives,
// terminated after Close or an unexpected child exit.
type StdioTransport struct {
	Command string
	Args    []string

	// Env is merged onto the inherited environment of the child process.
	Env map[string]string

	// ReadTimeout bounds the wait for a reply to one request. Zero means the
	// 5 second default.
	ReadTimeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	replies chan stdioFrame
	done    chan struct{} // closed by Close to release the read loop
	exited  chan struct{} // closed once the child has been reaped
	stderr  *tailBuffer
}

// stdioFrame is one decoded line from the child's stdout, or the read error
// that ended the stream.
type stdioFrame struct {
	data []byte
	err  error
}

// Connect spawns the server process and verifies it survives startup. It is
// a no-op when the process is already running.
func (t *StdioTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil
	}
	if t.Command == "" {
		return &TransportError{Op: "connect", Cause: errors.New("stdio transport command is required")}
	}

	cmd := exec.Command(t.Command, t.Args...)
	if len(t.Env) > 0 {
		env := os.Environ()
		for k, v := range t.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	stderr := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &TransportError{Op: "connect", Cause: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return &TransportError{Op: "connect", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return &TransportError{Op: "connect", Cause: fmt.Errorf("failed to start MCP server: %w", err)}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stderr = stderr
	t.replies = make(chan stdioFrame, 16)
	t.done = make(chan struct{})
	t.exited = make(chan struct{})

	exited := t.exited
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()
	go t.readLoop(stdout, t.replies, t.done)

	// Give the server a moment to start; an immediate exit is a spawn
	// failure, not a protocol failure.
	select {
	case <-t.exited:
		output := t.capturedOutput()
		_ = stdin.Close()
		t.cmd = nil
		t.stdin = nil
		return &TransportError{
			Op:     "connect",
			Output: output,
			Cause:  errors.New("MCP server exited immediately"),
		}
	case <-time.After(startupGrace):
	}
	return nil
}

func (t *StdioTransport) readLoop(r io.Reader, replies chan<- stdioFrame, done <-chan struct{}) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrameBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		frame := stdioFrame{data: append([]byte(nil), line...)}
		if !json.Valid(line) {
			frame = stdioFrame{err: fmt.Errorf("malformed server frame: %.80s", line)}
		}
		select {
		case replies <- frame:
		case <-done:
			return
		}
		if frame.err != nil {
			return
		}
	}
	if err := sc.Err(); err != nil {
		select {
		case replies <- stdioFrame{err: err}:
		case <-done:
		}
	}
	// EOF without error: the child closed stdout; its exit is reported by the
	// wait goroutine.
}

// Request writes one payload to the child's stdin and blocks until a reply
// frame arrives, the wait window elapses, the context is canceled, or the
// child dies.
func (t *StdioTransport) Request(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	wait := t.ReadTimeout
	if wait <= 0 {
		wait = defaultReadTimeout
	}

	t.mu.Lock()
	if err := t.runningLocked("request"); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	replies, exited := t.replies, t.exited
	if err := t.writeLocked(payload); err != nil {
		t.mu.Unlock()
		return nil, &TransportError{Op: "request", Output: t.stderr.String(), Cause: err}
	}
	t.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case frame := <-replies:
		if frame.err != nil {
			return nil, &TransportError{Op: "request", Output: t.stderr.String(), Cause: frame.err}
		}
		return frame.data, nil
	case <-timer.C:
		return nil, &TimeoutError{Op: "request", Wait: wait}
	case <-ctx.Done():
		return nil, &TransportError{Op: "request", Cause: ctx.Err()}
	case <-exited:
		// The reply may have landed just before the child exited.
		select {
		case frame := <-replies:
			if frame.err == nil {
				return frame.data, nil
			}
		default:
		}
		return nil, &TransportError{
			Op:     "request",
			Output: t.capturedOutput(),
			Cause:  errors.New("MCP server process terminated unexpectedly"),
		}
	}
}

// Notify writes one payload to the child's stdin without waiting for a
// reply.
func (t *StdioTransport) Notify(ctx context.Context, payload json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "notify", Cause: err}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.runningLocked("notify"); err != nil {
		return err
	}
	if err := t.writeLocked(payload); err != nil {
		return &TransportError{Op: "notify", Output: t.stderr.String(), Cause: err}
	}
	return nil
}

// writeLocked sends one newline-terminated frame directly to the pipe; pipe
// writes are unbuffered, so the child sees the frame before this returns.
func (t *StdioTransport) writeLocked(payload json.RawMessage) error {
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, payload...)
	frame = append(frame, '\n')
	_, err := t.stdin.Write(frame)
	return err
}

func (t *StdioTransport) runningLocked(op string) error {
	if t.cmd == nil {
		return &TransportError{Op: op, Cause: errors.New("MCP server process not started")}
	}
	select {
	case <-t.exited:
		return &TransportError{
			Op:     op,
			Output: t.capturedOutput(),
			Cause:  errors.New("MCP server process terminated unexpectedly"),
		}
	default:
		return nil
	}
}

// capturedOutput collects the child's buffered stdout frames and stderr tail
// for failure reporting. Best effort: only what is already available.
func (t *StdioTransport) capturedOutput() string {
	var stdout bytes.Buffer
	for {
		select {
		case frame := <-t.replies:
			if frame.err == nil {
				if stdout.Len() > 0 {
					stdout.WriteByte('\n')
				}
				stdout.Write(frame.data)
			}
			continue
		default:
		}
		break
	}
	return fmt.Sprintf("stdout: %s, stderr: %s", stdout.String(), t.stderr.String())
}

// Close terminates the server process: graceful signal first, then a forced
// kill if it has not exited within the bounded window. The process handle is
// cleared regardless of outcome, so Close is idempotent.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return nil
	}
	cmd, exited := t.cmd, t.exited
	defer func() {
		t.cmd = nil
		t.stdin = nil
	}()

	close(t.done)
	_ = t.stdin.Close()

	sigErr := cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
		if sigErr != nil && !errors.Is(sigErr, os.ErrProcessDone) {
			return &TransportError{Op: "close", Cause: sigErr}
		}
	case <-time.After(closeTimeout):
		_ = cmd.Process.Kill()
		<-exited
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it. It backs stderr capture
// so a chatty server cannot grow memory without bound.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	b   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b = append(t.b, p...)
	if len(t.b) > t.max {
		t.b = t.b[len(t.b)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.b))
}
