package reply

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PiRPCClient owns a long-lived "pi --mode rpc" child process and talks to
// it over newline-delimited JSON on stdin/stdout, avoiding the cold-start
// cost of spawning a fresh process per turn. It is reused across calls and
// restarted on protocol error or timeout — the same reusable-background-
// process idiom as the daemon manager, specialised to a request/response
// protocol instead of a log-tailed daemon.
type PiRPCClient struct {
	mu     sync.Mutex
	argv   []string // base argv, body stripped, with --mode rpc appended
	cwd    string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

type piRPCRequest struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type piRPCResponse struct {
	ID     string `json:"id"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// NewPiRPCClient creates a client for the given base argv (the body
// argument must already be stripped out by the caller) and working
// directory. The child process is started lazily on first Call.
func NewPiRPCClient(argv []string, cwd string) *PiRPCClient {
	full := append(append([]string{}, argv...), "--mode", "rpc")
	return &PiRPCClient{argv: full, cwd: cwd}
}

func (c *PiRPCClient) ensureStarted() error {
	if c.cmd != nil {
		return nil
	}
	cmd := exec.Command(c.argv[0], c.argv[1:]...)
	if c.cwd != "" {
		cmd.Dir = c.cwd
	}
	cmd.SysProcAttr = procAttrNewGroup()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("rpc stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("rpc stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = bufio.NewReaderSize(stdout, 64*1024)
	return nil
}

// Call sends body over the RPC channel and blocks for a matching response,
// or until timeout/ctx elapses. On protocol error or timeout the child is
// killed and restarted so the next Call starts fresh.
func (c *PiRPCClient) Call(ctx context.Context, body string, timeout time.Duration) (RunResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return RunResult{}, err
	}

	req := piRPCRequest{ID: uuid.NewString(), Body: body}
	line, err := json.Marshal(req)
	if err != nil {
		return RunResult{}, err
	}
	line = append(line, '\n')

	if _, err := c.stdin.Write(line); err != nil {
		c.restartLocked()
		return RunResult{}, fmt.Errorf("rpc write: %w", err)
	}

	type readOutcome struct {
		resp piRPCResponse
		err  error
	}
	done := make(chan readOutcome, 1)
	go func() {
		raw, err := c.stdout.ReadBytes('\n')
		if err != nil {
			done <- readOutcome{err: err}
			return
		}
		var resp piRPCResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			done <- readOutcome{err: err}
			return
		}
		done <- readOutcome{resp: resp}
	}()

	deadline := time.After(timeout)
	select {
	case out := <-done:
		if out.err != nil {
			c.restartLocked()
			return RunResult{}, fmt.Errorf("rpc read: %w", out.err)
		}
		if out.resp.Error != "" {
			return RunResult{Stdout: out.resp.Output, Stderr: out.resp.Error}, nil
		}
		return RunResult{Stdout: out.resp.Output}, nil
	case <-deadline:
		c.restartLocked()
		return RunResult{Killed: true}, nil
	case <-ctx.Done():
		c.restartLocked()
		return RunResult{Killed: true}, ctx.Err()
	}
}

// restartLocked kills the current child (if any) so the next ensureStarted
// call spawns a fresh one. Must be called with c.mu held.
func (c *PiRPCClient) restartLocked() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = killProcessGroup(c.cmd)
		_ = c.cmd.Wait()
	}
	c.cmd = nil
	c.stdin = nil
	c.stdout = nil
}

// Close terminates the RPC child, if running.
func (c *PiRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restartLocked()
	return nil
}
