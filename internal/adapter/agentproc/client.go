package agentproc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/moicben/calendar-agent/internal/entity"
	"github.com/moicben/calendar-agent/internal/repository"
)

// Options configures the agent process.
type Options struct {
	// Command is split on spaces; the first field is the executable.
	Command string
	Env     []string
	// RequestTimeout bounds every request; zero means 120s.
	RequestTimeout time.Duration
}

// AgentError is a failure reported by the agent itself.
type AgentError struct {
	Type    string
	Message string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s: %s", e.Type, e.Message)
}

var (
	// ErrTimeout is returned when the agent does not answer in time.
	ErrTimeout = errors.New("agent request timed out")
	// ErrClosed is returned once the agent process has exited.
	ErrClosed = fmt.Errorf("%w: agent process exited", repository.ErrAgentUnavailable)
)

const closeGrace = 5 * time.Second

type request struct {
	ID     uint64 `json:"id"`
	Type   string `json:"type"`
	Params any    `json:"params"`
}

type response struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type runGoalParams struct {
	Goal     string `json:"goal"`
	StartURL string `json:"startUrl,omitempty"`
	MaxSteps int    `json:"maxSteps,omitempty"`
	Model    string `json:"model,omitempty"`
	CDPURL   string `json:"cdpUrl,omitempty"`
}

// Client speaks the JSON-lines protocol of the agent process: one request
// object per line on stdin, one response per line on stdout, matched by id.
// Concurrent requests are multiplexed over the same process.
type Client struct {
	w       io.WriteCloser
	writeMu sync.Mutex
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan response
	closed  bool
	done    chan struct{}

	cmd        *exec.Cmd
	stderrDone chan struct{}
}

// Start launches the agent process and waits for it to answer a ping.
func Start(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	fields := strings.Fields(opts.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty agent command", repository.ErrAgentUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(fields[0], fields[1:]...)
	cmd.Env = append(os.Environ(), opts.Env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrAgentUnavailable, err)
	}

	c := NewClient(stdout, stdin, opts.RequestTimeout, logger)
	c.cmd = cmd
	c.stderrDone = make(chan struct{})
	go func() {
		defer close(c.stderrDone)
		logStderr(stderr, logger)
	}()

	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("agent did not answer ping: %w", err)
	}
	logger.Info("agent process started", zap.String("command", fields[0]), zap.Int("pid", cmd.Process.Pid))
	return c, nil
}

// NewClient runs the protocol over an existing pair of streams.
func NewClient(r io.Reader, w io.WriteCloser, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		w:       w,
		timeout: timeout,
		logger:  logger,
		pending: make(map[uint64]chan response),
		done:    make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

// Ping checks the agent is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, "ping", struct{}{})
	return err
}

// Run implements repository.AgentRepository.
func (c *Client) Run(ctx context.Context, task entity.AgentTask) (entity.AgentResult, error) {
	raw, err := c.Call(ctx, "run_goal", runGoalParams{
		Goal:     task.Goal,
		StartURL: task.StartURL,
		MaxSteps: task.MaxSteps,
		Model:    task.Model,
		CDPURL:   task.DebugURL,
	})
	if err != nil {
		return nil, err
	}
	return entity.ResultFromJSON(raw), nil
}

// Call sends one request and waits for its response, the request timeout or
// ctx, whichever comes first.
func (c *Client) Call(ctx context.Context, typ string, params any) (json.RawMessage, error) {
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(request{ID: id, Type: typ, Params: params})
	if err == nil {
		c.writeMu.Lock()
		_, err = c.w.Write(append(line, '\n'))
		c.writeMu.Unlock()
	}
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("send %s request: %w", typ, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.OK {
			msg := resp.Error
			if msg == "" {
				msg = "agent_error"
			}
			return nil, &AgentError{Type: typ, Message: msg}
		}
		return resp.Result, nil
	case <-c.done:
		return nil, ErrClosed
	case <-timer.C:
		c.forget(id)
		return nil, fmt.Errorf("%s: %w", typ, ErrTimeout)
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

// Close asks the agent to exit and releases the process.
func (c *Client) Close() error {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.mu.Unlock()

	if !alreadyClosed {
		ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
		_, _ = c.Call(ctx, "close", struct{}{})
		cancel()
	}
	err := c.w.Close()
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Signal(os.Interrupt)
		// Wait closes the pipes, so the readers must drain them first.
		if !c.waitReaders(closeGrace) {
			c.logger.Warn("agent did not exit, killing it")
			_ = c.cmd.Process.Kill()
			c.waitReaders(closeGrace)
		}
		waitErr := c.cmd.Wait()
		if err == nil && waitErr != nil && !isExitError(waitErr) {
			err = waitErr
		}
	}
	return err
}

func (c *Client) waitReaders(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for _, ch := range []chan struct{}{c.done, c.stderrDone} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-timer.C:
			return false
		}
	}
	return true
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var resp response
		if err := json.Unmarshal([]byte(line), &resp); err != nil || resp.ID == 0 {
			c.logger.Debug("agent output", zap.String("line", line))
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("agent stdout closed with error", zap.Error(err))
	}

	c.mu.Lock()
	c.closed = true
	c.pending = make(map[uint64]chan response)
	c.mu.Unlock()
	close(c.done)
}

func logStderr(r io.Reader, logger *zap.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			logger.Debug("agent stderr", zap.String("line", line))
		}
	}
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
