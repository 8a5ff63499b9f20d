package execctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/phrazzld/offload/internal/result"
	"github.com/phrazzld/offload/internal/task"
	"github.com/phrazzld/offload/internal/wire"
)

// stderrTailSize is how much of a child's stderr is kept for failure reports
const stderrTailSize = 4 << 10

// ProcessHost runs each context as a child process. The child is started as
// `command... <program text>`, reads the startup message from stdin and
// writes the result message to stdout. Terminating kills the child and
// waits for it to be reaped.
type ProcessHost struct {
	command []string
	env     []string
	logger  *slog.Logger
}

// NewProcessHost creates a host that launches command for every context.
// A nil env inherits the current process environment.
func NewProcessHost(command []string, env []string, logger *slog.Logger) (*ProcessHost, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("process host requires a worker command")
	}
	return &ProcessHost{
		command: append([]string(nil), command...),
		env:     env,
		logger:  logger.With("component", "process_host"),
	}, nil
}

// Spawn implements Host
func (h *ProcessHost) Spawn(_ context.Context, prog task.Program) (Context, error) {
	args := append(append([]string(nil), h.command[1:]...), prog.String())
	cmd := exec.Command(h.command[0], args...)
	cmd.Env = h.env

	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker process: %w", err)
	}

	c := &processContext{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		results: make(chan wire.Result, 1),
		done:    make(chan struct{}),
		logger:  h.logger.With("pid", cmd.Process.Pid, "func", prog.Func),
	}
	go c.wait()

	c.logger.Debug("worker process started")
	return c, nil
}

type processContext struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.Reader
	stderr  *tailBuffer
	results chan wire.Result
	done    chan struct{}
	logger  *slog.Logger

	mu         sync.Mutex
	sent       bool
	terminated bool
	once       sync.Once
}

// wait reads the single result, then reaps the process.
func (c *processContext) wait() {
	defer close(c.done)
	defer close(c.results)

	msg, readErr := wire.NewReader(c.stdout).ReadResult()
	waitErr := c.cmd.Wait()

	c.mu.Lock()
	terminated := c.terminated
	c.mu.Unlock()

	if readErr == nil {
		c.results <- msg
		return
	}
	if terminated {
		return
	}

	// The process ended or spoke garbage without being asked to stop.
	detail := readErr.Error()
	if errors.Is(readErr, io.EOF) {
		detail = "exited without posting a result"
	}
	if waitErr != nil {
		detail += " (" + waitErr.Error() + ")"
	}
	if tail := strings.TrimSpace(c.stderr.String()); tail != "" {
		detail += ": " + tail
	}
	c.logger.Warn("worker process failed", "detail", detail)
	c.results <- wire.FailureResult(fmt.Errorf("%w: worker process %s", result.ErrComputation, detail))
}

func (c *processContext) Send(input json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return ErrContextTerminated
	}
	if c.sent {
		return errors.New("startup message already sent")
	}
	c.sent = true

	if err := wire.WriteMessage(c.stdin, wire.Startup{Input: input}); err != nil {
		return err
	}
	return c.stdin.Close()
}

func (c *processContext) Results() <-chan wire.Result {
	return c.results
}

func (c *processContext) Terminate() error {
	var killErr error
	c.once.Do(func() {
		c.mu.Lock()
		c.terminated = true
		c.mu.Unlock()

		_ = c.stdin.Close()
		if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			killErr = fmt.Errorf("failed to kill worker process: %w", err)
		}
	})

	// Resources are released once the process is reaped.
	<-c.done
	return killErr
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
