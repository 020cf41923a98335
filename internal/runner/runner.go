// Package runner spawns the CLI backend as a child process and streams its
// stdout line by line.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/observability"
	"github.com/n0madic/go-agentquery/internal/stream"
)

// DefaultTimeout bounds a single process run when the invocation sets none.
const DefaultTimeout = 5 * time.Minute

// killGrace is how long a terminated process may linger before it is killed
// and its pipes are closed.
const killGrace = 3 * time.Second

// stderrCap bounds how much stderr is retained per run.
const stderrCap = 64 * 1024

// Style selects how the request payload reaches the child's stdin.
type Style int

const (
	// StyleDirect opens the request file as the child's stdin.
	StyleDirect Style = iota
	// StyleShellPipe runs `cat file | cli ...` (`type` on Windows).
	StyleShellPipe
	// StyleShellRedirect runs `cli ... < file`.
	StyleShellRedirect
)

func (s Style) String() string {
	switch s {
	case StyleDirect:
		return "direct"
	case StyleShellPipe:
		return "shell-pipe"
	case StyleShellRedirect:
		return "shell-redirect"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// Invocation describes one process run.
type Invocation struct {
	Executable string
	Args       []string
	Payload    []byte
	Style      Style
	TempDir    string
	Timeout    time.Duration
}

// Runner starts processes. The zero value is usable.
type Runner struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// New creates a runner logging to logger.
func New(logger *zap.Logger, metrics *observability.Metrics) *Runner {
	return &Runner{Logger: logger, Metrics: metrics}
}

func (r *Runner) logger() *zap.Logger {
	if r == nil || r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) metrics() *observability.Metrics {
	if r == nil {
		return nil
	}
	return r.Metrics
}

// Process is a running child. Lines must be drained (or Stop called) before
// Wait can return.
type Process struct {
	cmd      *exec.Cmd
	inv      Invocation
	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	metrics  *observability.Metrics
	reqFile  string
	stdin    *os.File
	stdout   io.ReadCloser
	stderr   *cappedBuffer
	lines    chan string
	readDone chan struct{}
	stopCh   chan struct{}

	stopOnce sync.Once
	waitOnce sync.Once
	waitErr  error
}

// Start writes the payload to a request file, spawns the child according to
// inv.Style and begins streaming its stdout.
func (r *Runner) Start(ctx context.Context, inv Invocation) (*Process, error) {
	logger := r.logger()
	if inv.Timeout <= 0 {
		inv.Timeout = DefaultTimeout
	}
	if inv.Executable == "" {
		return nil, &ProcessError{ExitCode: -1, Err: errors.New("no executable configured")}
	}

	reqFile, err := writeRequestFile(inv.TempDir, inv.Payload)
	if err != nil {
		return nil, &ProcessError{ExitCode: -1, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.Timeout)
	name, args := commandLine(inv, reqFile)
	cmd := exec.CommandContext(runCtx, name, args...)
	setProcAttr(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = killGrace

	p := &Process{
		cmd:      cmd,
		inv:      inv,
		parent:   ctx,
		ctx:      runCtx,
		cancel:   cancel,
		logger:   logger.With(zap.String("style", inv.Style.String())),
		metrics:  r.metrics(),
		reqFile:  reqFile,
		stderr:   &cappedBuffer{max: stderrCap},
		lines:    make(chan string),
		readDone: make(chan struct{}),
		stopCh:   make(chan struct{}),
	}

	fail := func(err error) (*Process, error) {
		cancel()
		if p.stdin != nil {
			p.stdin.Close()
		}
		if !releaseRequestFile(reqFile, logger) {
			p.metrics.RecordTempFileLeak()
		}
		return nil, &ProcessError{ExitCode: -1, Err: err}
	}

	if inv.Style == StyleDirect {
		f, err := os.Open(reqFile)
		if err != nil {
			return fail(fmt.Errorf("open request file: %w", err))
		}
		p.stdin = f
		cmd.Stdin = f
	}
	cmd.Stderr = p.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(err)
	}
	p.stdout = stdout

	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	p.logger.Debug("runner.spawn",
		zap.String("executable", inv.Executable),
		zap.Strings("args", inv.Args),
		zap.Int("pid", cmd.Process.Pid),
		zap.Duration("timeout", inv.Timeout),
	)

	go p.readLines()
	return p, nil
}

// commandLine builds the argv for inv, with reqFile as the payload source.
func commandLine(inv Invocation, reqFile string) (string, []string) {
	if inv.Style == StyleDirect {
		return inv.Executable, inv.Args
	}
	quoted := make([]string, 0, len(inv.Args)+1)
	quoted = append(quoted, shellQuote(inv.Executable))
	for _, a := range inv.Args {
		quoted = append(quoted, shellQuote(a))
	}
	invocation := strings.Join(quoted, " ")

	var script string
	switch inv.Style {
	case StyleShellPipe:
		script = pipeCommand(reqFile) + " | " + invocation
	default:
		script = invocation + " < " + shellQuote(reqFile)
	}
	return shellCommand(script)
}

func (p *Process) readLines() {
	defer close(p.readDone)
	defer close(p.lines)

	var lb stream.LineBuffer
	buf := make([]byte, 32*1024)
	send := func(line string) bool {
		select {
		case p.lines <- line:
			return true
		case <-p.stopCh:
			return false
		}
	}
	for {
		n, err := p.stdout.Read(buf)
		if n > 0 {
			for _, line := range lb.Push(buf[:n]) {
				if !send(line) {
					return
				}
			}
		}
		if err != nil {
			if tail, ok := lb.Flush(); ok {
				send(tail)
			}
			return
		}
	}
}

// Lines returns stdout lines as they are flushed by the child. The channel is
// closed at end of output or after Stop.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Stop terminates the child and releases the line reader. It is safe to call
// more than once and after the process has exited.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.cancel()
	})
}

func (p *Process) stopped() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

// Wait blocks until the child exits and its request file is released. It
// returns nil on a zero exit, ErrStopped after Stop, the parent context's
// error on cancellation, and a *ProcessError otherwise.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.wait()
	})
	return p.waitErr
}

func (p *Process) wait() error {
	<-p.readDone
	err := p.cmd.Wait()
	timedOut := errors.Is(p.ctx.Err(), context.DeadlineExceeded) && p.parent.Err() == nil
	p.cancel()
	if p.stdin != nil {
		p.stdin.Close()
	}
	if !releaseRequestFile(p.reqFile, p.logger) {
		p.metrics.RecordTempFileLeak()
	}

	stderr := strings.TrimSpace(p.stderr.String())
	if stderr != "" && !isDiagnosticChatter(stderr) {
		p.logger.Warn("runner.stderr", zap.String("stderr", excerpt(stderr)))
	}

	switch {
	case p.parent.Err() != nil:
		return p.parent.Err()
	case p.stopped():
		return ErrStopped
	case timedOut:
		p.logger.Warn("runner.timeout", zap.Duration("timeout", p.inv.Timeout))
		return &ProcessError{ExitCode: -1, TimedOut: true, Timeout: p.inv.Timeout, Stderr: excerpt(stderr), Err: context.DeadlineExceeded}
	case err == nil, errors.Is(err, exec.ErrWaitDelay):
		return nil
	}

	perr := &ProcessError{ExitCode: -1, Stderr: excerpt(stderr), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		perr.ExitCode = exitErr.ExitCode()
		perr.Signal = exitSignal(exitErr.ProcessState)
	}
	p.logger.Debug("runner.exit", zap.Int("code", perr.ExitCode), zap.String("signal", perr.Signal))
	return perr
}

// isDiagnosticChatter reports whether stderr only carries log noise.
func isDiagnosticChatter(s string) bool {
	return strings.Contains(s, "DEBUG") || strings.Contains(s, "INFO")
}

// cappedBuffer keeps the first max bytes written and discards the rest.
type cappedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
