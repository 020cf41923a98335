package runner

import (
	"errors"
	"fmt"
	"time"
)

// ErrStopped is returned by Process.Wait after Stop was called.
var ErrStopped = errors.New("process stopped")

// stderrExcerptLen bounds the stderr text carried in a ProcessError.
const stderrExcerptLen = 500

// ProcessError describes an unsuccessful process run: spawn failure, timeout,
// signal or non-zero exit.
type ProcessError struct {
	ExitCode int
	Signal   string
	Stderr   string
	TimedOut bool
	Timeout  time.Duration
	Err      error
}

func (e *ProcessError) Error() string {
	var msg string
	switch {
	case e.TimedOut:
		msg = fmt.Sprintf("CLI timed out after %s", e.Timeout)
	case e.Signal != "":
		msg = fmt.Sprintf("CLI terminated by signal %s", e.Signal)
	case e.ExitCode > 0:
		msg = fmt.Sprintf("CLI exited with code %d", e.ExitCode)
	case e.Err != nil:
		return fmt.Sprintf("failed to run CLI: %v", e.Err)
	default:
		msg = "CLI failed"
	}
	if e.Stderr != "" {
		msg += ". Stderr: " + e.Stderr
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= stderrExcerptLen {
		return s
	}
	return string(r[:stderrExcerptLen])
}
