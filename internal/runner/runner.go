// Package runner executes a command on behalf of a job and reports the
// execution's lifecycle to the monitoring backend.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

const ringBufSize = 64 * 1024 // 64KB

// RingBuffer is a fixed-size circular buffer that implements io.Writer.
// It retains only the most recent bytes written, up to its capacity.
type RingBuffer struct {
	buf  []byte
	size int
	pos  int
	full bool
}

// NewRingBuffer creates a RingBuffer with the given capacity.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, size), size: size}
}

// Write implements io.Writer, overwriting the oldest data once full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= rb.size {
		copy(rb.buf, p[n-rb.size:])
		rb.pos = 0
		rb.full = true
		return n, nil
	}

	oldPos := rb.pos
	first := rb.size - rb.pos
	if first >= n {
		copy(rb.buf[rb.pos:], p)
	} else {
		copy(rb.buf[rb.pos:], p[:first])
		copy(rb.buf, p[first:])
	}

	rb.pos = (rb.pos + n) % rb.size
	if !rb.full && rb.pos <= oldPos && n > 0 {
		rb.full = true
	}
	return n, nil
}

// String returns the buffered contents in chronological order.
func (rb *RingBuffer) String() string {
	if !rb.full {
		return string(rb.buf[:rb.pos])
	}
	out := make([]byte, rb.size)
	n := copy(out, rb.buf[rb.pos:])
	copy(out[n:], rb.buf[:rb.pos])
	return string(out)
}

// Job identifies the execution a command runs as.
type Job struct {
	Name  string
	RunID string
	Env   map[string]string
}

// Result is the outcome of one command run.
type Result struct {
	ExitCode int
	Duration time.Duration
	// Error describes why the run failed; empty on success.
	Error      string
	StderrTail string
}

// Failed reports whether the run should be recorded as FAILED.
func (r Result) Failed() bool {
	return r.ExitCode != 0 || r.Error != ""
}

// Runner executes commands for jobs.
type Runner struct{}

// RunOptions controls optional output destinations for a command run.
type RunOptions struct {
	Stdout  io.Writer
	Stderr  io.Writer
	WorkDir string
	Timeout time.Duration
}

// NewRunner creates a new Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes argv with the job's environment.
func (r *Runner) Run(ctx context.Context, argv []string, job Job, opts RunOptions) Result {
	if len(argv) == 0 {
		return Result{ExitCode: -1, Error: "no command"}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = BuildEnv(nil, job)
	cmd.Dir = opts.WorkDir

	stderrBuf := NewRingBuffer(ringBufSize)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = newTeeWriter(stderrBuf, opts.Stderr)

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Duration:   time.Since(start),
		StderrTail: stderrBuf.String(),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Error = "timeout after " + opts.Timeout.String()
		} else {
			result.Error = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
	}
	return result
}

const maxErrorMessage = 2048

// ErrorMessage renders the failure reported to the backend: the error
// followed by the tail of stderr.
func (r Result) ErrorMessage() string {
	if !r.Failed() {
		return ""
	}
	msg := r.Error
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", r.ExitCode)
	}
	if tail := strings.TrimSpace(r.StderrTail); tail != "" {
		if len(tail) > maxErrorMessage {
			tail = tail[len(tail)-maxErrorMessage:]
		}
		msg += ": " + tail
	}
	return msg
}

type teeWriter struct {
	primary   io.Writer
	secondary io.Writer
}

func newTeeWriter(primary io.Writer, secondary io.Writer) io.Writer {
	if secondary == nil {
		return primary
	}
	return &teeWriter{
		primary:   primary,
		secondary: secondary,
	}
}

func (t *teeWriter) Write(p []byte) (int, error) {
	n, err := t.primary.Write(p)
	if t.secondary != nil {
		_, _ = t.secondary.Write(p)
	}
	return n, err
}
