// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/procgroup"
	"github.com/rs/zerolog"
)

const (
	// DefaultBinary is looked up on PATH when no explicit binary is configured.
	DefaultBinary = "ffmpeg"

	diagnosticLines = 40
	stopGrace       = 5 * time.Second
)

// ErrUnavailable is returned by Probe when the binary cannot be executed.
var ErrUnavailable = errors.New("ffmpeg unavailable")

// ExitError is returned when ffmpeg could not be started or exited non-zero.
type ExitError struct {
	Args     []string
	ExitCode int // -1 when the process never started
	Tail     []string
	Err      error
}

func (e *ExitError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("ffmpeg: start failed: %v", e.Err)
	}
	return fmt.Sprintf("ffmpeg: exit status %d", e.ExitCode)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes ffmpeg as a child process in its own process group.
type Runner struct {
	Binary string
	// Verbose makes the child inherit this process's stdout and stderr.
	// Otherwise output goes to a ring buffer attached to ExitError.
	Verbose bool
	Logger  zerolog.Logger
}

func NewRunner(binary string, verbose bool) *Runner {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return &Runner{
		Binary:  binary,
		Verbose: verbose,
		Logger:  log.WithComponent("ffmpeg"),
	}
}

// Run executes ffmpeg with args and waits for it. Cancelling ctx terminates the
// whole process group, SIGTERM first.
func (r *Runner) Run(ctx context.Context, args []string) error {
	// #nosec G204 -- binary comes from operator config; args are built by BuildArgs
	cmd := exec.Command(r.Binary, args...)
	procgroup.Set(cmd)

	var ring *RingBuffer
	if r.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		ring = NewRingBuffer(diagnosticLines)
		cmd.Stdout = ring
		cmd.Stderr = ring
	}

	r.Logger.Debug().
		Str(log.FieldEvent, "ffmpeg.exec").
		Str("binary", r.Binary).
		Strs("args", args).
		Msg("executing ffmpeg")

	if err := cmd.Start(); err != nil {
		return &ExitError{Args: args, ExitCode: -1, Err: err}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var err error
	select {
	case err = <-waitCh:
	case <-ctx.Done():
		r.Logger.Warn().
			Str(log.FieldEvent, "ffmpeg.cancel").
			Int("pid", cmd.Process.Pid).
			Msg("context cancelled, stopping ffmpeg")
		_ = procgroup.Terminate(cmd, waitCh, stopGrace)
		return ctx.Err()
	}
	if err == nil {
		return nil
	}

	exitErr := &ExitError{Args: args, ExitCode: -1, Err: err}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		exitErr.ExitCode = ee.ExitCode()
	}
	if ring != nil {
		exitErr.Tail = ring.Lines()
	}
	return exitErr
}

// Probe checks that the binary can be executed at all.
func (r *Runner) Probe(ctx context.Context) error {
	quiet := *r
	quiet.Verbose = false
	if err := quiet.Run(ctx, []string{"-hide_banner", "-version"}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, r.Binary, err)
	}
	return nil
}
