// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"
)

// DirChecker requires a directory to exist.
type DirChecker struct {
	name string
	path string
}

func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusUnhealthy, Error: "not configured"}
	}
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return CheckResult{Status: StatusUnhealthy, Error: "directory not found", Message: c.path}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case !info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.path}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// FileChecker reports a missing or empty file as degraded. The catalog
// does not exist until the first successful fetch.
type FileChecker struct {
	name string
	path string
}

func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(context.Context) CheckResult {
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return CheckResult{Status: StatusDegraded, Message: "not created yet"}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	case info.Size() == 0:
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy, Message: c.path}
}

// RunTracker records the last fetch or download run and checks it.
type RunTracker struct {
	mu      sync.Mutex
	name    string
	running string
	last    time.Time
	lastErr error
}

func NewRunTracker() *RunTracker { return &RunTracker{} }

func (t *RunTracker) Name() string { return "last_run" }

// Start marks op as running.
func (t *RunTracker) Start(op string) {
	t.mu.Lock()
	t.running = op
	t.mu.Unlock()
}

// Finish records the outcome of op.
func (t *RunTracker) Finish(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = ""
	t.name = op
	t.last = time.Now()
	t.lastErr = err
}

func (t *RunTracker) Check(context.Context) CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.running != "":
		return CheckResult{Status: StatusHealthy, Message: t.running + " running"}
	case t.last.IsZero():
		return CheckResult{Status: StatusDegraded, Message: "no run finished yet"}
	case t.lastErr != nil:
		return CheckResult{Status: StatusUnhealthy, Message: t.name + " failed", Error: t.lastErr.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: t.name + " finished at " + t.last.Format(time.RFC3339)}
}
