// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"sync"
)

// RingBuffer keeps the last N lines written to it. It is used as the
// stdout/stderr sink of quiet ffmpeg runs so failures can be diagnosed.
type RingBuffer struct {
	mu      sync.Mutex
	lines   []string
	pos     int
	full    bool
	partial []byte
}

func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{lines: make([]string, size)}
}

// Write implements io.Writer, splitting on newlines and carriage returns
// (ffmpeg redraws its progress line with \r).
func (r *RingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := append(r.partial, p...)
	for {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		if i > 0 {
			r.add(string(data[:i]))
		}
		data = data[i+1:]
	}
	r.partial = append([]byte(nil), data...)
	return len(p), nil
}

func (r *RingBuffer) add(line string) {
	r.lines[r.pos] = line
	r.pos = (r.pos + 1) % len(r.lines)
	if r.pos == 0 {
		r.full = true
	}
}

// Lines returns the retained lines oldest first, including an unterminated tail.
func (r *RingBuffer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []string
	if !r.full {
		res = append([]string(nil), r.lines[:r.pos]...)
	} else {
		res = make([]string, len(r.lines))
		copy(res, r.lines[r.pos:])
		copy(res[len(r.lines)-r.pos:], r.lines[:r.pos])
	}
	if len(r.partial) > 0 {
		res = append(res, string(r.partial))
	}
	return res
}
