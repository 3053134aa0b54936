// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/ManuGH/echodl/internal/catalog"
	"golang.org/x/text/unicode/norm"
)

// MediaExtension is the container every download is written to.
const MediaExtension = ".mp4"

// DestinationPath returns the first free file name for rec under
// root/<unit>: "S01E<NN> - <title>.mp4", then " (1)", " (2)" and so on.
func DestinationPath(root string, rec catalog.Recording) string {
	return destinationPath(root, rec, fileExists)
}

func destinationPath(root string, rec catalog.Recording, taken func(string) bool) string {
	dir := filepath.Join(root, cleanName(rec.Unit, "unit"))
	stem := fmt.Sprintf("S01E%02d - %s", rec.Episode, cleanName(rec.Title, "untitled"))

	candidate := filepath.Join(dir, stem+MediaExtension)
	for n := 1; taken(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, MediaExtension))
	}
	return candidate
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// cleanName turns s into a single path element: NFC-normalised, with path
// separators, characters Windows rejects and control characters replaced.
func cleanName(s, fallback string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '/' || r == '\\':
			b.WriteRune('-')
		case strings.ContainsRune(`<>:"|?*`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimRight(strings.TrimSpace(b.String()), ".")
	if out == "" || out == "." || out == ".." {
		return fallback
	}
	return out
}

// reservations hands out destination paths to concurrent jobs so that two
// jobs never pick the same free name before either file exists.
type reservations struct {
	mu    sync.Mutex
	held  map[string]struct{}
	taken func(string) bool
}

func newReservations() *reservations {
	return &reservations{held: make(map[string]struct{}), taken: fileExists}
}

func (r *reservations) reserve(root string, rec catalog.Recording) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := destinationPath(root, rec, func(p string) bool {
		if _, ok := r.held[p]; ok {
			return true
		}
		return r.taken(p)
	})
	r.held[p] = struct{}{}
	return p
}

func (r *reservations) release(p string) {
	r.mu.Lock()
	delete(r.held, p)
	r.mu.Unlock()
}
