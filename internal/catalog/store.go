// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog is the persisted mapping of recording id to recording.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ManuGH/echodl/internal/log"
	"github.com/ManuGH/echodl/internal/metrics"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// Store is the concurrency-safe catalog. Mutations only touch memory; Save
// persists the whole map and is serialized by its own lock so overlapping
// callers never interleave writes.
type Store struct {
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	records map[string]Recording

	saveMu sync.Mutex
}

// NewStore returns an empty store that saves to path.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		logger:  log.WithComponent("catalog"),
		records: make(map[string]Recording),
	}
}

// Load reads the catalog at path. A missing or corrupt file yields an empty
// store; the condition is logged and never returned as an error.
func Load(path string) *Store {
	s := NewStore(path)

	// #nosec G304 -- catalog path comes from operator config
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(err).Str(log.FieldPath, path).Msg("unable to read catalog, starting empty")
		} else {
			s.logger.Debug().Str(log.FieldPath, path).Msg("no catalog yet, starting empty")
		}
		return s
	}

	var raw map[string]Recording
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldPath, path).Msg("unable to parse catalog, starting empty")
		return s
	}
	for id, r := range raw {
		r.ID = id
		s.records[id] = r
	}
	s.logger.Debug().Str(log.FieldPath, path).Int(log.FieldCount, len(s.records)).Msg("loaded catalog")
	return s
}

// Path is the file Save writes to.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(id string) (Recording, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Put stores r under id, replacing any existing record.
func (s *Store) Put(id string, r Recording) {
	r.ID = id
	s.mu.Lock()
	s.records[id] = r
	s.mu.Unlock()
}

// PutIfAbsent stores r unless id is already present. It reports whether r was stored.
func (s *Store) PutIfAbsent(id string, r Recording) bool {
	r.ID = id
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return false
	}
	s.records[id] = r
	return true
}

// Update applies fn to the record with id under the write lock.
// It reports whether the record existed.
func (s *Store) Update(id string, fn func(*Recording)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false
	}
	fn(&r)
	r.ID = id
	s.records[id] = r
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of all records.
func (s *Store) Snapshot() map[string]Recording {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Recording, len(s.records))
	for id, r := range s.records {
		out[id] = r
	}
	return out
}

// Save rewrites the catalog file atomically with the current contents.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snap := s.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		metrics.RecordCatalogSave(false, len(snap))
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			metrics.RecordCatalogSave(false, len(snap))
			return fmt.Errorf("create catalog directory: %w", err)
		}
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		metrics.RecordCatalogSave(false, len(snap))
		return fmt.Errorf("write catalog %s: %w", s.path, err)
	}
	metrics.RecordCatalogSave(true, len(snap))
	s.logger.Debug().Str(log.FieldPath, s.path).Int(log.FieldCount, len(snap)).Str(log.FieldEvent, "catalog.saved").Msg("saved catalog")
	return nil
}
