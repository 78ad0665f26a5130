// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package storage persists finalised sessions and their matching audio
// blocks under a fresh register_<N> directory, grounded on the
// original's Storage::init_path (one smallest-unused-integer directory
// per process run, reg_<k>.json/audio_<k>.wav per session). See
// spec.md §6.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

const registerPrefix = "register_"

// Store writes finalised sessions to disk under a dedicated register_<N>
// directory for this process run.
type Store struct {
	enabled bool
	dir     string
	log     *logging.Logger
	counter atomic.Uint64
}

// Open selects a register_<N> subdirectory of basePath (N is the
// smallest positive integer not already present) and creates it. If
// enabled is false, Open still resolves dir for logging purposes but
// Save becomes a no-op, matching the original's "persistence disabled"
// warning rather than failing startup.
func Open(basePath string, enabled bool, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating base path: %w", err)
	}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: reading base path: %w", err)
	}
	used := make(map[uint64]bool)
	for _, e := range entries {
		name := e.Name()
		suffix, ok := strings.CutPrefix(name, registerPrefix)
		if !ok {
			continue
		}
		if n, err := strconv.ParseUint(suffix, 10, 64); err == nil {
			used[n] = true
		}
	}
	idx := uint64(1)
	for used[idx] {
		idx++
	}

	dir := filepath.Join(basePath, fmt.Sprintf("%s%d", registerPrefix, idx))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating register directory: %w", err)
	}

	if !enabled {
		log.Statusf("storage", "persistence disabled in configuration")
	}
	log.Statusf("storage", "new session register opened at %s", dir)

	return &Store{enabled: enabled, dir: dir, log: log}, nil
}

// Dir returns the register_<N> directory this Store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes sess as reg_<k>.json, where k is the 1-based ordinal of
// this call within the process run. It is a no-op when persistence is
// disabled.
func (s *Store) Save(sess *session.Session) error {
	k := s.counter.Add(1)
	if !s.enabled {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("storage: marshalling session: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("reg_%d.json", k))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", path, err)
	}
	return nil
}

// AudioPath returns the path an audio block matching the k-th session
// should be written to (audio_<k>.wav), whether or not persistence is
// enabled, so the audio recorder can always open a file handle; Save's
// enabled gate governs whether JSON session records are kept.
func (s *Store) AudioPath(k uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("audio_%d.wav", k))
}

// NextOrdinal previews the ordinal the next Save call will use, for
// callers (the audio recorder) that must open their file ahead of the
// matching session's finalisation.
func (s *Store) NextOrdinal() uint64 {
	return s.counter.Load() + 1
}
