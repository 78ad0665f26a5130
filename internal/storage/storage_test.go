// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

func TestOpenPicksSmallestUnusedIndex(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "register_1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "register_3"), 0o755); err != nil {
		t.Fatal(err)
	}

	s, err := Open(base, true, logging.New(false))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := filepath.Join(base, "register_2")
	if s.Dir() != want {
		t.Fatalf("Dir() = %s, want %s", s.Dir(), want)
	}
}

func TestOpenStartsAtOneWhenBaseEmpty(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base, true, logging.New(false))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := filepath.Join(base, "register_1")
	if s.Dir() != want {
		t.Fatalf("Dir() = %s, want %s", s.Dir(), want)
	}
}

func TestSaveWritesSequentialOrdinals(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base, true, logging.New(false))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Save(session.New("00:00:00.000")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(session.New("00:01:00.000")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for _, name := range []string{"reg_1.json", "reg_2.json"} {
		if _, err := os.Stat(filepath.Join(s.Dir(), name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
}

func TestSaveIsNoOpWhenDisabled(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base, false, logging.New(false))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(session.New("00:00:00.000")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written while disabled, found %d", len(entries))
	}
}

func TestAudioPathMatchesOrdinalNaming(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base, true, logging.New(false))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := filepath.Join(s.Dir(), "audio_1.wav")
	if got := s.AudioPath(1); got != want {
		t.Fatalf("AudioPath(1) = %s, want %s", got, want)
	}
}
