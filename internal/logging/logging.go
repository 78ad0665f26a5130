// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package logging provides the station's console tracing, mirroring the
// debug-gated print helpers used throughout the teacher's device drivers
// (see mpu9250.Transport.EnableDebug) and the original audio_log prefix
// convention from SmartBeddingRust's audio.rs.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger is a small level-gated wrapper around the standard library
// *log.Logger. Debug output is only emitted when Enabled is true.
type Logger struct {
	std     *log.Logger
	Enabled bool
}

// New returns a Logger writing to stderr with the given debug gate.
func New(debug bool) *Logger {
	return &Logger{
		std:     log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
		Enabled: debug,
	}
}

// Debugf logs a formatted line only when the gate is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil || !l.Enabled {
		return
	}
	l.std.Printf(format, args...)
}

// Statusf always logs a formatted line, tagged with the given component.
// This mirrors the original's "[AUDIO_STATUS]"-style status prefixes.
func (l *Logger) Statusf(tag, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.std.Printf("[%s] %s", tag, fmt.Sprintf(format, args...))
}

// DebugHook returns a function compatible with the teacher's DebugF type
// (see mpu9250/transport.go), suitable for wiring into a bus transport.
func (l *Logger) DebugHook() func(string, ...interface{}) {
	return func(format string, args ...interface{}) {
		l.Debugf(format, args...)
	}
}
