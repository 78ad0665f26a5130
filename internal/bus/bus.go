// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bus serialises access to the shared I²C bus between the
// Pressure Scanner and the Environment Sampler.
//
// The arbiter is the only mutator of the bus's slave-address state: every
// access constructs a fresh i2c.Dev view bound to the caller's target
// address inside the critical section, so a transaction can never
// observe another client's address left over from a previous call.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
)

// TransientError marks a single transaction failure that the caller
// should treat as recoverable: skip this cycle, keep the previously
// published value, and retry next cycle. See spec error kind (a).
type TransientError struct {
	Addr uint16
	Op   string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("bus: transient error on addr 0x%02x during %s: %v", e.Addr, e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Wrap marks err as a TransientError for the given address/operation, so
// callers can recover from it with errors.As rather than string matching.
func Wrap(addr uint16, op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Addr: addr, Op: op, Err: err}
}

// IsTransient reports whether err (or any error it wraps) is a
// TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// Arbiter owns the single underlying I²C bus handle and guards access to
// it with a mutex. No operation performed inside Do may straddle its
// release: the lock is held for the full duration of the caller's
// sequence of register reads/writes.
type Arbiter struct {
	mu  sync.Mutex
	bus i2c.Bus
}

// New wraps bus with an Arbiter.
func New(bus i2c.Bus) *Arbiter {
	return &Arbiter{bus: bus}
}

// Do takes the bus lock, binds a device handle at addr, and runs fn
// against it. The lock is released once fn returns. Failures surface as
// whatever error fn returns; callers are expected to wrap individual
// transaction failures with Wrap so they can be distinguished from
// programmer errors.
func (a *Arbiter) Do(addr uint16, fn func(dev *i2c.Dev) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	dev := &i2c.Dev{Bus: a.bus, Addr: addr}
	return fn(dev)
}
