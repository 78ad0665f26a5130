// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package environment

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/GermanBionicSystems/smartbedstation/internal/bus"
	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
)

// encodeFrame builds a 6-byte measurement frame. The trailing byte of
// each half is the sensor's own CRC-8 byte on real hardware; the
// station does not validate it (spec.md §4.4 defines no CRC-mismatch
// error kind), so any filler value is accepted here.
func encodeFrame(rawTemp, rawHum uint16) []byte {
	b := make([]byte, 6)
	b[0] = byte(rawTemp >> 8)
	b[1] = byte(rawTemp)
	b[2] = 0xFF
	b[3] = byte(rawHum >> 8)
	b[4] = byte(rawHum)
	b[5] = 0xFF
	return b
}

func measureCmd() []byte {
	return []byte{byte(cmdMeasureHighRepeatability >> 8), byte(cmdMeasureHighRepeatability)}
}

func TestCycleSuccessPublishesReading(t *testing.T) {
	frame := encodeFrame(20000, 30000)
	pb := &i2ctest.Playback{DontPanic: true, Ops: []i2ctest.IO{
		{Addr: Addr, W: measureCmd()},
		{Addr: Addr, R: frame},
	}}
	s := New(bus.New(pb), logging.New(false), 0)
	reading, ok := s.cycle()
	if !ok {
		t.Fatal("expected a successful cycle")
	}
	wantTemp := float32(-45.0 + 175.0*(20000.0/65535.0))
	if diff := reading.TemperatureC - wantTemp; diff > 0.01 || diff < -0.01 {
		t.Errorf("temperature = %v, want %v", reading.TemperatureC, wantTemp)
	}
}

func TestCycleAllZeroReadIsDiscarded(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true, Ops: []i2ctest.IO{
		{Addr: Addr, W: measureCmd()},
		{Addr: Addr, R: make([]byte, 6)},
	}}
	s := New(bus.New(pb), logging.New(false), 0)
	if _, ok := s.cycle(); ok {
		t.Fatal("expected all-zero read to be discarded")
	}
}

func TestWarmUpAveragesOnlyAccumulatedSamples(t *testing.T) {
	s := New(bus.New(&i2ctest.Playback{}), logging.New(false), 0)

	first := encodeFrame(10000, 10000)
	second := encodeFrame(20000, 20000)

	s.arbiter = bus.New(&i2ctest.Playback{DontPanic: true, Ops: []i2ctest.IO{
		{Addr: Addr, W: measureCmd()},
		{Addr: Addr, R: first},
	}})
	r1, ok := s.cycle()
	if !ok {
		t.Fatal("expected first cycle to succeed")
	}
	s.publish(r1)

	// Simulate a failed second poll: nothing is appended to the ring.
	s.arbiter = bus.New(&i2ctest.Playback{DontPanic: true, Ops: []i2ctest.IO{
		{Addr: Addr, W: measureCmd()},
		{Addr: Addr, R: make([]byte, 6)},
	}})
	if _, ok := s.cycle(); ok {
		t.Fatal("expected second cycle to fail")
	}

	avgAfterOne := s.LatestAverage()
	if avgAfterOne != r1 {
		t.Fatalf("average after one sample = %+v, want %+v", avgAfterOne, r1)
	}

	s.arbiter = bus.New(&i2ctest.Playback{DontPanic: true, Ops: []i2ctest.IO{
		{Addr: Addr, W: measureCmd()},
		{Addr: Addr, R: second},
	}})
	r2, ok := s.cycle()
	if !ok {
		t.Fatal("expected third cycle to succeed")
	}
	s.publish(r2)

	avgAfterTwo := s.LatestAverage()
	wantTemp := (r1.TemperatureC + r2.TemperatureC) / 2
	if diff := avgAfterTwo.TemperatureC - wantTemp; diff > 0.01 || diff < -0.01 {
		t.Errorf("average temperature = %v, want %v", avgAfterTwo.TemperatureC, wantTemp)
	}
}

func TestLatestAverageBeforeFirstReadingIsZero(t *testing.T) {
	s := New(bus.New(&i2ctest.Playback{}), logging.New(false), time.Millisecond)
	if avg := s.LatestAverage(); avg.TemperatureC != 0 || avg.HumidityPct != 0 {
		t.Fatalf("expected zero average, got %+v", avg)
	}
}
