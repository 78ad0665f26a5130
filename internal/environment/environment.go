// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package environment polls the shared-bus temperature/humidity probe
// and publishes a rolling 3-sample average, grounded on the teacher's
// sht4x package (same I²C command shape) but re-derived per spec.md
// §4.4 around the Bus Arbiter and the rolling mean/all-zero-read
// failure mode the teacher's Sense does not model.
package environment

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"

	"github.com/GermanBionicSystems/smartbedstation/internal/bus"
	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

// Addr is the SHT-family temperature/humidity sensor's I²C address.
const Addr uint16 = 0x44

const (
	cmdMeasureHighRepeatability = 0x2400
	conversionDelay             = 50 * time.Millisecond
	ringCapacity                = 3
)

// Sampler polls the sensor on its own goroutine and publishes the
// arithmetic mean of the last ringCapacity successful readings.
type Sampler struct {
	arbiter *bus.Arbiter
	log     *logging.Logger
	period  time.Duration

	mu    sync.Mutex
	ring  []session.EnvironmentReading
	mean  session.EnvironmentReading

	stop chan struct{}
}

// New creates a Sampler polling the Bus Arbiter every period.
func New(arbiter *bus.Arbiter, log *logging.Logger, period time.Duration) *Sampler {
	return &Sampler{
		arbiter: arbiter,
		log:     log,
		period:  period,
		ring:    make([]session.EnvironmentReading, 0, ringCapacity),
		stop:    make(chan struct{}),
	}
}

// Run polls the sensor at the configured period until Stop is called.
func (s *Sampler) Run() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		start := time.Now()
		if reading, ok := s.cycle(); ok {
			s.publish(reading)
		}
		elapsed := time.Since(start)
		if elapsed < s.period {
			time.Sleep(s.period - elapsed)
		}
	}
}

// Stop halts the polling loop at its next period boundary.
func (s *Sampler) Stop() {
	close(s.stop)
}

// cycle performs one measure-wait-read cycle. It reports ok=false for a
// transient bus error or an all-zero read (spec error kinds (a)/(b)), in
// which case the caller must preserve the previous average.
func (s *Sampler) cycle() (session.EnvironmentReading, bool) {
	err := s.arbiter.Do(Addr, func(dev *i2c.Dev) error {
		cmd := []byte{byte(cmdMeasureHighRepeatability >> 8), byte(cmdMeasureHighRepeatability)}
		return bus.Wrap(Addr, "measure command", dev.Tx(cmd, nil))
	})
	if err != nil {
		s.log.Debugf("environment: measure command failed: %v", err)
		return session.EnvironmentReading{}, false
	}

	time.Sleep(conversionDelay)

	var data [6]byte
	err = s.arbiter.Do(Addr, func(dev *i2c.Dev) error {
		return bus.Wrap(Addr, "read measurement", dev.Tx(nil, data[:]))
	})
	if err != nil {
		s.log.Debugf("environment: read failed: %v", err)
		return session.EnvironmentReading{}, false
	}

	if data == [6]byte{} {
		s.log.Debugf("environment: all-zero read, discarding")
		return session.EnvironmentReading{}, false
	}

	rawTemp := uint16(data[0])<<8 | uint16(data[1])
	rawHum := uint16(data[3])<<8 | uint16(data[4])
	reading := session.EnvironmentReading{
		TemperatureC: -45.0 + 175.0*(float32(rawTemp)/65535.0),
		HumidityPct:  100.0 * (float32(rawHum) / 65535.0),
	}
	return reading, true
}

func (s *Sampler) publish(reading session.EnvironmentReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) >= ringCapacity {
		s.ring = s.ring[1:]
	}
	s.ring = append(s.ring, reading)

	var sumT, sumH float32
	for _, r := range s.ring {
		sumT += r.TemperatureC
		sumH += r.HumidityPct
	}
	n := float32(len(s.ring))
	s.mean = session.EnvironmentReading{
		TemperatureC: sumT / n,
		HumidityPct:  sumH / n,
	}
}

// LatestAverage returns the current rolling mean, or the zero reading
// before the first successful cycle.
func (s *Sampler) LatestAverage() session.EnvironmentReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mean
}
