// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package metronome drives the fixed-rate tick loop that assembles raw
// producer readings into sessions and hands finished sessions to the
// pipeline for biomedical processing. See spec.md §4.6/§4.7.
//
// A bare time.Ticker cannot satisfy the burst catch-up requirement
// (spec.md §8 scenario 4): it drops ticks while the receiver is busy and
// never lets more than one be pending, so a goroutine stall cannot be
// followed by a run of back-to-back catch-up ticks. Metronome instead
// tracks its own next-deadline and loops immediately, without sleeping,
// whenever it is behind schedule.
package metronome

import (
	"time"

	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

const (
	// tickHz is the base tick rate driving accelerometer appends.
	tickHz = 20
	tickPeriod = time.Second / tickHz

	// pressureEveryNTicks appends a pressure sample once per second.
	pressureEveryNTicks = 20
	// environmentEveryNTicks appends an environment sample once per 20s.
	environmentEveryNTicks = 400
	// sessionLengthTicks finalises a session once per 60s (1200 ticks).
	sessionLengthTicks = session.AccelPerSession
)

// PressureSource supplies the latest pressure frame on demand.
type PressureSource interface {
	LatestFrame() session.PressureFrame
}

// InertialSource supplies the latest inertial tuple on demand.
type InertialSource interface {
	LatestSample() session.InertialSample
}

// EnvironmentSource supplies the latest environment rolling average on
// demand.
type EnvironmentSource interface {
	LatestAverage() session.EnvironmentReading
}

// Metronome assembles one Session per sessionLengthTicks ticks from the
// three producer sources and hands each finished session to handoff.
type Metronome struct {
	pressure    PressureSource
	inertial    InertialSource
	environment EnvironmentSource
	handoff     func(*session.Session)
	now         func() time.Time

	stop chan struct{}
}

// New creates a Metronome. handoff is called once per completed session;
// it must not block for long, since the metronome's own tick budget keeps
// running while it executes.
func New(pressure PressureSource, inertial InertialSource, environment EnvironmentSource, handoff func(*session.Session)) *Metronome {
	return &Metronome{
		pressure:    pressure,
		inertial:    inertial,
		environment: environment,
		handoff:     handoff,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
}

// Run drives the tick loop until Stop is called. It is meant to run on
// its own goroutine for the process lifetime.
func (m *Metronome) Run() {
	sess := session.New(m.timestamp())
	tickInSession := 0
	next := m.now().Add(tickPeriod)

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		now := m.now()
		if now.Before(next) {
			time.Sleep(next.Sub(now))
			continue
		}

		var stopped bool
		next, sess, tickInSession, stopped = m.catchUp(next, sess, tickInSession)
		if stopped {
			return
		}
	}
}

// catchUp runs every tick whose deadline has already elapsed, without
// sleeping between them, so a goroutine stall is followed by a burst of
// back-to-back ticks rather than a silently skipped backlog (spec.md §8
// scenario 4). It returns the updated schedule state and whether Stop
// was observed mid-burst.
func (m *Metronome) catchUp(next time.Time, sess *session.Session, tickInSession int) (time.Time, *session.Session, int, bool) {
	for !next.After(m.now()) {
		tickInSession++
		m.tick(sess, tickInSession)
		next = next.Add(tickPeriod)

		if tickInSession >= sessionLengthTicks {
			sess.FinishTimestamp = m.timestamp()
			m.handoff(sess)
			sess = session.New(m.timestamp())
			tickInSession = 0
		}

		select {
		case <-m.stop:
			return next, sess, tickInSession, true
		default:
		}
	}
	return next, sess, tickInSession, false
}

// Stop halts the tick loop at its next deadline check.
func (m *Metronome) Stop() {
	close(m.stop)
}

func (m *Metronome) timestamp() string {
	return m.now().Format(session.TimeFormat)
}

// tick appends one accelerometer sample every tick, a pressure sample
// every 20th tick, and an environment sample every 400th tick, per
// spec.md §4.6.
func (m *Metronome) tick(sess *session.Session, tickInSession int) {
	ts := m.timestamp()

	sess.DataRaw.Acceleration = append(sess.DataRaw.Acceleration, session.AccelSample{
		Timestamp: ts,
		Measure:   m.inertial.LatestSample(),
	})

	if tickInSession%pressureEveryNTicks == 0 {
		frame := m.pressure.LatestFrame()
		sess.DataRaw.Pressure = append(sess.DataRaw.Pressure, session.PressureSample{
			Timestamp: ts,
			Measure:   &frame,
		})
	}

	if tickInSession%environmentEveryNTicks == 0 {
		env := m.environment.LatestAverage()
		sess.DataRaw.Environment = append(sess.DataRaw.Environment, session.EnvironmentSample{
			Timestamp:   ts,
			Temperature: env.TemperatureC,
			Humidity:    env.HumidityPct,
		})
	}
}
