// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package biomed

import (
	"math"
	"testing"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

func TestApplyZeroInputYieldsZeroOutput(t *testing.T) {
	in := make([]float64, 50)
	for _, c := range []Cascade{RRSCascade(), CRSCascade()} {
		out := c.Apply(in)
		for i, v := range out {
			if v != 0 {
				t.Fatalf("sample %d: zero input produced non-zero output %v", i, v)
			}
		}
	}
}

func constSession(n int) *session.Session {
	sess := session.New("00:00:00.000")
	for i := 0; i < n; i++ {
		sess.DataRaw.Acceleration = append(sess.DataRaw.Acceleration, session.AccelSample{
			Timestamp: "00:00:00.000",
			Measure:   session.InertialSample{Gx: 0, Gy: 0, Gz: 0, Ax: 0, Ay: 0, Az: 1},
		})
	}
	return sess
}

// TestColdStartConstantSignalHasZeroRespiratoryRate matches spec.md §8
// scenario 1: a minute of constant readings should yield a zero
// respiratory rate.
func TestColdStartConstantSignalHasZeroRespiratoryRate(t *testing.T) {
	sess := constSession(session.AccelPerSession)
	p := New(logging.New(false), nil, func(*session.Session) {})
	p.process(sess)

	if got := sess.Measures.RespiratoryRate; got != 0 {
		t.Fatalf("respiratory_rate = %v, want 0", got)
	}
	if len(sess.DataProcessed.RRS) != session.AccelPerSession {
		t.Fatalf("rrs length = %d, want %d", len(sess.DataProcessed.RRS), session.AccelPerSession)
	}
	if len(sess.DataProcessed.CRS) != session.AccelPerSession {
		t.Fatalf("crs length = %d, want %d", len(sess.DataProcessed.CRS), session.AccelPerSession)
	}
}

// TestSinusoidalBreathYieldsFifteenBreathsPerMinute matches spec.md §8
// scenario 3: injecting gx = sin(2*pi*0.25*n/20) for 60s (0.25 Hz = 15
// breaths/min) should yield a respiratory rate within +/-1 of 15.
func TestSinusoidalBreathYieldsFifteenBreathsPerMinute(t *testing.T) {
	n := session.AccelPerSession
	sess := session.New("00:00:00.000")
	for i := 0; i < n; i++ {
		gx := float32(math.Sin(2 * math.Pi * 0.25 * float64(i) / sampleRateHz))
		sess.DataRaw.Acceleration = append(sess.DataRaw.Acceleration, session.AccelSample{
			Timestamp: "00:00:00.000",
			Measure:   session.InertialSample{Gx: gx},
		})
	}

	p := New(logging.New(false), nil, func(*session.Session) {})
	p.process(sess)

	rate := sess.Measures.RespiratoryRate
	if math.Abs(rate-15) > 1 {
		t.Fatalf("respiratory_rate = %v, want within 1 of 15", rate)
	}
}

type fakeAudioSource struct {
	metrics []session.AudioMetrics
	idx     int
}

func (f *fakeAudioSource) NextMetrics() (session.AudioMetrics, bool) {
	if f.idx >= len(f.metrics) {
		return session.AudioMetrics{}, false
	}
	m := f.metrics[f.idx]
	f.idx++
	return m, true
}

func TestProcessAttachesAudioMetricsPositionally(t *testing.T) {
	audio := &fakeAudioSource{metrics: []session.AudioMetrics{{DBAvg: -42}}}
	var got *session.Session
	p := New(logging.New(false), audio, func(s *session.Session) { got = s })

	p.process(constSession(10))
	if got.Measures.Audio == nil || got.Measures.Audio.DBAvg != -42 {
		t.Fatalf("expected audio metrics to be attached, got %+v", got.Measures.Audio)
	}
}

func TestProcessWithoutAudioSourceLeavesMetricsNil(t *testing.T) {
	var got *session.Session
	p := New(logging.New(false), nil, func(s *session.Session) { got = s })
	p.process(constSession(10))
	if got.Measures.Audio != nil {
		t.Fatalf("expected nil audio metrics without an audio source, got %+v", got.Measures.Audio)
	}
}
