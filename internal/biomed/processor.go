// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package biomed

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

// sampleRateHz is the rate of the session's acceleration vector: the
// metronome's tick rate, at which it samples the inertial stream
// (spec.md §4.8 step 5).
const sampleRateHz = 20.0

// AudioSource supplies the next finished block's metrics, matched
// positionally with the session being finalised (spec.md §9 open
// question 3: pairing is positional, not tagged).
type AudioSource interface {
	NextMetrics() (session.AudioMetrics, bool)
}

// Sink receives a fully processed session, ready for the storage layer.
type Sink func(*session.Session)

// Processor drains a pipeline of finished-but-unprocessed sessions,
// applies the RRS/CRS biquad cascades to the gyroscope triplet, derives
// the respiratory rate, attaches the matching audio block (if any) and a
// host resource snapshot, and forwards the result to sink.
type Processor struct {
	log   *logging.Logger
	audio AudioSource
	sink  Sink

	rrs Cascade
	crs Cascade
}

// New creates a Processor. audio may be nil if no audio block pairing is
// available (e.g. audio capture disabled).
func New(log *logging.Logger, audio AudioSource, sink Sink) *Processor {
	return &Processor{
		log:   log,
		audio: audio,
		sink:  sink,
		rrs:   RRSCascade(),
		crs:   CRSCascade(),
	}
}

// Run drains sessions from ch until it is closed.
func (p *Processor) Run(ch <-chan *session.Session) {
	for sess := range ch {
		p.process(sess)
	}
}

func (p *Processor) process(sess *session.Session) {
	n := len(sess.DataRaw.Acceleration)
	gx := make([]float64, n)
	gy := make([]float64, n)
	gz := make([]float64, n)
	for i, a := range sess.DataRaw.Acceleration {
		gx[i] = float64(a.Measure.Gx)
		gy[i] = float64(a.Measure.Gy)
		gz[i] = float64(a.Measure.Gz)
	}

	gxr, gyr, gzr := p.rrs.Apply(gx), p.rrs.Apply(gy), p.rrs.Apply(gz)
	gxc, gyc, gzc := p.crs.Apply(gx), p.crs.Apply(gy), p.crs.Apply(gz)

	rrs := make([]float64, n)
	crs := make([]float64, n)
	for i := 0; i < n; i++ {
		rrs[i] = 0.7*gxr[i] + 0.22*gyr[i] + 0.0775*gzr[i]
		crs[i] = 0.54633*gxc[i] + 0.31161*gyc[i] + 0.15108*gzc[i]
	}
	sess.DataProcessed.RRS = rrs
	sess.DataProcessed.CRS = crs

	sess.Measures.RespiratoryRate = respiratoryRate(rrs, sampleRateHz)

	if p.audio != nil {
		if metrics, ok := p.audio.NextMetrics(); ok {
			sess.Measures.Audio = &metrics
		}
	}

	sess.Performance = snapshotPerformance(p.log)

	p.sink(sess)
}

// respiratoryRate counts sign transitions of rrs (either direction),
// divides by 2 to obtain full breath cycles, and scales to breaths per
// minute over the recording's duration, per spec.md §4.8 step 5.
func respiratoryRate(rrs []float64, fs float64) float64 {
	if len(rrs) < 2 {
		return 0
	}
	var transitions int
	lastSign := 0
	haveLast := false
	for _, v := range rrs {
		var sign int
		switch {
		case v > 0:
			sign = 1
		case v < 0:
			sign = -1
		}
		if sign == 0 {
			continue
		}
		if haveLast && sign != lastSign {
			transitions++
		}
		lastSign = sign
		haveLast = true
	}
	cycles := float64(transitions) / 2
	durationSeconds := float64(len(rrs)) / fs
	if durationSeconds == 0 {
		return 0
	}
	return cycles * (60 / durationSeconds)
}

// snapshotPerformance reads current host CPU/memory utilisation via
// gopsutil. A read failure is logged and yields a zero snapshot rather
// than failing the whole session.
func snapshotPerformance(log *logging.Logger) session.Performance {
	var perf session.Performance
	if pcts, err := cpu.Percent(0, false); err != nil {
		log.Debugf("biomed: cpu.Percent: %v", err)
	} else if len(pcts) > 0 {
		perf.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err != nil {
		log.Debugf("biomed: mem.VirtualMemory: %v", err)
	} else {
		perf.MemPercent = vm.UsedPercent
	}
	return perf
}
