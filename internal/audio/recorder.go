// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package audio drives the I²S microphone capture loop, writes the raw
// samples to a per-session WAV file and derives the AudioMetrics summary
// spec.md §4.5 attaches to the finished session. The hand-off from the
// capture callback to the writer/statistics goroutine is a bounded,
// drop-oldest channel, grounded on the pack's msiner-sdrplay-go
// helpers/callback.StreamChan "send, default: drop" idiom — a capture
// device must never block waiting on disk I/O.
package audio

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

// batchQueueLen bounds the number of pending capture batches buffered
// between the capture goroutine and the writer/statistics goroutine.
const batchQueueLen = 500

// Device abstracts the I²S capture source so Recorder can be exercised
// with a synthetic feed in tests. ReadBatch blocks until a batch of
// interleaved float32 samples in [-1, 1] is available, or returns an
// error (typically io.EOF at end of stream).
type Device interface {
	ReadBatch() ([]float32, error)
	Close() error
}

// Recorder pulls batches from a Device, hands them off to a writer
// goroutine through a bounded drop-oldest channel, and accumulates the
// running statistics spec.md §4.5 requires for the block's AudioMetrics.
type Recorder struct {
	dev        Device
	log        *logging.Logger
	sampleRate uint32
	channels   uint16
	silenceThreshold float64

	batches chan []float32
	done    chan struct{}

	mu      sync.Mutex
	stats   runningStats
	writer  *wavWriter
	dropped uint64
}

type runningStats struct {
	sumSq       float64
	peak        float64
	zeroCross   uint64
	silentCount uint64
	total       uint64
	lastSign    int
	haveLast    bool
}

// New creates a Recorder writing PCM16 samples to w and reading capture
// batches from dev. sampleRate/channels describe the format; silenceThreshold
// is the absolute sample magnitude below which a sample counts as silent
// (spec.md §4.5's silence_percent).
func New(dev Device, w io.WriteSeeker, log *logging.Logger, sampleRate uint32, channels uint16, silenceThreshold float64) (*Recorder, error) {
	ww, err := newWAVWriter(w, sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}
	return &Recorder{
		dev:              dev,
		log:              log,
		sampleRate:       sampleRate,
		channels:         channels,
		silenceThreshold: silenceThreshold,
		batches:          make(chan []float32, batchQueueLen),
		done:             make(chan struct{}),
		writer:           ww,
	}, nil
}

// Capture runs the read loop until the Device returns an error (io.EOF
// for a clean end of block) or Stop is called. It is meant to run on its
// own goroutine; Write runs concurrently on another.
func (r *Recorder) Capture() error {
	defer close(r.batches)
	for {
		select {
		case <-r.done:
			return nil
		default:
		}
		batch, err := r.dev.ReadBatch()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("audio: capture: %w", err)
		}
		select {
		case r.batches <- batch:
		default:
			// Drop the oldest pending batch to make room rather than
			// block the capture device, mirroring StreamChan's send-or-drop
			// hand-off.
			select {
			case <-r.batches:
				r.mu.Lock()
				r.dropped++
				r.mu.Unlock()
			default:
			}
			select {
			case r.batches <- batch:
			default:
			}
		}
	}
}

// Write drains batches, persists them to the WAV file and updates the
// running statistics. It returns when the capture side closes the
// channel (Capture returned) or Stop truncates the stream early.
func (r *Recorder) Write() error {
	for batch := range r.batches {
		if err := r.consume(batch); err != nil {
			return err
		}
	}
	return nil
}

// Stop signals an in-progress Capture/Write pair to wind down; it is
// safe to call concurrently with Capture.
func (r *Recorder) Stop() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Recorder) consume(batch []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range batch {
		if err := r.writer.writeSample(s); err != nil {
			return fmt.Errorf("audio: writing sample: %w", err)
		}
		v := float64(s)
		r.stats.sumSq += v * v
		if av := math.Abs(v); av > r.stats.peak {
			r.stats.peak = av
		}
		if math.Abs(v) < r.silenceThreshold {
			r.stats.silentCount++
		}
		sign := 1
		if v < 0 {
			sign = -1
		}
		if r.stats.haveLast && sign != r.stats.lastSign && sign != 0 && r.stats.lastSign != 0 {
			r.stats.zeroCross++
		}
		if v != 0 {
			r.stats.lastSign = sign
			r.stats.haveLast = true
		}
		r.stats.total++
	}
	return nil
}

// Finish closes the WAV file (patching its header with the final frame
// count) and returns the block's AudioMetrics.
func (r *Recorder) Finish() (session.AudioMetrics, error) {
	r.mu.Lock()
	stats := r.stats
	r.mu.Unlock()

	if err := r.writer.close(); err != nil {
		return session.AudioMetrics{}, fmt.Errorf("audio: closing wav: %w", err)
	}

	if stats.total == 0 {
		return session.AudioMetrics{}, nil
	}

	rms := math.Sqrt(stats.sumSq / float64(stats.total))
	metrics := session.AudioMetrics{
		DBAvg:       20 * math.Log10(math.Max(rms, 1e-6)),
		DBMax:       20 * math.Log10(math.Max(stats.peak, 1e-6)),
		DBMin:       20 * math.Log10(math.Max(r.silenceThreshold, 1e-6)),
		SilencePct:  100 * float64(stats.silentCount) / float64(stats.total),
	}
	if rms > 0 {
		metrics.Crest = stats.peak / rms
	}
	frames := float64(stats.total) / float64(r.channels)
	seconds := frames / float64(r.sampleRate)
	if seconds > 0 {
		metrics.ZCR = float64(stats.zeroCross) / seconds
	}
	if r.dropped > 0 {
		r.log.Debugf("audio: dropped %d batches under backpressure", r.dropped)
	}
	return metrics, nil
}
