// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package biomed consumes finished sessions from the pipeline, derives
// the respiratory and cardiac reference signals from the gyroscope
// triplet, and fills in the performance snapshot before the record is
// handed to the storage layer. See spec.md §4.8.
package biomed

// Biquad is one second-order direct-form-I IIR section:
//
//	y[n] = b0·x[n] + b1·x[n-1] + b2·x[n-2] - a1·y[n-1] - a2·y[n-2]
//
// a0 is implicitly 1; callers normalise by a0 when constructing a
// section. Each Biquad carries its own state so a Cascade can run
// several in series without needing to flatten them into one
// high-order transfer function by hand.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// Step applies the recurrence to one input sample and advances state.
func (f *Biquad) Step(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Reset clears the section's delay line, so the same coefficients can be
// reused for a new session without carrying state across recordings.
func (f *Biquad) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}

// Cascade chains Biquad sections in series: the output of one section is
// the input to the next. This realises the fixed-coefficient RRS/CRS
// filters spec.md §4.8 calls "biquad cascades" — a 6th-order response as
// 3 sections, an 8th-order response as 4 — using the numerically stable
// per-section form rather than one flattened high-order direct-form-I
// filter.
type Cascade []Biquad

// Step runs x through every section in order.
func (c Cascade) Step(x float64) float64 {
	for i := range c {
		x = c[i].Step(x)
	}
	return x
}

// Apply filters a whole signal, returning a new slice the same length as
// in. The cascade's internal state is reset first so repeated calls on
// fresh sessions never leak state from a previous recording. Per
// spec.md §4.8 step 3, the output is zero-initialised and the first
// M-1 samples are left as the warm-up zero rather than the filter's
// transient response, where M is the cascade's tap count (2·len(c)+1:
// each section contributes 2nd-order history, plus the implicit a0).
func (c Cascade) Apply(in []float64) []float64 {
	for i := range c {
		c[i].Reset()
	}
	out := make([]float64, len(in))
	for i, x := range in {
		out[i] = c.Step(x)
	}
	warmup := 2 * len(c)
	if warmup > len(out) {
		warmup = len(out)
	}
	for i := 0; i < warmup; i++ {
		out[i] = 0
	}
	return out
}
