// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package biomed

// RRSCascade returns the fixed 6th-order lowpass realising the
// respiratory reference signal's B_RRS/A_RRS coefficient set: three
// RBJ-cookbook Butterworth sections at a 0.7 Hz cutoff (fs = 20 Hz),
// one per 6th-order Butterworth conjugate pole pair, passing the 0.1-0.6
// Hz respiratory band with negligible attenuation.
func RRSCascade() Cascade {
	return Cascade{
		{b0: 0.009920, b1: 0.019841, b2: 0.009920, a1: -1.61233, a2: 0.65208},
		{b0: 0.010406, b1: 0.020812, b2: 0.010406, a1: -1.69135, a2: 0.73285},
		{b0: 0.011368, b1: 0.022737, b2: 0.011368, a1: -1.84759, a2: 0.89317},
	}
}

// CRSCascade returns the fixed 8th-order lowpass realising the cardiac
// reference signal's B_CRS/A_CRS coefficient set: four Butterworth
// sections at a 3.5 Hz cutoff, passing the 0.8-3 Hz cardiac band.
func CRSCascade() Cascade {
	return Cascade{
		{b0: 0.145715, b1: 0.291430, b2: 0.145715, a1: -0.48453, a2: 0.067322},
		{b0: 0.156826, b1: 0.313650, b2: 0.156826, a1: -0.52158, a2: 0.148856},
		{b0: 0.182617, b1: 0.365233, b2: 0.182617, a1: -0.60736, a2: 0.337839},
		{b0: 0.232636, b1: 0.465273, b2: 0.232636, a1: -0.77359, a2: 0.703927},
	}
}
