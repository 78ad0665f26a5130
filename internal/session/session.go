// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package session holds the data model assembled by the metronome and
// finalised by the biomedical processor: one fixed-duration recording
// combining pressure, inertial, environment, audio, and derived signals.
package session

const (
	// PressureRows is the row count of the resistive pressure matrix.
	PressureRows = 16
	// PressureCols is the column count of the resistive pressure matrix.
	PressureCols = 12

	// AccelPerSession is the number of inertial samples in a finalised
	// session (20 Hz x 60 s).
	AccelPerSession = 1200
	// PressurePerSession is the number of pressure samples in a
	// finalised session (1 Hz x 60 s).
	PressurePerSession = 60
	// EnvironmentPerSession is the number of environment samples in a
	// finalised session (1 per 20 s x 60 s).
	EnvironmentPerSession = 3

	// TimeFormat is the wall-clock format shared by every timestamp in
	// a session: HH:MM:SS.mmm, local time.
	TimeFormat = "15:04:05.000"
)

// PressureFrame is a 16x12 grid of gain-corrected pressure intensities.
// A cell whose raw ADC reading saturates is normalised to 0; otherwise
// the raw count has been scaled by the fixed gain. See spec.md §3.
type PressureFrame [PressureRows][PressureCols]uint16

// InertialSample is a 6-tuple of physical-unit IMU readings: gyroscope
// in degrees/second, accelerometer in g.
type InertialSample struct {
	Gx, Gy, Gz float32
	Ax, Ay, Az float32
}

// EnvironmentReading is a temperature/humidity pair derived from the raw
// sensor word.
type EnvironmentReading struct {
	TemperatureC float32
	HumidityPct  float32
}

// PressureSample pairs a timestamp with a shared reference to the frame
// observed at that tick. The pointer is shared, not copied, to avoid
// duplicating a ~384-byte matrix on every hand-off (spec.md §9).
type PressureSample struct {
	Timestamp string         `json:"timestamp"`
	Measure   *PressureFrame `json:"measure"`
}

// AccelSample pairs a timestamp with the inertial tuple sampled at that
// tick.
type AccelSample struct {
	Timestamp string          `json:"timestamp"`
	Measure   InertialSample  `json:"measure"`
}

// EnvironmentSample pairs a timestamp with the environment reading
// sampled at that tick.
type EnvironmentSample struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float32 `json:"temperature"`
	Humidity    float32 `json:"humidity"`
}

// AudioMetrics carries the loudness/ZCR statistics for the WAV block
// matching a session, per spec.md §4.5.
type AudioMetrics struct {
	DBAvg         float64 `json:"dB_avg"`
	DBMax         float64 `json:"dB_max"`
	DBMin         float64 `json:"dB_min"`
	Crest         float64 `json:"crest"`
	SilencePct    float64 `json:"silence_percent"`
	ZCR           float64 `json:"zcr"`
}

// DataRaw holds the three fixed-length sampled vectors for one session.
type DataRaw struct {
	Acceleration []AccelSample       `json:"acceleration"`
	Pressure     []PressureSample    `json:"pressure"`
	Environment  []EnvironmentSample `json:"environment"`
}

// Measures holds audio and derived biomedical scalar measures.
type Measures struct {
	Audio                 *AudioMetrics `json:"audio"`
	RespiratoryRate       float64       `json:"respiratory_rate"`
	HeartRate             float64       `json:"heart_rate"`
	HeartRateVariability  float64       `json:"heart_rate_variability"`
}

// DataProcessed holds the filtered 1-D respiratory and cardiac reference
// signals, one sample per inertial sample.
type DataProcessed struct {
	RRS []float64 `json:"rrs"`
	CRS []float64 `json:"crs"`
}

// Performance snapshots host resource usage at finalisation time.
type Performance struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// Session is one fixed-duration aggregated record from all producers.
type Session struct {
	InitTimestamp   string        `json:"initTimestamp"`
	FinishTimestamp string        `json:"finishTimestamp"`
	DataRaw         DataRaw       `json:"dataRaw"`
	Measures        Measures      `json:"measures"`
	DataProcessed   DataProcessed `json:"dataProcessed"`
	Performance     Performance   `json:"performance"`
}

// New allocates a fresh session with pre-reserved capacities for one
// full recording period, and its InitTimestamp set to ts.
func New(ts string) *Session {
	return &Session{
		InitTimestamp: ts,
		DataRaw: DataRaw{
			Acceleration: make([]AccelSample, 0, AccelPerSession),
			Pressure:     make([]PressureSample, 0, PressurePerSession),
			Environment:  make([]EnvironmentSample, 0, EnvironmentPerSession),
		},
	}
}
