// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the station's compile-time configuration record.
//
// It mirrors the shape of the original SmartBeddingRust CONFIG constant:
// a single struct populated once at process start and shared read-only
// by every component.
package config

import "time"

// Config is the station's configuration record. See spec.md §6 for the
// full list of recognised options.
type Config struct {
	DebugMode      bool
	StorageEnabled bool
	StoragePath    string

	ScanDelayMS               uint32
	PressureTriggerMS         uint32
	PressureThreshold         uint16
	PressureMatrixVisualize   bool
	AccelerationPeriodMS      uint32
	AccelerationTriggerMS     uint32
	EnvironmentPeriodMS       uint32
	EnvironmentTriggerMS      uint32

	AudioSampleRate        uint32
	AudioChannels          uint16
	AudioBlockDurationS    uint32
	AudioSilenceThreshold  float32

	APICode  string
	APIToken string
}

// Default returns the station's default configuration, matching the
// values the original implementation hardcoded in config.rs.
func Default() Config {
	return Config{
		DebugMode:      true,
		StorageEnabled: true,
		StoragePath:    "/var/lib/smartbedding/data",

		ScanDelayMS:             8,
		PressureTriggerMS:       1000,
		PressureThreshold:       100,
		PressureMatrixVisualize: false,
		AccelerationPeriodMS:    25,
		AccelerationTriggerMS:   50,
		EnvironmentPeriodMS:     10000,
		EnvironmentTriggerMS:    20000,

		AudioSampleRate:       44100,
		AudioChannels:         2,
		AudioBlockDurationS:   60,
		AudioSilenceThreshold: 0.01,

		APICode:  "",
		APIToken: "",
	}
}

// ScanDelay returns ScanDelayMS as a time.Duration.
func (c Config) ScanDelay() time.Duration {
	return time.Duration(c.ScanDelayMS) * time.Millisecond
}

// AccelerationPeriod returns AccelerationPeriodMS as a time.Duration.
func (c Config) AccelerationPeriod() time.Duration {
	return time.Duration(c.AccelerationPeriodMS) * time.Millisecond
}

// EnvironmentPeriod returns EnvironmentPeriodMS as a time.Duration.
func (c Config) EnvironmentPeriod() time.Duration {
	return time.Duration(c.EnvironmentPeriodMS) * time.Millisecond
}

// AudioBlockDuration returns AudioBlockDurationS as a time.Duration.
func (c Config) AudioBlockDuration() time.Duration {
	return time.Duration(c.AudioBlockDurationS) * time.Second
}
