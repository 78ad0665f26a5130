// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package inertial runs a dedicated SPI sampling loop for the 6-axis
// inertial unit (gyroscope + accelerometer) and publishes the latest
// tuple for lock-free reads, grounded on the teacher's mpu9250
// transport shape. See spec.md §4.3.
package inertial

import (
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

const (
	regTempData    = 0x1D // burst-read start register
	regPwrMgmt0    = 0x4E
	regGyroConfig0 = 0x4F
	regAccelConfig0 = 0x50

	gfs250dps   = 0x03
	afs2g       = 0x03
	godr1000hz  = 0x06
	aodr1000hz  = 0x06

	burstLen = 14 // 1 int16 temperature + 6 int16 values; sampleOnce adds 1 leading command byte
)

// Sampler drives the SPI device and publishes InertialSample values.
type Sampler struct {
	conn   spi.Conn
	cs     gpio.PinOut
	log    *logging.Logger
	period time.Duration

	latest atomic.Pointer[session.InertialSample]
	stop   chan struct{}

	gRes float32
	aRes float32
}

// New initialises the device (power management, full-scale codes, output
// data rate) and returns a Sampler ready to Run.
func New(conn spi.Conn, cs gpio.PinOut, log *logging.Logger, period time.Duration) (*Sampler, error) {
	s := &Sampler{
		conn:   conn,
		cs:     cs,
		log:    log,
		period: period,
		stop:   make(chan struct{}),
		gRes:   (2000.0 / pow2(gfs250dps)) / 32768.0,
		aRes:   (16.0 / pow2(afs2g)) / 32768.0,
	}
	zero := session.InertialSample{}
	s.latest.Store(&zero)

	if err := s.writeByte(regPwrMgmt0, 0x0F); err != nil {
		return nil, err
	}
	if err := s.writeByte(regGyroConfig0, (gfs250dps<<5)|godr1000hz); err != nil {
		return nil, err
	}
	if err := s.writeByte(regAccelConfig0, (afs2g<<5)|aodr1000hz); err != nil {
		return nil, err
	}
	return s, nil
}

func pow2(n int) float32 {
	v := float32(1)
	for i := 0; i < n; i++ {
		v *= 2
	}
	return v
}

func (s *Sampler) writeByte(addr, value byte) error {
	if err := s.cs.Out(gpio.Low); err != nil {
		return err
	}
	buf := [2]byte{addr, value}
	err := s.conn.Tx(buf[:], nil)
	if errOut := s.cs.Out(gpio.High); err == nil {
		err = errOut
	}
	return err
}

// Run samples the device at its configured period until Stop is called.
// It is meant to run on its own goroutine for the lifetime of the
// process.
func (s *Sampler) Run() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		start := time.Now()
		s.sampleOnce()
		elapsed := time.Since(start)
		if elapsed < s.period {
			time.Sleep(s.period - elapsed)
		}
	}
}

// Stop halts the sampling loop at its next period boundary.
func (s *Sampler) Stop() {
	close(s.stop)
}

func (s *Sampler) sampleOnce() {
	cmd := make([]byte, burstLen+1)
	cmd[0] = regTempData | 0x80
	res := make([]byte, burstLen+1)
	if err := s.conn.Tx(cmd, res); err != nil {
		s.log.Debugf("inertial: burst read failed: %v", err)
		return
	}
	raw := res[1:]
	toF32 := func(msb, lsb byte) float32 {
		return float32(int16(uint16(msb)<<8 | uint16(lsb)))
	}
	sample := session.InertialSample{
		Gx: toF32(raw[2], raw[3]) * s.gRes,
		Gy: toF32(raw[4], raw[5]) * s.gRes,
		Gz: toF32(raw[6], raw[7]) * s.gRes,
		Ax: toF32(raw[8], raw[9]) * s.aRes,
		Ay: toF32(raw[10], raw[11]) * s.aRes,
		Az: toF32(raw[12], raw[13]) * s.aRes,
	}
	s.latest.Store(&sample)
}

// LatestSample returns the most recently published tuple, or the zero
// tuple if no sample has been produced yet.
func (s *Sampler) LatestSample() session.InertialSample {
	return *s.latest.Load()
}
