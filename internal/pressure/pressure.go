// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pressure drives the 16x12 resistive pressure matrix: a
// bit-banged shift-register row driver, an I/O-expander column mux, and
// a single-shot ADC conversion, all arbitrated through the shared I²C
// bus. See spec.md §4.2.
package pressure

import (
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"

	"github.com/GermanBionicSystems/smartbedstation/internal/bus"
	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

const (
	// ExpanderAddr is the I/O-expander (MCP23017-style) I²C address.
	ExpanderAddr uint16 = 0x21
	// ADCAddr is the 12-bit ADC (ADS1015-style) I²C address.
	ADCAddr uint16 = 0x48

	regIODIRA = 0x00
	regIODIRB = 0x01
	regOLATA  = 0x14

	adcConfigReg = 0x01
	adcDataReg   = 0x00
	// adcConfigWord is written big-endian as-is: Tx transmits literal wire
	// bytes, unlike the original's SMBus word helpers, so no software
	// byte-swap belongs on either the write or read path. See spec.md §6.
	adcConfigWord uint16 = 0x8583

	saturationThreshold = 4000
	gain                = 35

	rowSettle = 8 * time.Millisecond
	colSettle = 1 * time.Millisecond
	adcSettle = 500 * time.Microsecond
)

// Pins groups the three bit-banged GPIO lines driving the shift
// register chain.
type Pins struct {
	Data  gpio.PinOut
	Clk   gpio.PinOut
	Latch gpio.PinOut
}

// Scanner drives the matrix and publishes the most recently completed
// frame through a double buffer.
type Scanner struct {
	pins   Pins
	bus    *bus.Arbiter
	log    *logging.Logger
	delay  time.Duration

	buffers   [2]session.PressureFrame
	latestIdx atomic.Uint32

	rowMasks [session.PressureRows]uint16
	colVals  [session.PressureCols]byte

	stop chan struct{}
}

// New creates a Scanner. It initialises the I/O expander's direction
// registers once: port A's low five bits as outputs (the column select
// field) and its top three bits as inputs (IODIRA = 0xE0), port B as all
// inputs (IODIRB = 0xFF, unused).
func New(pins Pins, arbiter *bus.Arbiter, log *logging.Logger, scanDelay time.Duration) (*Scanner, error) {
	s := &Scanner{pins: pins, bus: arbiter, log: log, delay: scanDelay, stop: make(chan struct{})}
	for i := 0; i < session.PressureRows; i++ {
		s.rowMasks[i] = uint16(1) << (session.PressureRows - 1 - i)
	}
	for j := 0; j < session.PressureCols; j++ {
		// enable<<4 | addr[3:0], matching spec.md §4.2's column select.
		s.colVals[j] = byte(0x10 | (j & 0x0F))
	}
	err := s.bus.Do(ExpanderAddr, func(dev *i2c.Dev) error {
		if err := dev.Tx([]byte{regIODIRA, 0xE0}, nil); err != nil {
			return bus.Wrap(ExpanderAddr, "iodira init", err)
		}
		if err := dev.Tx([]byte{regIODIRB, 0xFF}, nil); err != nil {
			return bus.Wrap(ExpanderAddr, "iodirb init", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Run scans the matrix in a tight loop until Stop is called. It is meant
// to run on its own goroutine for the lifetime of the process.
func (s *Scanner) Run() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		s.scanOnce()
	}
}

// Stop halts the scan loop once the frame being scanned is complete.
func (s *Scanner) Stop() {
	close(s.stop)
}

func (s *Scanner) scanOnce() {
	writeIdx := 1 - s.latestIdx.Load()
	frame := &s.buffers[writeIdx]
	settle := s.delay
	if settle <= 0 {
		settle = rowSettle
	}
	for row := 0; row < session.PressureRows; row++ {
		s.shiftRow(s.rowMasks[row])
		time.Sleep(settle)
		for col := 0; col < session.PressureCols; col++ {
			if err := s.selectColumn(s.colVals[col]); err != nil {
				s.log.Debugf("pressure: column select failed: %v", err)
				frame[row][col] = 0
				continue
			}
			time.Sleep(colSettle)
			raw, err := s.readADC()
			if err != nil {
				s.log.Debugf("pressure: adc read failed: %v", err)
				frame[row][col] = 0
				continue
			}
			frame[row][col] = normalize(raw)
		}
	}
	s.latestIdx.Store(writeIdx)
}

// normalize applies the saturation/gain rule from spec.md §3.
func normalize(raw uint16) uint16 {
	if raw >= saturationThreshold {
		return 0
	}
	return raw * gain
}

// shiftRow shifts a 16-bit row mask out MSB-first through the bit-banged
// shift-register chain and latches it.
func (s *Scanner) shiftRow(mask uint16) {
	for i := 15; i >= 0; i-- {
		if (mask>>uint(i))&1 == 1 {
			_ = s.pins.Data.Out(gpio.High)
		} else {
			_ = s.pins.Data.Out(gpio.Low)
		}
		_ = s.pins.Clk.Out(gpio.High)
		_ = s.pins.Clk.Out(gpio.Low)
	}
	_ = s.pins.Latch.Out(gpio.High)
	_ = s.pins.Latch.Out(gpio.Low)
}

// selectColumn writes the (enable<<4)|addr field to the expander's
// output latch via the Bus Arbiter.
func (s *Scanner) selectColumn(colVal byte) error {
	return s.bus.Do(ExpanderAddr, func(dev *i2c.Dev) error {
		err := dev.Tx([]byte{regOLATA, colVal}, nil)
		return bus.Wrap(ExpanderAddr, "select column", err)
	})
}

// readADC issues a single-shot conversion and reads back the result.
func (s *Scanner) readADC() (uint16, error) {
	err := s.bus.Do(ADCAddr, func(dev *i2c.Dev) error {
		cfg := []byte{adcConfigReg, byte(adcConfigWord >> 8), byte(adcConfigWord)}
		return bus.Wrap(ADCAddr, "start conversion", dev.Tx(cfg, nil))
	})
	if err != nil {
		return 0, err
	}
	time.Sleep(adcSettle)
	var result uint16
	err = s.bus.Do(ADCAddr, func(dev *i2c.Dev) error {
		r := make([]byte, 2)
		if err := dev.Tx([]byte{adcDataReg}, r); err != nil {
			return bus.Wrap(ADCAddr, "read conversion", err)
		}
		word := uint16(r[0])<<8 | uint16(r[1])
		result = (word >> 4) & 0x0FFF
		return nil
	})
	return result, err
}

// LatestFrame returns a consistent copy of the most recently completed
// scan. It never observes a partially filled frame: the writer always
// completes the off-screen slot before flipping the atomic index.
func (s *Scanner) LatestFrame() session.PressureFrame {
	idx := s.latestIdx.Load()
	return s.buffers[idx]
}
