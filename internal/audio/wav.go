// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// wavHeader mirrors the RIFF/fmt/data chunk layout used by the pack's
// WAV helper (msiner-sdrplay-go/helpers/wav), narrowed to 16-bit PCM
// integer samples (no fact chunk, since that chunk is only required for
// floating-point format).
type wavHeader struct {
	riffChunkID   [4]byte
	riffChunkSize uint32
	riffFormat    [4]byte

	fmtChunkID     [4]byte
	fmtChunkSize   uint32
	audioFormat    uint16
	numChannels    uint16
	sampleRate     uint32
	byteRate       uint32
	blockAlign     uint16
	bitsPerSample  uint16

	dataChunkID   [4]byte
	dataChunkSize uint32
}

const (
	lpcmFormat = 1
)

// newWAVHeader builds a PCM16 header for numFrames frames. A value of 0
// can be used initially and updated later via wavHeader.update, the same
// pattern as wav.Header.Update in the pack's SDR helper.
func newWAVHeader(sampleRate uint32, numChannels uint16, numFrames uint32) wavHeader {
	h := wavHeader{
		riffChunkID:   [4]byte{'R', 'I', 'F', 'F'},
		riffFormat:    [4]byte{'W', 'A', 'V', 'E'},
		fmtChunkID:    [4]byte{'f', 'm', 't', ' '},
		fmtChunkSize:  16,
		audioFormat:   lpcmFormat,
		numChannels:   numChannels,
		sampleRate:    sampleRate,
		bitsPerSample: 16,
		dataChunkID:   [4]byte{'d', 'a', 't', 'a'},
	}
	h.blockAlign = numChannels * (h.bitsPerSample / 8)
	h.byteRate = sampleRate * uint32(h.blockAlign)
	h.update(numFrames)
	return h
}

// update sets the size-dependent fields for a new total frame count.
func (h *wavHeader) update(numFrames uint32) {
	dataBytes := numFrames * uint32(h.blockAlign)
	h.riffChunkSize = 4 + (8 + h.fmtChunkSize) + (8 + dataBytes)
	h.dataChunkSize = dataBytes
}

func (h wavHeader) write(w io.Writer) error {
	fields := []interface{}{
		h.riffChunkID, h.riffChunkSize, h.riffFormat,
		h.fmtChunkID, h.fmtChunkSize, h.audioFormat, h.numChannels,
		h.sampleRate, h.byteRate, h.blockAlign, h.bitsPerSample,
		h.dataChunkID, h.dataChunkSize,
	}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("audio: writing wav header: %w", err)
		}
	}
	return nil
}

const headerSize = 12 + 8 + 16 + 8 // riff header + fmt chunk header + fmt body + data chunk header

// wavWriter writes 16-bit PCM samples to an io.WriteSeeker, patching the
// header's size fields once the block is complete.
type wavWriter struct {
	w          io.WriteSeeker
	sampleRate uint32
	channels   uint16
	frames     uint32
}

func newWAVWriter(w io.WriteSeeker, sampleRate uint32, channels uint16) (*wavWriter, error) {
	h := newWAVHeader(sampleRate, channels, 0)
	if err := h.write(w); err != nil {
		return nil, err
	}
	return &wavWriter{w: w, sampleRate: sampleRate, channels: channels}, nil
}

// writeSample scales a float sample by INT16_MAX with saturating
// conversion, per spec.md §4.5.
func (ww *wavWriter) writeSample(s float32) error {
	v := s * 32767
	switch {
	case v > 32767:
		v = 32767
	case v < -32768:
		v = -32768
	}
	ww.frames++
	return binary.Write(ww.w, binary.LittleEndian, int16(v))
}

// close patches the header with the final frame count.
func (ww *wavWriter) close() error {
	h := newWAVHeader(ww.sampleRate, ww.channels, ww.frames/uint32(ww.channels))
	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return h.write(ww.w)
}
