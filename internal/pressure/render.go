// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pressure

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"

	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

// Renderer prints the latest pressure frame to the console with cells
// above a threshold highlighted, grounded on the teacher's screen1d
// console output convention (colorable.NewColorableStdout +
// github.com/maruel/ansi256) and the original program's
// renderizar_matriz highlight behaviour.
//
// Per spec.md §9 Open Question (2), the threshold only gates this
// console highlight; it has no effect on session-level data.
type Renderer struct {
	w         io.Writer
	threshold uint16
	palette   ansi256.Palette
}

// NewRenderer returns a Renderer writing to a colorable stdout.
func NewRenderer(threshold uint16) *Renderer {
	return &Renderer{
		w:         colorable.NewColorableStdout(),
		threshold: threshold,
		palette:   *ansi256.Default,
	}
}

// Render writes one full-screen redraw of frame, tagged with ts.
func (r *Renderer) Render(ts string, frame session.PressureFrame) {
	var buf bytes.Buffer
	buf.WriteString("\x1b[2J\x1b[H")
	fmt.Fprintf(&buf, "--- sample: %s ---\n\n", ts)
	for row := 0; row < session.PressureRows; row++ {
		for col := 0; col < session.PressureCols; col++ {
			v := frame[row][col]
			if v > r.threshold {
				buf.WriteString(r.palette.Block(color.NRGBA{G: 255, A: 255}))
				fmt.Fprintf(&buf, "%5d\x1b[0m ", v)
			} else {
				fmt.Fprintf(&buf, "%5d ", v)
			}
		}
		buf.WriteByte('\n')
	}
	_, _ = buf.WriteTo(r.w)
}
