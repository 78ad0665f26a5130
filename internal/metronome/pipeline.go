// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package metronome

import (
	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

// pipelineCapacity bounds the number of finished-but-unprocessed
// sessions the pipeline will buffer before it starts dropping, per
// spec.md §4.7.
const pipelineCapacity = 10

// AlertFunc is notified whenever a session is dropped because the
// pipeline is saturated, so an operator surface can raise a visible
// warning.
type AlertFunc func(reason string)

// Pipeline hands finished sessions from the metronome to a slower
// consumer (the biomedical processor) through a bounded channel with
// non-blocking drop-on-full semantics: the metronome's tick loop must
// never stall waiting for the processor.
type Pipeline struct {
	sessions chan *session.Session
	log      *logging.Logger
	alert    AlertFunc
}

// NewPipeline creates a Pipeline. alert may be nil.
func NewPipeline(log *logging.Logger, alert AlertFunc) *Pipeline {
	return &Pipeline{
		sessions: make(chan *session.Session, pipelineCapacity),
		log:      log,
		alert:    alert,
	}
}

// Submit is the metronome's handoff callback: it enqueues sess or drops
// it (and fires alert) if the pipeline is already full.
func (p *Pipeline) Submit(sess *session.Session) {
	select {
	case p.sessions <- sess:
	default:
		p.log.Statusf("pipeline", "dropping session finished at %s: pipeline saturated", sess.FinishTimestamp)
		if p.alert != nil {
			p.alert("pipeline saturated: dropped session " + sess.FinishTimestamp)
		}
	}
}

// Sessions exposes the receive side for the processor's consumer loop.
func (p *Pipeline) Sessions() <-chan *session.Session {
	return p.sessions
}

// Close signals no further sessions will be submitted.
func (p *Pipeline) Close() {
	close(p.sessions)
}
