// Copyright 2020 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package metronome

import (
	"testing"

	"github.com/GermanBionicSystems/smartbedstation/internal/logging"
	"github.com/GermanBionicSystems/smartbedstation/internal/session"
)

func TestPipelineDeliversSubmittedSessions(t *testing.T) {
	p := NewPipeline(logging.New(false), nil)
	sess := session.New("00:00:00.000")
	p.Submit(sess)
	select {
	case got := <-p.Sessions():
		if got != sess {
			t.Fatal("received session does not match submitted session")
		}
	default:
		t.Fatal("expected a buffered session to be immediately receivable")
	}
}

func TestPipelineDropsAndAlertsWhenSaturated(t *testing.T) {
	var alerts []string
	p := NewPipeline(logging.New(false), func(reason string) { alerts = append(alerts, reason) })

	for i := 0; i < pipelineCapacity; i++ {
		p.Submit(session.New("00:00:00.000"))
	}
	if len(alerts) != 0 {
		t.Fatalf("unexpected alerts before saturation: %v", alerts)
	}

	overflow := session.New("overflow")
	p.Submit(overflow)
	if len(alerts) != 1 {
		t.Fatalf("alerts after overflow = %d, want 1", len(alerts))
	}

	for i := 0; i < pipelineCapacity; i++ {
		<-p.Sessions()
	}
	select {
	case <-p.Sessions():
		t.Fatal("overflowed session should have been dropped, not queued")
	default:
	}
}
