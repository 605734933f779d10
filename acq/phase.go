// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"sync/atomic"
)

// Measurement is the stabilized offset between the most recent edges on
// streams A and B, in acquisition ticks. Offset is positive when the
// B edge trails the A edge. Valid is false while a measurement is in
// flux or before both streams have produced an edge.
type Measurement struct {
	Offset int64
	Valid  bool
}

const phLatched = 1 << 63 // high bit of a latch marks it as holding an edge

// PhaseDetector measures the time offset between edge events arriving on
// two independently-advancing streams.
//
// EdgeA and EdgeB each run on their own execution context; the context
// observing the second edge of a pair computes the offset and publishes
// an immutable snapshot. Consumers read through Measurement and can
// never observe a torn or transiently-invalid value: validity is
// cleared when a new measurement starts and set only once the snapshot
// is fully published.
type PhaseDetector struct {
	a atomic.Uint64
	b atomic.Uint64

	meas atomic.Pointer[Measurement]
}

// NewPhaseDetector returns a PhaseDetector with no edges latched.
func NewPhaseDetector() *PhaseDetector {
	pd := &PhaseDetector{}
	pd.meas.Store(&Measurement{})
	return pd
}

// EdgeA latches an edge on stream A at the given tick.
func (pd *PhaseDetector) EdgeA(tick uint64) {
	pd.a.Store(phLatched | tick)
	b := pd.b.Load()
	if b&phLatched == 0 {
		pd.meas.Store(&Measurement{}) // new measurement in flux
		return
	}
	pd.meas.Store(&Measurement{
		Offset: int64(b&^phLatched) - int64(tick),
		Valid:  true,
	})
}

// EdgeB latches an edge on stream B at the given tick.
func (pd *PhaseDetector) EdgeB(tick uint64) {
	pd.b.Store(phLatched | tick)
	a := pd.a.Load()
	if a&phLatched == 0 {
		pd.meas.Store(&Measurement{})
		return
	}
	pd.meas.Store(&Measurement{
		Offset: int64(tick) - int64(a&^phLatched),
		Valid:  true,
	})
}

// Reset drops both latches and invalidates the current measurement.
func (pd *PhaseDetector) Reset() {
	pd.a.Store(0)
	pd.b.Store(0)
	pd.meas.Store(&Measurement{})
}

// Measurement returns the most recent stabilized measurement.
func (pd *PhaseDetector) Measurement() Measurement {
	return *pd.meas.Load()
}
