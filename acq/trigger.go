// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// TriggerType selects the condition a capture is armed on.
type TriggerType uint8

const (
	TrigThreshold TriggerType = iota // rising cross of the trigger level
	TrigEdge                         // any cross of the trigger level
	TrigLevel                        // sample at or above the trigger level
)

func (t TriggerType) String() string {
	switch t {
	case TrigThreshold:
		return "threshold"
	case TrigEdge:
		return "edge"
	case TrigLevel:
		return "level"
	}
	return fmt.Sprintf("TriggerType(%d)", uint8(t))
}

// State enumerates the acquisition states of the Triggerer.
type State uint8

const (
	StIdle State = iota
	StArmed
	StWaiting
	StCapturing
	StDone
)

func (st State) String() string {
	switch st {
	case StIdle:
		return "idle"
	case StArmed:
		return "armed"
	case StWaiting:
		return "waiting"
	case StCapturing:
		return "capturing"
	case StDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", uint8(st))
}

var (
	// ErrBusy is reported when arming while a capture is in progress.
	ErrBusy = errors.New("acq: capture in progress")
	// ErrLength is reported when the requested capture length does not
	// fit the capture ring.
	ErrLength = errors.New("acq: capture length exceeds ring capacity")
)

// Config is the capture configuration latched by an arm command.
// It is read-only to the Triggerer once armed.
type Config struct {
	Type   TriggerType
	Chan   uint8  // channel the trigger condition is evaluated on
	Length uint16 // rows to capture, 1..RingDepth
}

// Status is an immutable snapshot of the Triggerer, safe to hand to
// other execution contexts.
type Status struct {
	State     State
	Config    Config // configuration of the current/last capture
	TrigIndex uint32 // reduced-sample index of the triggering row
	Rows      uint16 // rows written during the current/last capture
	Overflow  bool   // capture halted early on ring overflow
	Overflows uint32 // total overflow events since creation
}

// Triggerer owns the acquisition state machine. It consumes the reduced
// sample stream and decides when rows enter the capture ring.
//
// Arm and Feed are confined to the acquisition context; Status may be
// called from any context.
type Triggerer struct {
	ring  *Ring
	level uint16

	cfg   Config
	state State
	idx   uint32 // reduced samples seen since arm
	trig  uint32
	rows  uint16
	over  bool
	nover uint32

	prev uint16
	seen bool

	status atomic.Pointer[Status]
}

// NewTriggerer returns a Triggerer writing captures into ring,
// evaluating trigger conditions against level.
func NewTriggerer(ring *Ring, level uint16) *Triggerer {
	tr := &Triggerer{ring: ring, level: level}
	tr.publish()
	return tr
}

// Arm latches cfg and starts evaluating the trigger condition.
// It is only accepted in the idle and done states.
func (tr *Triggerer) Arm(cfg Config) error {
	switch tr.state {
	case StIdle, StDone:
		// ok.
	default:
		return ErrBusy
	}
	if cfg.Length == 0 || int(cfg.Length) > RingDepth {
		return ErrLength
	}
	if cfg.Chan >= NumChans {
		return fmt.Errorf("acq: invalid trigger channel %d", cfg.Chan)
	}

	tr.cfg = cfg
	tr.state = StArmed
	tr.idx = 0
	tr.trig = 0
	tr.rows = 0
	tr.over = false
	tr.seen = false
	tr.publish()
	return nil
}

// Feed evaluates one reduced row against the armed configuration.
func (tr *Triggerer) Feed(row Row) {
	idx := tr.idx
	tr.idx++

	switch tr.state {
	case StArmed:
		tr.state = StWaiting
		tr.evaluate(idx, row)
	case StWaiting:
		tr.evaluate(idx, row)
	case StCapturing:
		tr.capture(row)
	default:
		return
	}
	tr.publish()
}

func (tr *Triggerer) evaluate(idx uint32, row Row) {
	v := row[tr.cfg.Chan]
	fired := false
	switch tr.cfg.Type {
	case TrigThreshold:
		fired = tr.seen && tr.prev < tr.level && v >= tr.level
	case TrigEdge:
		fired = tr.seen && (tr.prev < tr.level) != (v < tr.level)
	case TrigLevel:
		fired = v >= tr.level
	}
	tr.prev = v
	tr.seen = true

	if !fired {
		return
	}
	tr.trig = idx
	tr.state = StCapturing
	tr.capture(row) // the triggering row is the first captured row
}

func (tr *Triggerer) capture(row Row) {
	err := tr.ring.Write(row)
	if err != nil {
		// unread rows must not be overwritten: halt the capture early
		// and surface the overflow through the status snapshot.
		tr.over = true
		tr.nover++
		tr.state = StDone
		return
	}
	tr.rows++
	if tr.rows >= tr.cfg.Length {
		tr.state = StDone
	}
}

func (tr *Triggerer) publish() {
	tr.status.Store(&Status{
		State:     tr.state,
		Config:    tr.cfg,
		TrigIndex: tr.trig,
		Rows:      tr.rows,
		Overflow:  tr.over,
		Overflows: tr.nover,
	})
}

// Status returns the most recent state snapshot.
func (tr *Triggerer) Status() Status {
	return *tr.status.Load()
}
