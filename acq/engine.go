// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Source supplies one raw sample row per acquisition tick.
// Next blocks until a row is available; it returns io.EOF when the
// stream is exhausted.
type Source interface {
	Next(ctx context.Context) (Row, error)
}

type config struct {
	level uint16
	ratio int
	mode  Mode
	chanA uint8
	chanB uint8
	msg   *log.Logger
}

// Option configures an Engine.
type Option func(*config)

// WithTriggerLevel sets the compare level used by the trigger condition
// and the phase-detector edge taps.
func WithTriggerLevel(v uint16) Option {
	return func(cfg *config) {
		cfg.level = v
	}
}

// WithDownsample sets the initial downsampling ratio and mode.
func WithDownsample(ratio int, mode Mode) Option {
	return func(cfg *config) {
		cfg.ratio = ratio
		cfg.mode = mode
	}
}

// WithPhaseChans selects the two channels whose rising edges feed
// streams A and B of the phase detector.
func WithPhaseChans(a, b uint8) Option {
	return func(cfg *config) {
		cfg.chanA = a
		cfg.chanB = b
	}
}

// WithLogger sets the logger used by the acquisition loop.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

type armReq struct {
	cfg  Config
	errc chan error
}

type edgeTap struct {
	ch   uint8
	prev uint16
	seen bool
}

// Engine runs the acquisition execution context: it pulls raw rows from
// its source, downsamples them, feeds the triggerer (which fills the
// capture ring) and taps raw edges into the phase detector.
//
// The command context never touches the pipeline directly: arming
// crosses over through a request/ack channel pair serviced between
// samples, and state flows back through immutable snapshots.
type Engine struct {
	msg *log.Logger
	src Source

	ds    *Downsampler
	trg   *Triggerer
	ring  *Ring
	phase *PhaseDetector

	taps [2]edgeTap
	tick uint64

	arm    chan armReq
	done   chan int
	cancel context.CancelFunc
	err    error
}

// NewEngine returns an Engine acquiring from src.
func NewEngine(src Source, opts ...Option) (*Engine, error) {
	cfg := config{
		level: 0x8000,
		ratio: 1,
		mode:  ModeDecimate,
		chanA: 0,
		chanB: 1,
		msg:   log.New(os.Stdout, "acq: ", 0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ds, err := NewDownsampler(cfg.ratio, cfg.mode)
	if err != nil {
		return nil, fmt.Errorf("acq: could not create downsampler: %w", err)
	}
	if cfg.chanA >= NumChans || cfg.chanB >= NumChans {
		return nil, fmt.Errorf("acq: invalid phase channels (%d,%d)", cfg.chanA, cfg.chanB)
	}

	ring := NewRing()
	eng := &Engine{
		msg:   cfg.msg,
		src:   src,
		ds:    ds,
		trg:   NewTriggerer(ring, cfg.level),
		ring:  ring,
		phase: NewPhaseDetector(),
		arm:   make(chan armReq),
	}
	eng.taps[0].ch = cfg.chanA
	eng.taps[1].ch = cfg.chanB
	return eng, nil
}

// Ring returns the capture ring. Reads from it belong to the command
// context.
func (eng *Engine) Ring() *Ring { return eng.ring }

// Status returns the current acquisition status snapshot.
func (eng *Engine) Status() Status { return eng.trg.Status() }

// Phase returns the most recent phase measurement.
func (eng *Engine) Phase() Measurement { return eng.phase.Measurement() }

// Downsampler exposes the pipeline's downsampler for staged
// reconfiguration between runs.
func (eng *Engine) Downsampler() *Downsampler { return eng.ds }

// Arm forwards a capture configuration to the acquisition context and
// waits for its verdict.
func (eng *Engine) Arm(ctx context.Context, cfg Config) error {
	req := armReq{cfg: cfg, errc: make(chan error, 1)}
	select {
	case eng.arm <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the acquisition loop.
func (eng *Engine) Start() error {
	if eng.done != nil {
		return fmt.Errorf("acq: engine already started")
	}
	ctx, cancel := context.WithCancel(context.Background())
	eng.cancel = cancel
	eng.done = make(chan int)
	eng.phase.Reset()
	go eng.loop(ctx)
	return nil
}

// Stop halts the acquisition loop and reports any acquisition error.
func (eng *Engine) Stop() error {
	if eng.done == nil {
		return fmt.Errorf("acq: engine not started")
	}

	const timeout = 10 * time.Second
	tck := time.NewTimer(timeout)
	defer tck.Stop()

	eng.cancel()
	select {
	case eng.done <- 1:
		<-eng.done
	case <-tck.C:
		return fmt.Errorf("acq: could not stop engine (timeout=%v)", timeout)
	}
	eng.done = nil

	if eng.err != nil {
		return fmt.Errorf("acq: error during acquisition: %w", eng.err)
	}
	return nil
}

func (eng *Engine) loop(ctx context.Context) {
	for {
		select {
		case <-eng.done:
			eng.done <- 1
			return
		case req := <-eng.arm:
			req.errc <- eng.trg.Arm(req.cfg)
			continue
		default:
		}

		row, err := eng.src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled):
				// stop requested.
			case errors.Is(err, io.EOF):
				eng.msg.Printf("source exhausted after %d ticks", eng.tick)
			default:
				eng.err = fmt.Errorf("acq: could not read sample: %w", err)
				eng.msg.Printf("%+v", eng.err)
			}
			// wait for the stop handshake.
			<-eng.done
			eng.done <- 1
			return
		}

		eng.tap(row)
		eng.tick++

		red, ok := eng.ds.Process(row)
		if ok {
			eng.trg.Feed(red)
		}
	}
}

// tap feeds rising edges on the two phase channels into the detector.
func (eng *Engine) tap(row Row) {
	level := eng.trg.level
	for i := range eng.taps {
		t := &eng.taps[i]
		v := row[t.ch]
		if t.seen && t.prev < level && v >= level {
			switch i {
			case 0:
				eng.phase.EdgeA(eng.tick)
			case 1:
				eng.phase.EdgeB(eng.tick)
			}
		}
		t.prev = v
		t.seen = true
	}
}

// DumpStatus writes a human-readable engine status to w.
func (eng *Engine) DumpStatus(w io.Writer) error {
	st := eng.Status()
	ph := eng.Phase()
	_, err := fmt.Fprintf(w,
		"state=%v trig-index=%d rows=%d overflow=%v (total=%d)\nphase: offset=%d valid=%v\nring: %d rows pending\n",
		st.State, st.TrigIndex, st.Rows, st.Overflow, st.Overflows,
		ph.Offset, ph.Valid,
		eng.ring.Len(),
	)
	if err != nil {
		return fmt.Errorf("acq: could not dump status: %w", err)
	}
	return nil
}
