// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrOverflow is reported by Ring.Write when all slots hold unread rows.
var ErrOverflow = errors.New("acq: ring overflow")

// Ring is the capture buffer between the acquisition context and the
// command context: a fixed ring of RingDepth rows with one exclusive
// cursor per side.
//
// The write cursor is owned by the producer, the read cursor by the
// consumer; neither side ever mutates the other's cursor. A slot is
// published by advancing wr after the row is stored, and may only be
// rewritten once rd has moved past it, so the two sides never touch
// the same slot concurrently.
type Ring struct {
	rows [RingDepth]Row

	wr atomic.Uint64 // rows written, producer-owned
	rd atomic.Uint64 // rows consumed, consumer-owned

	notify chan struct{}
}

// NewRing returns an empty capture ring.
func NewRing() *Ring {
	return &Ring{notify: make(chan struct{}, 1)}
}

// Len returns the number of rows written but not yet read.
func (rb *Ring) Len() int {
	return int(rb.wr.Load() - rb.rd.Load())
}

// Write stores one row. It never blocks the producer: if no free slot
// remains, the row is dropped and ErrOverflow returned.
// Write must only be called from the producer context.
func (rb *Ring) Write(row Row) error {
	wr := rb.wr.Load()
	if wr-rb.rd.Load() >= RingDepth {
		return ErrOverflow
	}
	rb.rows[wr%RingDepth] = row
	rb.wr.Store(wr + 1)

	select {
	case rb.notify <- struct{}{}:
	default:
	}
	return nil
}

// ReadRows passes n rows, in write order, to fn, blocking until each row
// becomes available or ctx is canceled. The read cursor only advances
// past a row once fn has returned without error.
// ReadRows must only be called from the consumer context.
func (rb *Ring) ReadRows(ctx context.Context, n int, fn func(Row) error) error {
	for i := 0; i < n; i++ {
		rd := rb.rd.Load()
		for rd == rb.wr.Load() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-rb.notify:
			}
		}
		err := fn(rb.rows[rd%RingDepth])
		if err != nil {
			return err
		}
		rb.rd.Store(rd + 1)
	}
	return nil
}
