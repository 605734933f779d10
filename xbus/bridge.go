// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xbus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrBusy is returned by Do when a transaction is already in flight.
var ErrBusy = errors.New("xbus: bridge busy")

type result struct {
	data uint32
	err  error
}

// Bridge relays register transactions from an initiator to a target
// running on an independent schedule. The handshake has four phases,
// each an unbuffered channel operation:
//
//	req  - the initiator raises the request, the target observes it
//	exec - the target performs the operation
//	ack  - the target raises the acknowledge, the initiator observes it
//	done - the initiator lowers the request, the target observes it
//	       and lowers the acknowledge
//
// At most one transaction is in flight: a concurrent Do is rejected
// with ErrBusy, never queued.
type Bridge struct {
	req  chan Tx
	ack  chan result
	done chan struct{}
	busy atomic.Bool
}

// NewBridge returns a bridge ready to relay transactions.
// Serve must be running for Do to complete.
func NewBridge() *Bridge {
	return &Bridge{
		req:  make(chan Tx),
		ack:  make(chan result),
		done: make(chan struct{}),
	}
}

// Do performs one register transaction on the initiator side and
// returns the data the target produced (the read value, or the echo of
// a write). The context guards only the raising of the request: once
// the target has observed it, the handshake runs to completion.
func (br *Bridge) Do(ctx context.Context, tx Tx) (uint32, error) {
	if !br.busy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer br.busy.Store(false)

	select {
	case br.req <- tx:
	case <-ctx.Done():
		return 0, fmt.Errorf("xbus: could not raise %v request: %w", tx.Op, ctx.Err())
	}

	res := <-br.ack
	br.done <- struct{}{}

	if res.err != nil {
		return res.data, fmt.Errorf("xbus: could not %v reg 0x%04x: %w", tx.Op, tx.Addr, res.err)
	}
	return res.data, nil
}

// Serve runs the target side of the bridge until the context is
// canceled. Cancellation is honored between transactions only: a
// handshake in flight always completes.
func (br *Bridge) Serve(ctx context.Context, tgt Target) error {
	for {
		var tx Tx
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tx = <-br.req:
		}

		var res result
		switch tx.Op {
		case OpRead:
			res.data, res.err = tgt.ReadReg(tx.Addr)
		case OpWrite:
			res.err = tgt.WriteReg(tx.Addr, tx.Data)
			res.data = tx.Data
		default:
			res.err = fmt.Errorf("xbus: unknown op %d", tx.Op)
		}

		br.ack <- res
		<-br.done
	}
}
