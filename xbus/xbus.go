// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xbus implements the cross-domain transaction bridge: a
// four-phase request/acknowledge relay carrying register operations
// from an initiator context to a target context that runs on an
// independent schedule.
package xbus // import "github.com/go-daq/scope/xbus"

// Op is the kind of a register transaction.
type Op uint8

const (
	OpRead Op = iota
	OpWrite
)

func (op Op) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	}
	return "Op(?)"
}

// Tx is one register transaction. Its fields are latched by the
// initiator when the request is raised and must stay stable until the
// transaction completes.
type Tx struct {
	Op   Op
	Addr uint16
	Data uint32 // write data; ignored for reads
}

// Target is the resource owned by the target context. Implementations
// are only ever called from the bridge's serve loop, one operation at
// a time.
type Target interface {
	ReadReg(addr uint16) (uint32, error)
	WriteReg(addr uint16, v uint32) error
}
