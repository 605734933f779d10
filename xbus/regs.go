// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xbus

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrAddr is returned for an access outside the register map.
var ErrAddr = errors.New("xbus: bad register address")

// Register map of the memory-test engine, a 16-bit address space of
// 32-bit registers. 64-bit quantities span two registers, low word
// first.
const (
	RegFailedBits uint16 = 0x0000 // failed-bit readout
	RegTestStatus uint16 = 0x0001 // test status flags
	RegTestCtrl   uint16 = 0x0002 // test control flags
	RegReset      uint16 = 0x0003 // reset controls
	RegPatternLo  uint16 = 0x0004 // test pattern, low 32 bits
	RegPatternHi  uint16 = 0x0005 // test pattern, high 32 bits
	RegLFSREn     uint16 = 0x0006 // LFSR pattern generator enable
	RegMode       uint16 = 0x0007 // width and test-mode selection
	RegBurstLen   uint16 = 0x0008 // burst length, in beats
	RegTestSize   uint16 = 0x0009 // test size, in bursts
	RegCfgDone    uint16 = 0x000a // configuration/done flags
	RegWrCyclesLo uint16 = 0x000b // write-phase cycle counter, low 32 bits
	RegWrCyclesHi uint16 = 0x000c // write-phase cycle counter, high 32 bits
	RegRdCyclesLo uint16 = 0x000d // read-phase cycle counter, low 32 bits
	RegRdCyclesHi uint16 = 0x000e // read-phase cycle counter, high 32 bits
)

// RegTestStatus bits.
const (
	StatusDone uint32 = 1 << 0
	StatusPass uint32 = 1 << 1
)

// RegTestCtrl bits.
const (
	CtrlStart uint32 = 1 << 0
)

// RegCfgDone bits.
const (
	CfgValid uint32 = 1 << 0
)

var regNames = map[uint16]string{
	RegFailedBits: "failed-bits",
	RegTestStatus: "test-status",
	RegTestCtrl:   "test-ctrl",
	RegReset:      "reset",
	RegPatternLo:  "pattern-lo",
	RegPatternHi:  "pattern-hi",
	RegLFSREn:     "lfsr-en",
	RegMode:       "mode",
	RegBurstLen:   "burst-len",
	RegTestSize:   "test-size",
	RegCfgDone:    "cfg-done",
	RegWrCyclesLo: "wr-cycles-lo",
	RegWrCyclesHi: "wr-cycles-hi",
	RegRdCyclesLo: "rd-cycles-lo",
	RegRdCyclesHi: "rd-cycles-hi",
}

// RegName returns the symbolic name of a register address, or the
// empty string for addresses outside the map.
func RegName(addr uint16) string { return regNames[addr] }

// RegFile is a latch store implementing the memory-test register map.
// Writing the start bit to the control register models a complete,
// error-free test pass: the cycle counters are derived from the
// configured burst length and test size and the done and pass flags
// are set. It is the default Target wired to a Bridge when no external
// test engine is attached.
//
// RegFile is not safe for concurrent use: the bridge's serve loop is
// its only caller.
type RegFile struct {
	regs map[uint16]uint32
}

// NewRegFile returns a register file with the whole map reset.
func NewRegFile() *RegFile {
	rf := &RegFile{regs: make(map[uint16]uint32, len(regNames))}
	rf.reset()
	return rf
}

func (rf *RegFile) reset() {
	for addr := range regNames {
		rf.regs[addr] = 0
	}
}

// ReadReg implements the Target interface.
func (rf *RegFile) ReadReg(addr uint16) (uint32, error) {
	v, ok := rf.regs[addr]
	if !ok {
		return 0, fmt.Errorf("%w: 0x%04x", ErrAddr, addr)
	}
	return v, nil
}

// WriteReg implements the Target interface.
func (rf *RegFile) WriteReg(addr uint16, v uint32) error {
	if _, ok := rf.regs[addr]; !ok {
		return fmt.Errorf("%w: 0x%04x", ErrAddr, addr)
	}
	switch addr {
	case RegReset:
		if v != 0 {
			rf.reset()
			return nil
		}
	case RegTestCtrl:
		rf.regs[addr] = v
		if v&CtrlStart != 0 {
			rf.runTest()
		}
		return nil
	case RegFailedBits, RegTestStatus,
		RegWrCyclesLo, RegWrCyclesHi,
		RegRdCyclesLo, RegRdCyclesHi:
		// read-only latches. writes are accepted and dropped, the way
		// the hardware decodes them.
		return nil
	}
	rf.regs[addr] = v
	return nil
}

// runTest models one error-free test pass over the configured burst
// length and test size. Reads cost one extra cycle per burst for the
// turn-around.
func (rf *RegFile) runTest() {
	burst := uint64(rf.regs[RegBurstLen])
	size := uint64(rf.regs[RegTestSize])
	wr := burst * size
	rd := (burst + 1) * size

	rf.regs[RegWrCyclesLo] = uint32(wr)
	rf.regs[RegWrCyclesHi] = uint32(wr >> 32)
	rf.regs[RegRdCyclesLo] = uint32(rd)
	rf.regs[RegRdCyclesHi] = uint32(rd >> 32)
	rf.regs[RegFailedBits] = 0
	rf.regs[RegTestStatus] = StatusDone | StatusPass
	rf.regs[RegCfgDone] |= CfgValid
}

// Dump writes the whole register map to w, one register per line.
func (rf *RegFile) Dump(w io.Writer) {
	addrs := make([]uint16, 0, len(rf.regs))
	for addr := range rf.regs {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, addr := range addrs {
		fmt.Fprintf(w, "0x%04x %-14s 0x%08x\n", addr, regNames[addr], rf.regs[addr])
	}
}
