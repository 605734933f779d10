// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

// Commands are fixed 8-byte frames, byte 0 the opcode. The opcode
// space is partitioned: 0x00-0x17 acquisition/control domain (unused
// codes reserved), 0x20-0x25 utility domain. Everything else replies
// with the not-implemented sentinel and the session carries on.
//
// Frame layouts (byte offsets within the 8-byte frame):
//
//	0x00 read-buffer:  b4..b7 row count (u32)
//	0x01 arm-trigger:  b1 trigger type, b2 channel, b4..b5 length (u16)
//	0x02 query:        b1 sub-command
//	0x20 bandwidth:    b1..b4 byte count (u32)
//	0x21 reg-write:    b1..b2 address (u16), b3..b6 data (u32)
//	0x22 reg-read:     b1..b2 address (u16)
//	0x23 get-version:  -
//	0x24 get-status:   -
//	0x25 echo:         b1..b2 length (u16), b3..b7 inline data
//
// Multi-byte fields are big-endian.
const (
	cmdReadBuf   uint8 = 0x00
	cmdArm       uint8 = 0x01
	cmdQuery     uint8 = 0x02
	cmdBandwidth uint8 = 0x20
	cmdRegWrite  uint8 = 0x21
	cmdRegRead   uint8 = 0x22
	cmdVersion   uint8 = 0x23
	cmdStatus    uint8 = 0x24
	cmdEcho      uint8 = 0x25
)

const frameLen = 8

// Arm and query(state) replies are 4 bytes:
//
//	b0     acquisition state
//	b1     status code
//	b2..b3 trigger index, low 16 bits (big-endian)
const (
	statusOK     uint8 = 0
	statusBusy   uint8 = 1
	statusLength uint8 = 2
	statusState  uint8 = 3
	statusAddr   uint8 = 4
)

// notImpl is the 4-byte reply to unrecognized opcodes, unknown query
// sub-commands and register transactions that failed outright.
const notImpl uint32 = 0xffffffff

// buildID is the fixed identifier returned by get-version.
const buildID uint32 = 0x53435001

// Query sub-commands (byte 1 of a 0x02 frame). Each selects one fixed
// 4-byte diagnostic value.
const (
	qryBuildID  uint8 = 0 // build identifier
	qryAcqState uint8 = 1 // arm-style state reply
	qryTrigIdx  uint8 = 2 // trigger index (u32)
	qryRows     uint8 = 3 // rows captured (u32)
	qryPhase    uint8 = 4 // phase: bit31 valid, bits 30..0 offset (two's complement)
	qryOverflow uint8 = 5 // ring overflow count (u32)
)

// Get-status debug bitfield:
//
//	bits 2..0   acquisition state
//	bit  3      capture overflowed
//	bit  4      phase measurement valid
//	bits 31..16 rows captured
