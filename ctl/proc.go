// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctl implements the command processor and its frame protocol:
// fixed 8-byte command frames arriving over a reliable byte stream,
// dispatched strictly in arrival order, each answered before the next
// is read.
package ctl // import "github.com/go-daq/scope/ctl"

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log"
	"os"

	"github.com/go-daq/scope/acq"
	"github.com/go-daq/scope/xbus"
	"golang.org/x/xerrors"
)

// Processor reads command frames from a byte stream and drives the
// acquisition engine and the register bridge. It runs on the command
// context: register transactions and buffer reads suspend it until
// they resolve.
type Processor struct {
	msg *log.Logger
	r   io.Reader
	w   io.Writer
	eng *acq.Engine
	br  *xbus.Bridge

	buf []byte
	err error
}

// NewProcessor returns a processor serving frames from rw against the
// given engine and bridge.
func NewProcessor(rw io.ReadWriter, eng *acq.Engine, br *xbus.Bridge) *Processor {
	return &Processor{
		msg: log.New(os.Stdout, "ctl: ", 0),
		r:   rw,
		w:   rw,
		eng: eng,
		br:  br,
		buf: make([]byte, frameLen),
	}
}

// Run serves frames until the stream ends or the context is canceled.
// A clean end of stream is not an error. Protocol-level errors (bad
// lengths, busy engine, unknown opcodes) are answered on the wire and
// never terminate the session.
func (proc *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := proc.readFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return xerrors.Errorf("ctl: could not read command frame: %w", err)
		}

		err = proc.dispatch(ctx, frame)
		if err != nil {
			return xerrors.Errorf("ctl: could not serve command 0x%02x: %w", frame[0], err)
		}
	}
}

func (proc *Processor) readFrame() ([]byte, error) {
	_, err := io.ReadFull(proc.r, proc.buf)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, xerrors.Errorf("truncated frame: %w", err)
		}
		return nil, err
	}
	return proc.buf, nil
}

func (proc *Processor) dispatch(ctx context.Context, frame []byte) error {
	switch frame[0] {
	case cmdReadBuf:
		return proc.readBuf(ctx, frame)
	case cmdArm:
		return proc.arm(ctx, frame)
	case cmdQuery:
		return proc.query(frame)
	case cmdBandwidth:
		return proc.bandwidth(frame)
	case cmdRegWrite:
		return proc.regWrite(ctx, frame)
	case cmdRegRead:
		return proc.regRead(ctx, frame)
	case cmdVersion:
		proc.writeU32(buildID)
		return proc.err
	case cmdStatus:
		proc.writeU32(proc.debugBits())
		return proc.err
	case cmdEcho:
		return proc.echo(frame)
	}

	proc.msg.Printf("unknown command 0x%02x", frame[0])
	proc.writeU32(notImpl)
	return proc.err
}

// readBuf streams the requested number of rows from the sample ring,
// suspending until each becomes available. Back-pressure, not
// truncation: a canceled context is the only early exit.
func (proc *Processor) readBuf(ctx context.Context, frame []byte) error {
	n := binary.BigEndian.Uint32(frame[4:8])
	enc := acq.NewRowEncoder(proc.w)
	err := proc.eng.Ring().ReadRows(ctx, int(n), func(row acq.Row) error {
		return enc.Encode(row)
	})
	if err != nil {
		return xerrors.Errorf("could not stream %d rows: %w", n, err)
	}
	return nil
}

func (proc *Processor) arm(ctx context.Context, frame []byte) error {
	cfg := acq.Config{
		Type:   acq.TriggerType(frame[1]),
		Chan:   frame[2],
		Length: binary.BigEndian.Uint16(frame[4:6]),
	}

	status := statusOK
	err := proc.eng.Arm(ctx, cfg)
	switch {
	case err == nil:
	case errors.Is(err, acq.ErrBusy):
		status = statusBusy
	case errors.Is(err, acq.ErrLength):
		status = statusLength
	default:
		proc.msg.Printf("could not arm trigger: %+v", err)
		status = statusState
	}

	proc.writeState(status)
	return proc.err
}

func (proc *Processor) query(frame []byte) error {
	st := proc.eng.Status()
	switch frame[1] {
	case qryBuildID:
		proc.writeU32(buildID)
	case qryAcqState:
		proc.writeState(statusOK)
	case qryTrigIdx:
		proc.writeU32(st.TrigIndex)
	case qryRows:
		proc.writeU32(uint32(st.Rows))
	case qryPhase:
		proc.writeU32(phaseBits(proc.eng.Phase()))
	case qryOverflow:
		proc.writeU32(st.Overflows)
	default:
		proc.writeU32(notImpl)
	}
	return proc.err
}

// bandwidth writes a deterministic counting pattern of the requested
// length, generated locally so throughput can be measured with no
// other component involved.
func (proc *Processor) bandwidth(frame []byte) error {
	n := binary.BigEndian.Uint32(frame[1:5])
	pat := make([]byte, 4096)
	var i uint32
	for n > 0 {
		k := uint32(len(pat))
		if n < k {
			k = n
		}
		for j := uint32(0); j < k; j++ {
			pat[j] = byte(i + j)
		}
		proc.write(pat[:k])
		if proc.err != nil {
			return proc.err
		}
		i += k
		n -= k
	}
	return nil
}

func (proc *Processor) regWrite(ctx context.Context, frame []byte) error {
	tx := xbus.Tx{
		Op:   xbus.OpWrite,
		Addr: binary.BigEndian.Uint16(frame[1:3]),
		Data: binary.BigEndian.Uint32(frame[3:7]),
	}
	_, err := proc.br.Do(ctx, tx)
	proc.writeU32(regStatus(err))
	if err != nil {
		proc.msg.Printf("could not write reg 0x%04x: %+v", tx.Addr, err)
	}
	return proc.err
}

func (proc *Processor) regRead(ctx context.Context, frame []byte) error {
	tx := xbus.Tx{
		Op:   xbus.OpRead,
		Addr: binary.BigEndian.Uint16(frame[1:3]),
	}
	v, err := proc.br.Do(ctx, tx)
	if err != nil {
		proc.msg.Printf("could not read reg 0x%04x: %+v", tx.Addr, err)
		proc.writeU32(notImpl)
		return proc.err
	}
	proc.writeU32(v)
	return proc.err
}

// echo reproduces exactly the declared number of bytes: up to 5 inline
// in the frame, the remainder consumed from the same stream.
func (proc *Processor) echo(frame []byte) error {
	n := int(binary.BigEndian.Uint16(frame[1:3]))

	inline := n
	if inline > frameLen-3 {
		inline = frameLen - 3
	}
	proc.write(frame[3 : 3+inline])
	if proc.err != nil {
		return proc.err
	}

	if rest := n - inline; rest > 0 {
		extra := make([]byte, rest)
		_, err := io.ReadFull(proc.r, extra)
		if err != nil {
			return xerrors.Errorf("could not read %d echo bytes: %w", rest, err)
		}
		proc.write(extra)
	}
	return proc.err
}

func (proc *Processor) debugBits() uint32 {
	st := proc.eng.Status()
	v := uint32(st.State) & 0x7
	if st.Overflow {
		v |= 1 << 3
	}
	if proc.eng.Phase().Valid {
		v |= 1 << 4
	}
	v |= uint32(st.Rows) << 16
	return v
}

func phaseBits(m acq.Measurement) uint32 {
	v := uint32(m.Offset) & 0x7fffffff
	if m.Valid {
		v |= 1 << 31
	}
	return v
}

func regStatus(err error) uint32 {
	switch {
	case err == nil:
		return uint32(statusOK)
	case errors.Is(err, xbus.ErrBusy):
		return uint32(statusBusy)
	case errors.Is(err, xbus.ErrAddr):
		return uint32(statusAddr)
	}
	return notImpl
}

// writeState emits the 4-byte state reply shared by arm and the
// acquisition-state query.
func (proc *Processor) writeState(status uint8) {
	st := proc.eng.Status()
	var rep [4]byte
	rep[0] = uint8(st.State)
	rep[1] = status
	binary.BigEndian.PutUint16(rep[2:4], uint16(st.TrigIndex))
	proc.write(rep[:])
}

func (proc *Processor) write(p []byte) {
	if proc.err != nil {
		return
	}
	_, proc.err = proc.w.Write(p)
}

func (proc *Processor) writeU32(v uint32) {
	if proc.err != nil {
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, proc.err = proc.w.Write(buf[:])
}
