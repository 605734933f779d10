// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package acq implements the acquisition pipeline of the scope board:
// sample rows, downsampling, triggering, the capture ring and the
// cross-stream phase detector.
package acq // import "github.com/go-daq/scope/acq"

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// NumChans is the number of channels packed in one sample row.
	NumChans = 100

	// RowSize is the wire size of one encoded sample row, in bytes.
	RowSize = 2 * NumChans

	// RingDepth is the capacity of the capture ring, in rows.
	RingDepth = 1024
)

// Row is one acquisition tick worth of packed channel data,
// one 16-bit value per channel.
// On the wire, a row is RowSize bytes, big-endian, channel 0 first.
type Row [NumChans]uint16

// RowEncoder writes sample rows to an output stream.
type RowEncoder struct {
	w   io.Writer
	buf [RowSize]byte
	err error
}

// NewRowEncoder returns a new RowEncoder that writes to w.
func NewRowEncoder(w io.Writer) *RowEncoder {
	return &RowEncoder{w: w}
}

// Encode writes the wire representation of row to the stream.
func (enc *RowEncoder) Encode(row Row) error {
	if enc.err != nil {
		return enc.err
	}
	for i, v := range row {
		binary.BigEndian.PutUint16(enc.buf[2*i:], v)
	}
	_, enc.err = enc.w.Write(enc.buf[:])
	if enc.err != nil {
		enc.err = fmt.Errorf("acq: could not encode row: %w", enc.err)
	}
	return enc.err
}

// RowDecoder reads sample rows from an input stream.
type RowDecoder struct {
	r   io.Reader
	buf [RowSize]byte
	err error
}

// NewRowDecoder returns a new RowDecoder that reads from r.
func NewRowDecoder(r io.Reader) *RowDecoder {
	return &RowDecoder{r: r}
}

// Decode reads one wire row into row.
func (dec *RowDecoder) Decode(row *Row) error {
	if dec.err != nil {
		return dec.err
	}
	_, dec.err = io.ReadFull(dec.r, dec.buf[:])
	if dec.err != nil {
		if dec.err != io.EOF {
			dec.err = fmt.Errorf("acq: could not decode row: %w", dec.err)
		}
		return dec.err
	}
	for i := range row {
		row[i] = binary.BigEndian.Uint16(dec.buf[2*i:])
	}
	return nil
}
