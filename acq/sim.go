// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"context"
	"time"
)

// SimSource is a deterministic synthetic sample source: a periodic pulse
// train on all channels, with the pulse on channel B (the second phase
// tap) delayed by a fixed number of ticks. It stands in for the
// front-end hardware in tools and tests.
type SimSource struct {
	First  uint64        // tick of the first pulse
	Period uint64        // ticks between pulse leading edges
	Width  uint64        // pulse width, in ticks
	Delta  uint64        // extra delay of the channel-B pulse
	ChanB  uint8         // channel carrying the delayed pulse
	Delay  time.Duration // optional per-tick pacing; 0 runs free

	tick uint64
}

// NewSimSource returns a pulse-train source with its first pulse at
// tick first, repeating every period ticks.
func NewSimSource(first, period uint64) *SimSource {
	return &SimSource{
		First:  first,
		Period: period,
		Width:  4,
		Delta:  3,
		ChanB:  1,
	}
}

const (
	simLow  = 0x1000
	simHigh = 0xc000
)

func (src *SimSource) high(tick, first uint64) bool {
	if tick < first {
		return false
	}
	return (tick-first)%src.Period < src.Width
}

// Next returns the row for the current tick and advances the source.
func (src *SimSource) Next(ctx context.Context) (Row, error) {
	if src.Delay > 0 {
		select {
		case <-time.After(src.Delay):
		case <-ctx.Done():
			return Row{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	tick := src.tick
	src.tick++

	var row Row
	for ch := range row {
		first := src.First
		if uint8(ch) == src.ChanB {
			first += src.Delta
		}
		if src.high(tick, first) {
			row[ch] = simHigh + uint16(ch)
		} else {
			row[ch] = simLow + uint16(ch)
		}
	}
	return row, nil
}
