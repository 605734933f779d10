// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"fmt"
)

// Mode selects how a downsampling window is reduced to one row.
type Mode uint8

const (
	ModeDecimate Mode = iota // keep the first row of each window
	ModeAverage              // per-channel arithmetic mean, rounded half-up
	ModeMin                  // per-channel minimum
	ModeMax                  // per-channel maximum
)

func (m Mode) String() string {
	switch m {
	case ModeDecimate:
		return "decimate"
	case ModeAverage:
		return "average"
	case ModeMin:
		return "min"
	case ModeMax:
		return "max"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode returns the Mode named by s.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "decimate":
		return ModeDecimate, nil
	case "average":
		return ModeAverage, nil
	case "min":
		return ModeMin, nil
	case "max":
		return ModeMax, nil
	}
	return 0, fmt.Errorf("acq: unknown downsampling mode %q", s)
}

// Downsampler reduces a raw sample stream by a configurable ratio.
// It accumulates ratio rows and emits exactly one reduced row per window.
// Reconfiguration is staged and only takes effect at a window boundary,
// so a window never mixes rows reduced under different settings.
//
// Downsampler is confined to the acquisition context: its methods must
// all be called from the same goroutine.
type Downsampler struct {
	ratio int
	mode  Mode

	n   int    // rows accumulated in the current window
	acc [NumChans]uint32
	cur Row

	pending *dsConfig
}

type dsConfig struct {
	ratio int
	mode  Mode
}

// NewDownsampler returns a Downsampler reducing ratio raw rows to one,
// according to mode.
func NewDownsampler(ratio int, mode Mode) (*Downsampler, error) {
	if ratio < 1 {
		return nil, fmt.Errorf("acq: invalid downsampling ratio %d", ratio)
	}
	if mode > ModeMax {
		return nil, fmt.Errorf("acq: invalid downsampling mode %v", mode)
	}
	return &Downsampler{ratio: ratio, mode: mode}, nil
}

// Ratio returns the currently applied downsampling ratio.
func (ds *Downsampler) Ratio() int { return ds.ratio }

// Mode returns the currently applied downsampling mode.
func (ds *Downsampler) Mode() Mode { return ds.mode }

// SetConfig stages a new ratio and mode.
// The new configuration is applied at the next window boundary.
func (ds *Downsampler) SetConfig(ratio int, mode Mode) error {
	if ratio < 1 {
		return fmt.Errorf("acq: invalid downsampling ratio %d", ratio)
	}
	if mode > ModeMax {
		return fmt.Errorf("acq: invalid downsampling mode %v", mode)
	}
	ds.pending = &dsConfig{ratio: ratio, mode: mode}
	return nil
}

// Process feeds one raw row into the current window.
// It returns the reduced row and true when the window completes.
func (ds *Downsampler) Process(row Row) (Row, bool) {
	if ds.n == 0 {
		if ds.pending != nil {
			ds.ratio = ds.pending.ratio
			ds.mode = ds.pending.mode
			ds.pending = nil
		}
		ds.acc = [NumChans]uint32{}
		ds.cur = row
	}

	switch ds.mode {
	case ModeDecimate:
		// first row of the window already latched.
	case ModeAverage:
		for i, v := range row {
			ds.acc[i] += uint32(v)
		}
	case ModeMin:
		if ds.n > 0 {
			for i, v := range row {
				if v < ds.cur[i] {
					ds.cur[i] = v
				}
			}
		}
	case ModeMax:
		if ds.n > 0 {
			for i, v := range row {
				if v > ds.cur[i] {
					ds.cur[i] = v
				}
			}
		}
	}

	ds.n++
	if ds.n < ds.ratio {
		return Row{}, false
	}
	ds.n = 0

	out := ds.cur
	if ds.mode == ModeAverage {
		half := uint32(ds.ratio) / 2
		for i := range out {
			out[i] = uint16((ds.acc[i] + half) / uint32(ds.ratio))
		}
	}
	return out, true
}
