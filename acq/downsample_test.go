// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acq

import (
	"testing"
)

func rowOf(v uint16) Row {
	var row Row
	for i := range row {
		row[i] = v
	}
	return row
}

func TestDownsampler(t *testing.T) {
	for _, tc := range []struct {
		name  string
		ratio int
		mode  Mode
		in    []uint16
		want  []uint16
	}{
		{
			name:  "unity",
			ratio: 1,
			mode:  ModeDecimate,
			in:    []uint16{1, 2, 3},
			want:  []uint16{1, 2, 3},
		},
		{
			name:  "decimate-4",
			ratio: 4,
			mode:  ModeDecimate,
			in:    []uint16{10, 11, 12, 13, 20, 21, 22, 23},
			want:  []uint16{10, 20},
		},
		{
			name:  "average-4",
			ratio: 4,
			mode:  ModeAverage,
			in:    []uint16{10, 11, 12, 13, 20, 22, 24, 26},
			want:  []uint16{12, 23}, // 46/4 rounds half-up to 12
		},
		{
			name:  "average-3-rounding",
			ratio: 3,
			mode:  ModeAverage,
			in:    []uint16{1, 1, 2},
			want:  []uint16{1}, // 4/3 = 1.33
		},
		{
			name:  "min-3",
			ratio: 3,
			mode:  ModeMin,
			in:    []uint16{5, 3, 9, 7, 8, 6},
			want:  []uint16{3, 6},
		},
		{
			name:  "max-3",
			ratio: 3,
			mode:  ModeMax,
			in:    []uint16{5, 3, 9, 7, 8, 6},
			want:  []uint16{9, 8},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ds, err := NewDownsampler(tc.ratio, tc.mode)
			if err != nil {
				t.Fatalf("could not create downsampler: %+v", err)
			}

			var got []uint16
			for _, v := range tc.in {
				out, ok := ds.Process(rowOf(v))
				if ok {
					got = append(got, out[0])
					// all channels reduce identically on uniform rows.
					if out[0] != out[NumChans-1] {
						t.Fatalf("non-uniform reduction: ch0=%d ch%d=%d",
							out[0], NumChans-1, out[NumChans-1],
						)
					}
				}
			}

			if len(got) != len(tc.want) {
				t.Fatalf("invalid number of reduced rows: got=%d, want=%d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("reduced[%d]: got=%d, want=%d", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestDownsamplerPeriodicity(t *testing.T) {
	// k*N raw rows must yield exactly k reduced rows.
	const (
		ratio = 7
		k     = 13
	)
	ds, err := NewDownsampler(ratio, ModeAverage)
	if err != nil {
		t.Fatalf("could not create downsampler: %+v", err)
	}
	n := 0
	for i := 0; i < k*ratio; i++ {
		_, ok := ds.Process(rowOf(uint16(i)))
		if ok {
			n++
		}
	}
	if got, want := n, k; got != want {
		t.Fatalf("invalid number of reduced rows: got=%d, want=%d", got, want)
	}
}

func TestDownsamplerReconfig(t *testing.T) {
	ds, err := NewDownsampler(2, ModeMin)
	if err != nil {
		t.Fatalf("could not create downsampler: %+v", err)
	}

	// stage a reconfiguration mid-window: the current window must
	// still be reduced under the old settings.
	if _, ok := ds.Process(rowOf(4)); ok {
		t.Fatalf("unexpected reduced row mid-window")
	}
	err = ds.SetConfig(3, ModeMax)
	if err != nil {
		t.Fatalf("could not stage config: %+v", err)
	}
	out, ok := ds.Process(rowOf(2))
	if !ok {
		t.Fatalf("expected a reduced row at window boundary")
	}
	if got, want := out[0], uint16(2); got != want {
		t.Fatalf("old-window reduction: got=%d, want=%d", got, want)
	}
	if got, want := ds.Ratio(), 2; got != want {
		t.Fatalf("config applied mid-window: ratio got=%d, want=%d", got, want)
	}

	// next window runs under the new settings.
	for i, v := range []uint16{1, 9} {
		if _, ok := ds.Process(rowOf(v)); ok {
			t.Fatalf("unexpected reduced row at input %d", i)
		}
	}
	out, ok = ds.Process(rowOf(5))
	if !ok {
		t.Fatalf("expected a reduced row at new window boundary")
	}
	if got, want := out[0], uint16(9); got != want {
		t.Fatalf("new-window reduction: got=%d, want=%d", got, want)
	}
	if got, want := ds.Mode(), ModeMax; got != want {
		t.Fatalf("invalid mode: got=%v, want=%v", got, want)
	}

	_, err = NewDownsampler(0, ModeMin)
	if err == nil {
		t.Fatalf("expected an error for ratio=0")
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		name string
		want Mode
	}{
		{"decimate", ModeDecimate},
		{"average", ModeAverage},
		{"min", ModeMin},
		{"max", ModeMax},
	} {
		got, err := ParseMode(tc.name)
		if err != nil {
			t.Fatalf("could not parse %q: %+v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("mode %q: got=%v, want=%v", tc.name, got, tc.want)
		}
		if got.String() != tc.name {
			t.Fatalf("mode %q: String()=%q", tc.name, got.String())
		}
	}

	_, err := ParseMode("median")
	if err == nil {
		t.Fatalf("expected an error for an unknown mode")
	}
}
