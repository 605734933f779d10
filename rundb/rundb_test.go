// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundb

import (
	"context"
	"database/sql/driver"
	"reflect"
	"testing"
	"time"

	"github.com/go-daq/scope/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()
}

func TestLastRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"run"},
		Values: [][]driver.Value{
			{uint32(42)},
		},
	}, func(ctx context.Context) error {
		run, err := db.LastRun(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last run: %+v", err)
		}

		if got, want := run, uint32(42); got != want {
			t.Fatalf("invalid last run: got=%d, want=%d", got, want)
		}
		return nil
	})

	// empty table: run number 0.
	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"run"},
	}, func(ctx context.Context) error {
		run, err := db.LastRun(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last run: %+v", err)
		}

		if got, want := run, uint32(0); got != want {
			t.Fatalf("invalid last run: got=%d, want=%d", got, want)
		}
		return nil
	})
}

func TestInsertRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	var (
		start = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
		stop  = start.Add(2 * time.Second)
	)

	_ = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		err := db.InsertRun(ctx, Run{
			Run:       43,
			TrigType:  1,
			Chan:      2,
			Length:    128,
			TrigIndex: 1037,
			Rows:      128,
			Overflow:  false,
			Start:     start,
			Stop:      stop,
		})
		if err != nil {
			t.Fatalf("could not insert run: %+v", err)
		}

		execs := fakedb.Execs()
		if got, want := len(execs), 1; got != want {
			t.Fatalf("invalid number of execs: got=%d, want=%d", got, want)
		}
		want := []driver.Value{
			int64(43), int64(1), int64(2), int64(128),
			int64(1037), int64(128), false,
			start, stop,
		}
		if got := execs[0]; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid insert args:\ngot= %#v\nwant=%#v", got, want)
		}
		return nil
	})
}

func TestRuns(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	var (
		start = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
		stop  = start.Add(2 * time.Second)
	)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{
			"run", "trig_type", "channel", "length",
			"trig_index", "nrows", "overflow", "tstart", "tstop",
		},
		Values: [][]driver.Value{
			{uint32(43), uint8(1), uint8(2), uint16(128), uint32(1037), uint16(128), false, start, stop},
			{uint32(42), uint8(0), uint8(0), uint16(64), uint32(12), uint16(33), true, start, stop},
		},
	}, func(ctx context.Context) error {
		runs, err := db.Runs(ctx, 2)
		if err != nil {
			t.Fatalf("could not retrieve runs: %+v", err)
		}

		want := []Run{
			{
				Run: 43, TrigType: 1, Chan: 2, Length: 128,
				TrigIndex: 1037, Rows: 128, Overflow: false,
				Start: start, Stop: stop,
			},
			{
				Run: 42, TrigType: 0, Chan: 0, Length: 64,
				TrigIndex: 12, Rows: 33, Overflow: true,
				Start: start, Stop: stop,
			},
		}
		if !reflect.DeepEqual(runs, want) {
			t.Fatalf("invalid runs:\ngot= %#v\nwant=%#v", runs, want)
		}
		return nil
	})
}
