// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command scope-srv serves the 8-byte frame control protocol for one
// acquisition engine and its register bridge.
package main // import "github.com/go-daq/scope/cmd/scope-srv"

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/go-daq/scope/acq"
	"github.com/go-daq/scope/ctl"
	"github.com/go-daq/scope/rundb"
	"github.com/go-daq/scope/xbus"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		addr   = flag.String("addr", ":8877", "[ip]:port to listen on")
		level  = flag.Uint("level", 0x8000, "trigger level")
		ratio  = flag.Int("ds-ratio", 1, "downsampling ratio")
		mode   = flag.String("ds-mode", "decimate", "downsampling mode (decimate|average|min|max)")
		chanA  = flag.Uint("phase-a", 0, "channel feeding phase stream A")
		chanB  = flag.Uint("phase-b", 1, "channel feeding phase stream B")
		first  = flag.Uint64("sim-first", 1000, "tick of the first simulated pulse")
		period = flag.Uint64("sim-period", 500, "tick period of the simulated pulses")
		delay  = flag.Duration("sim-delay", 100*time.Microsecond, "pacing of the simulated sample clock")
		dbname = flag.String("db", "", "run bookkeeping database (disabled when empty)")
	)

	flag.Parse()

	log.SetPrefix("scope-srv: ")
	log.SetFlags(0)

	dsm, err := acq.ParseMode(*mode)
	if err != nil {
		log.Fatalf("invalid downsampling mode: %+v", err)
	}

	err = run(*addr, uint16(*level), *ratio, dsm, uint8(*chanA), uint8(*chanB), *first, *period, *delay, *dbname)
	if err != nil {
		log.Fatalf("could not run scope-srv: %+v", err)
	}
}

func run(addr string, level uint16, ratio int, mode acq.Mode, chanA, chanB uint8, first, period uint64, delay time.Duration, dbname string) error {
	src := acq.NewSimSource(first, period)
	src.Delay = delay

	eng, err := acq.NewEngine(src,
		acq.WithTriggerLevel(level),
		acq.WithDownsample(ratio, mode),
		acq.WithPhaseChans(chanA, chanB),
	)
	if err != nil {
		return err
	}

	err = eng.Start()
	if err != nil {
		return err
	}
	defer func() {
		err := eng.Stop()
		if err != nil {
			log.Printf("could not stop engine: %+v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	br := xbus.NewBridge()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return br.Serve(ctx, xbus.NewRegFile())
	})
	grp.Go(func() error {
		log.Printf("serving on %q...", addr)
		return ctl.Serve(ctx, addr, eng, br)
	})
	if dbname != "" {
		grp.Go(func() error {
			return record(ctx, dbname, eng)
		})
	}

	err = grp.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// record books completed captures into the run database: each
// transition into the done state becomes one run record.
func record(ctx context.Context, dbname string, eng *acq.Engine) error {
	db, err := rundb.Open(dbname)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.LastRun(ctx)
	if err != nil {
		return err
	}

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	var (
		last  = eng.Status().State
		start time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		st := eng.Status()
		if st.State == last {
			continue
		}
		switch st.State {
		case acq.StArmed, acq.StWaiting:
			if last == acq.StIdle || last == acq.StDone {
				start = time.Now()
			}
		case acq.StDone:
			run++
			err = db.InsertRun(ctx, rundb.Run{
				Run:       run,
				TrigType:  uint8(st.Config.Type),
				Chan:      st.Config.Chan,
				Length:    st.Config.Length,
				TrigIndex: st.TrigIndex,
				Rows:      st.Rows,
				Overflow:  st.Overflow,
				Start:     start,
				Stop:      time.Now(),
			})
			if err != nil {
				log.Printf("could not record run %d: %+v", run, err)
			}
		}
		last = st.State
	}
}
