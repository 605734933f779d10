// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command scope-daq exposes an acquisition engine as a TDAQ process:
// run control arms captures and the captured rows stream out on the
// /rows end-point.
package main // import "github.com/go-daq/scope/cmd/scope-daq"

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-daq/scope/acq"
	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
)

func main() {
	var (
		level = flag.Uint("level", 0x8000, "trigger level")
		typ   = flag.String("trig", "threshold", "trigger type (threshold|edge|level)")
		ch    = flag.Uint("chan", 0, "trigger channel")
		nrows = flag.Uint("len", 128, "capture length, in rows")
	)

	cmd := flags.New()

	log.SetPrefix("scope-daq: ")
	log.SetFlags(0)

	var trig acq.TriggerType
	switch *typ {
	case "threshold":
		trig = acq.TrigThreshold
	case "edge":
		trig = acq.TrigEdge
	case "level":
		trig = acq.TrigLevel
	default:
		log.Fatalf("unknown trigger type %q", *typ)
	}

	dev := device{
		level: uint16(*level),
		cfg: acq.Config{
			Type:   trig,
			Chan:   uint8(*ch),
			Length: uint16(*nrows),
		},
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/rows", dev.rows)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type device struct {
	level uint16
	cfg   acq.Config

	eng  *acq.Engine
	data chan []byte
}

func (dev *device) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (dev *device) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.reset()
}

func (dev *device) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.reset()
}

func (dev *device) reset() error {
	if dev.eng != nil {
		err := dev.eng.Stop()
		if err != nil {
			return fmt.Errorf("could not stop engine: %w", err)
		}
	}

	src := acq.NewSimSource(1000, 500)
	src.Delay = 100 * time.Microsecond

	eng, err := acq.NewEngine(src, acq.WithTriggerLevel(dev.level))
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}
	err = eng.Start()
	if err != nil {
		return fmt.Errorf("could not start engine: %w", err)
	}

	dev.eng = eng
	dev.data = make(chan []byte, 1024)
	return nil
}

func (dev *device) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	err := dev.eng.Arm(ctx.Ctx, dev.cfg)
	if err != nil {
		return fmt.Errorf("could not arm capture: %w", err)
	}
	return nil
}

func (dev *device) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	st := dev.eng.Status()
	ctx.Msg.Debugf("received /stop command... -> state=%v trig=%d rows=%d",
		st.State, st.TrigIndex, st.Rows,
	)
	return nil
}

func (dev *device) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if dev.eng == nil {
		return nil
	}
	return dev.eng.Stop()
}

func (dev *device) rows(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

// run drains the capture ring into the /rows output stream, one
// encoded row per frame.
func (dev *device) run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
		}

		err := dev.eng.Ring().ReadRows(ctx.Ctx, 1, func(row acq.Row) error {
			buf := new(bytes.Buffer)
			err := acq.NewRowEncoder(buf).Encode(row)
			if err != nil {
				return err
			}
			select {
			case dev.data <- buf.Bytes():
			default:
				// consumer is behind. drop the row rather than stall
				// the drain and overflow the ring.
			}
			return nil
		})
		if err != nil {
			if ctx.Ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("could not read captured rows: %w", err)
		}
	}
}
