// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command scope-hist histograms the amplitudes of one channel of a raw
// capture file and writes the distribution out in YODA format.
package main // import "github.com/go-daq/scope/cmd/scope-hist"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-daq/scope/acq"
	"go-hep.org/x/hep/hbook"
)

func main() {
	var (
		ch    = flag.Uint("chan", 0, "channel to histogram")
		bins  = flag.Int("bins", 128, "number of bins")
		oname = flag.String("o", "scope-hist.yoda", "output YODA file")
	)

	flag.Parse()

	log.SetPrefix("scope-hist: ")
	log.SetFlags(0)

	if flag.NArg() != 1 {
		log.Fatalf("missing input capture file")
	}
	if *ch >= acq.NumChans {
		log.Fatalf("invalid channel %d", *ch)
	}

	err := run(flag.Arg(0), *oname, uint8(*ch), *bins)
	if err != nil {
		log.Fatalf("could not histogram capture: %+v", err)
	}
}

func run(fname, oname string, ch uint8, bins int) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open capture file: %w", err)
	}
	defer f.Close()

	h := hbook.NewH1D(bins, 0, 65536)
	h.Annotation()["title"] = fmt.Sprintf("channel %d amplitude", ch)

	var (
		dec = acq.NewRowDecoder(f)
		row acq.Row
		n   int
	)
loop:
	for {
		err := dec.Decode(&row)
		switch {
		case err == nil:
			h.Fill(float64(row[ch]), 1)
			n++
		case errors.Is(err, io.EOF):
			break loop
		default:
			return fmt.Errorf("could not decode row %d: %w", n, err)
		}
	}

	log.Printf("rows=%d mean=%.2f rms=%.2f", n, h.XMean(), h.XRMS())

	raw, err := h.MarshalYODA()
	if err != nil {
		return fmt.Errorf("could not marshal histogram: %w", err)
	}
	err = os.WriteFile(oname, raw, 0644)
	if err != nil {
		return fmt.Errorf("could not write %q: %w", oname, err)
	}

	return nil
}
