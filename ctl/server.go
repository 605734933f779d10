// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctl

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/go-daq/scope/acq"
	"github.com/go-daq/scope/xbus"
)

// server accepts control connections and serves the frame protocol on
// each, one session at a time: responses stay ordered per the single
// command channel.
type server struct {
	ctl net.Listener
	msg *log.Logger

	eng *acq.Engine
	br  *xbus.Bridge
}

// Serve listens on addr and serves command sessions against the given
// engine and bridge until the context is canceled or the listener
// fails.
func Serve(ctx context.Context, addr string, eng *acq.Engine, br *xbus.Bridge) error {
	srv, err := newServer(addr, eng, br)
	if err != nil {
		return fmt.Errorf("could not create ctl server: %w", err)
	}
	return srv.serve(ctx)
}

func newServer(addr string, eng *acq.Engine, br *xbus.Bridge) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not create ctl server on %q: %w", addr, err)
	}

	srv := &server{
		ctl: ctl,
		msg: log.New(os.Stdout, "ctl: ", 0),
		eng: eng,
		br:  br,
	}
	return srv, nil
}

func (srv *server) serve(ctx context.Context) error {
	defer srv.close()

	go func() {
		<-ctx.Done()
		_ = srv.ctl.Close()
	}()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("could not accept connection: %w", err)
		}

		err = srv.handle(ctx, conn)
		if err != nil {
			srv.msg.Printf("could not serve session: %+v", err)
			continue
		}
	}
}

func (srv *server) handle(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	proc := NewProcessor(conn, srv.eng, srv.br)
	return proc.Run(ctx)
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}
