// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command scope-sh is an interactive shell speaking the 8-byte frame
// protocol to a scope-srv instance.
package main // import "github.com/go-daq/scope/cmd/scope-sh"

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-daq/scope/acq"
	"github.com/peterh/liner"
)

func main() {
	var (
		addr = flag.String("addr", "localhost:8877", "scope-srv [ip]:port to dial")
	)

	flag.Parse()

	log.SetPrefix("scope-sh: ")
	log.SetFlags(0)

	err := run(*addr)
	if err != nil {
		log.Fatalf("could not run scope-sh: %+v", err)
	}
}

func run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not dial scope-srv %q: %w", addr, err)
	}
	defer conn.Close()

	cli := &client{conn: conn, w: os.Stdout}

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	for {
		line, err := term.Prompt("scope> ")
		switch {
		case err == nil:
			// ok.
		case errors.Is(err, io.EOF), errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintf(cli.w, "\n")
			return nil
		default:
			return fmt.Errorf("could not read prompt: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		if line == "quit" || line == "exit" {
			return nil
		}

		err = cli.exec(line)
		if err != nil {
			log.Printf("%+v", err)
		}
	}
}

type client struct {
	conn net.Conn
	w    io.Writer
}

func (cli *client) exec(line string) error {
	args := strings.Fields(line)
	switch args[0] {
	case "version":
		return cli.version()
	case "status":
		return cli.status()
	case "arm":
		return cli.arm(args[1:])
	case "read":
		return cli.read(args[1:])
	case "regr":
		return cli.regr(args[1:])
	case "regw":
		return cli.regw(args[1:])
	case "echo":
		return cli.echo(strings.TrimSpace(strings.TrimPrefix(line, "echo")))
	case "help":
		fmt.Fprintf(cli.w, `commands:
  version                     print the build identifier
  status                      print the acquisition status
  arm <type> <chan> <len>     arm a capture (type: threshold|edge|level)
  read <n> <file>             read n rows into file
  regr <addr>                 read a register
  regw <addr> <val>           write a register
  echo <text>                 round-trip text through the server
  quit                        leave the shell
`)
		return nil
	}
	return fmt.Errorf("unknown command %q (try "+`"help")`, args[0])
}

func (cli *client) send(op uint8, payload ...byte) error {
	frame := make([]byte, 8)
	frame[0] = op
	copy(frame[1:], payload)
	_, err := cli.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("could not send frame 0x%02x: %w", op, err)
	}
	return nil
}

func (cli *client) reply4() ([4]byte, error) {
	var rep [4]byte
	_, err := io.ReadFull(cli.conn, rep[:])
	if err != nil {
		return rep, fmt.Errorf("could not read reply: %w", err)
	}
	return rep, nil
}

func (cli *client) version() error {
	err := cli.send(0x23)
	if err != nil {
		return err
	}
	rep, err := cli.reply4()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.w, "build id: 0x%08x\n", binary.BigEndian.Uint32(rep[:]))
	return nil
}

func (cli *client) status() error {
	err := cli.send(0x02, 1)
	if err != nil {
		return err
	}
	rep, err := cli.reply4()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.w, "state=%v status=%d trig=%d\n",
		acq.State(rep[0]), rep[1], binary.BigEndian.Uint16(rep[2:4]),
	)
	return nil
}

func (cli *client) arm(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: arm <type> <chan> <len>")
	}

	var typ acq.TriggerType
	switch args[0] {
	case "threshold":
		typ = acq.TrigThreshold
	case "edge":
		typ = acq.TrigEdge
	case "level":
		typ = acq.TrigLevel
	default:
		return fmt.Errorf("unknown trigger type %q", args[0])
	}

	ch, err := strconv.ParseUint(args[1], 10, 8)
	if err != nil {
		return fmt.Errorf("could not parse channel %q: %w", args[1], err)
	}
	n, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("could not parse length %q: %w", args[2], err)
	}

	err = cli.send(0x01, uint8(typ), uint8(ch), 0, byte(n>>8), byte(n))
	if err != nil {
		return err
	}
	rep, err := cli.reply4()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.w, "state=%v status=%d trig=%d\n",
		acq.State(rep[0]), rep[1], binary.BigEndian.Uint16(rep[2:4]),
	)
	return nil
}

func (cli *client) read(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: read <n> <file>")
	}
	n, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("could not parse row count %q: %w", args[0], err)
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer f.Close()

	var p [7]byte
	binary.BigEndian.PutUint32(p[3:7], uint32(n))
	err = cli.send(0x00, p[:]...)
	if err != nil {
		return err
	}

	_, err = io.CopyN(f, cli.conn, int64(n)*acq.RowSize)
	if err != nil {
		return fmt.Errorf("could not read %d rows: %w", n, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}
	fmt.Fprintf(cli.w, "wrote %d rows to %s\n", n, args[1])
	return nil
}

func (cli *client) regr(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: regr <addr>")
	}
	addr, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return fmt.Errorf("could not parse address %q: %w", args[0], err)
	}

	var p [2]byte
	binary.BigEndian.PutUint16(p[:], uint16(addr))
	err = cli.send(0x22, p[:]...)
	if err != nil {
		return err
	}
	rep, err := cli.reply4()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.w, "reg[0x%04x] = 0x%08x\n", addr, binary.BigEndian.Uint32(rep[:]))
	return nil
}

func (cli *client) regw(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: regw <addr> <val>")
	}
	addr, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return fmt.Errorf("could not parse address %q: %w", args[0], err)
	}
	val, err := strconv.ParseUint(args[1], 0, 32)
	if err != nil {
		return fmt.Errorf("could not parse value %q: %w", args[1], err)
	}

	var p [6]byte
	binary.BigEndian.PutUint16(p[0:2], uint16(addr))
	binary.BigEndian.PutUint32(p[2:6], uint32(val))
	err = cli.send(0x21, p[:]...)
	if err != nil {
		return err
	}
	rep, err := cli.reply4()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.w, "status = 0x%08x\n", binary.BigEndian.Uint32(rep[:]))
	return nil
}

func (cli *client) echo(text string) error {
	data := []byte(text)
	if len(data) > 0xffff {
		return fmt.Errorf("echo payload too long (%d bytes)", len(data))
	}

	p := make([]byte, 2, 7)
	binary.BigEndian.PutUint16(p[:2], uint16(len(data)))
	inline := len(data)
	if inline > 5 {
		inline = 5
	}
	p = append(p, data[:inline]...)

	err := cli.send(0x25, p...)
	if err != nil {
		return err
	}
	if rest := data[inline:]; len(rest) > 0 {
		_, err = cli.conn.Write(rest)
		if err != nil {
			return fmt.Errorf("could not send echo payload: %w", err)
		}
	}

	rep := make([]byte, len(data))
	_, err = io.ReadFull(cli.conn, rep)
	if err != nil {
		return fmt.Errorf("could not read echo reply: %w", err)
	}
	fmt.Fprintf(cli.w, "%s\n", rep)
	return nil
}
