// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb provides an in-memory SQL driver for tests: queries
// return rows staged by the test, statements that modify data record
// the arguments they were executed with.
package fakedb // import "github.com/go-daq/scope/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

var store struct {
	mu    sync.Mutex
	rows  Rows
	execs [][]driver.Value
}

// Run stages rows as the result of any query issued while f runs, and
// serializes access to the fake store across tests.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.rows = rows
	store.execs = nil

	return f(ctx)
}

// Execs returns the argument lists of the statements executed since
// Run started.
func Execs() [][]driver.Value {
	return store.execs
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{}, nil
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	panic("not implemented")
}

type Stmt struct{}

func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns -1: the sql package skips the argument-count check.
func (stmt *Stmt) NumInput() int {
	return -1
}

func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	vals := make([]driver.Value, len(args))
	copy(vals, args)
	store.execs = append(store.execs, vals)
	return driver.RowsAffected(1), nil
}

func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return &store.rows, nil
}

// Rows is the staged result set handed back for every query.
type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string {
	return rows.Names
}

func (rows *Rows) Close() error {
	return nil
}

func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
