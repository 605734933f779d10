// Copyright 2025 The go-daq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb records capture runs in the bookkeeping database.
package rundb // import "github.com/go-daq/scope/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// Run is one bookkeeping record: a capture and its outcome.
type Run struct {
	Run       uint32    // run number
	TrigType  uint8     // trigger condition the capture was armed with
	Chan      uint8     // trigger channel
	Length    uint16    // requested capture length, in rows
	TrigIndex uint32    // reduced-sample index of the triggering row
	Rows      uint16    // rows actually captured
	Overflow  bool      // capture halted early on ring overflow
	Start     time.Time // arm time
	Stop      time.Time // capture-done time
}

// DB exposes convenience methods over the run bookkeeping database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the run database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("rundb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// LastRun returns the highest recorded run number, 0 when the table is
// empty.
func (db *DB) LastRun(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT run FROM runs ORDER BY run DESC LIMIT 1",
	)
	if err != nil {
		return run, fmt.Errorf("rundb: could not query last run: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&run)
		if err != nil {
			return run, fmt.Errorf("rundb: could not get last run value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("rundb: could not scan db for last run: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("rundb: context error while retrieving last run: %w", err)
	}

	return run, nil
}

// InsertRun records one completed capture.
func (db *DB) InsertRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		`
INSERT INTO runs (run, trig_type, channel, length, trig_index, nrows, overflow, tstart, tstop)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		run.Run, run.TrigType, run.Chan, run.Length,
		run.TrigIndex, run.Rows, run.Overflow,
		run.Start, run.Stop,
	)
	if err != nil {
		return fmt.Errorf("rundb: could not insert run %d: %w", run.Run, err)
	}

	return nil
}

// Runs returns the n most recent run records, most recent first.
func (db *DB) Runs(ctx context.Context, n int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT run, trig_type, channel, length, trig_index, nrows, overflow, tstart, tstop
FROM runs ORDER BY run DESC LIMIT ?
`,
		n,
	)
	if err != nil {
		return runs, fmt.Errorf("rundb: could not run runs query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var run Run
		err = rows.Scan(
			&run.Run, &run.TrigType, &run.Chan, &run.Length,
			&run.TrigIndex, &run.Rows, &run.Overflow,
			&run.Start, &run.Stop,
		)
		if err != nil {
			return runs, fmt.Errorf("rundb: could not scan row %d for runs: %w", i, err)
		}
		i++

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("rundb: could not scan db for runs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("rundb: context error while retrieving runs: %w", err)
	}

	return runs, nil
}
