package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/isaac2077/XiangShan/internal/sim"
)

// sqliteRecorder persists per-step statistics. All inserts run inside a
// single transaction committed on Close, so recording does not dominate
// the run time.
type sqliteRecorder struct {
	db     *sql.DB
	tx     *sql.Tx
	insert *sql.Stmt
}

func openSQLiteRecorder(path string) (*sqliteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening stats database: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS steps (
		step       INTEGER PRIMARY KEY,
		admits     INTEGER NOT NULL,
		refusals   INTEGER NOT NULL,
		violations INTEGER NOT NULL,
		occupancy  INTEGER NOT NULL,
		full       INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating stats schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("starting stats transaction: %w", err)
	}
	insert, err := tx.Prepare(
		"INSERT INTO steps (step, admits, refusals, violations, occupancy, full) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing stats insert: %w", err)
	}

	return &sqliteRecorder{db: db, tx: tx, insert: insert}, nil
}

func (r *sqliteRecorder) RecordStep(s sim.StepStats) error {
	full := 0
	if s.Full {
		full = 1
	}
	_, err := r.insert.Exec(s.Step, s.Admits, s.Refusals, s.Violations, s.Count, full)
	return err
}

func (r *sqliteRecorder) Close() error {
	defer r.db.Close()
	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("committing stats: %w", err)
	}
	return nil
}
