package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

const (
	tableSubmissions = "submissions"
	tableSamples     = "samples"
	tableInfo        = "submission_info"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS submissions (
		submission_id   TEXT PRIMARY KEY,
		uuid            TEXT NOT NULL UNIQUE,
		short_ref       TEXT NOT NULL,
		file_hash       TEXT NOT NULL UNIQUE,
		pdf_filename    TEXT NOT NULL DEFAULT '',
		scanned_at      DATETIME NOT NULL,
		created_at      DATETIME NOT NULL,
		project_id      TEXT,
		owner           TEXT,
		source_organism TEXT,
		sequencing_type TEXT,
		sample_type     TEXT,
		total_samples   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS samples (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id  TEXT NOT NULL REFERENCES submissions (submission_id) ON DELETE CASCADE,
		sample_index   INTEGER NOT NULL,
		sample_name    TEXT NOT NULL,
		volume_ul      REAL,
		qubit_conc     REAL,
		nanodrop_conc  REAL,
		a260_280_ratio REAL,
		a260_230_ratio REAL,
		UNIQUE (submission_id, sample_index)
	)`,
	`CREATE TABLE IF NOT EXISTS submission_info (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL REFERENCES submissions (submission_id) ON DELETE CASCADE,
		"key"         TEXT NOT NULL,
		"value"       TEXT NOT NULL,
		UNIQUE (submission_id, "key")
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS submissions (
		submission_id   TEXT PRIMARY KEY,
		uuid            TEXT NOT NULL UNIQUE,
		short_ref       TEXT NOT NULL,
		file_hash       TEXT NOT NULL UNIQUE,
		pdf_filename    TEXT NOT NULL DEFAULT '',
		scanned_at      TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		project_id      TEXT,
		owner           TEXT,
		source_organism TEXT,
		sequencing_type TEXT,
		sample_type     TEXT,
		total_samples   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS samples (
		id             BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		submission_id  TEXT NOT NULL REFERENCES submissions (submission_id) ON DELETE CASCADE,
		sample_index   INTEGER NOT NULL,
		sample_name    TEXT NOT NULL,
		volume_ul      DOUBLE PRECISION,
		qubit_conc     DOUBLE PRECISION,
		nanodrop_conc  DOUBLE PRECISION,
		a260_280_ratio DOUBLE PRECISION,
		a260_230_ratio DOUBLE PRECISION,
		UNIQUE (submission_id, sample_index)
	)`,
	`CREATE TABLE IF NOT EXISTS submission_info (
		id            BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		submission_id TEXT NOT NULL REFERENCES submissions (submission_id) ON DELETE CASCADE,
		"key"         TEXT NOT NULL,
		"value"       TEXT NOT NULL,
		UNIQUE (submission_id, "key")
	)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS submissions_project_id ON submissions (project_id)`,
	`CREATE INDEX IF NOT EXISTS submissions_scanned_at ON submissions (scanned_at)`,
	`CREATE INDEX IF NOT EXISTS samples_submission_id ON samples (submission_id)`,
	`CREATE INDEX IF NOT EXISTS submission_info_submission_id ON submission_info (submission_id)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if db.Dialect == dialect.Postgres {
		stmts = postgresSchema
	}
	stmts = append(append([]string{}, stmts...), indexes...)

	tx, err := db.Driver.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for _, stmt := range stmts {
		if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
			_ = tx.Rollback()
			db.logger.Error("migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	db.logger.Info("database schema up to date", "dialect", db.Dialect, "statements", len(stmts))
	return nil
}
