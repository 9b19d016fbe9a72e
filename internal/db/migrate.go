package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the version Open migrates the store to.
const SchemaVersion = 2

// migrations[i] upgrades a store from version i to version i+1. Every
// statement must leave existing tables and rows alone.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			question TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			incorrect_answers TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category);`,
	},
}

// storedVersion reads the schema version recorded in the database file.
func storedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Migrate upgrades the schema from version from to version to in a single
// transaction. It is a no-op when from == to.
func Migrate(ctx context.Context, db *sql.DB, from, to int) error {
	if from == to {
		return nil
	}
	if from > to {
		return fmt.Errorf("schema version %d is newer than supported version %d", from, to)
	}
	if from < 0 || to > len(migrations) {
		return fmt.Errorf("no migration path from version %d to %d", from, to)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for v := from; v < to; v++ {
		for _, stmt := range migrations[v] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate to version %d: %w", v+1, err)
			}
		}
	}

	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, to)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
