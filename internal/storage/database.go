/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/loqalabs/loqa-interviewer/internal/logging"
	"github.com/loqalabs/loqa-interviewer/internal/security"
)

//go:embed *.sql
var schemaFiles embed.FS

// Database wraps the SQLite connection holding the turn journal
type Database struct {
	db   *sql.DB
	path string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string
}

// NewDatabase opens (creating if needed) the SQLite journal and applies the schema
func NewDatabase(config DatabaseConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path must be provided")
	}

	// Ensure directory exists
	if err := ensureDir(filepath.Dir(config.Path)); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite database
	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Concurrent turns share one writer; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	// Pragmas are per connection, so they must run after the pool is capped
	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure SQLite: %w", err)
	}

	database := &Database{
		db:   db,
		path: config.Path,
	}

	// Run migrations
	if err := database.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logging.Sugar.Infof("✅ Database connected: %s", security.SanitizeLogInput(config.Path))
	return database, nil
}

// ensureDir creates directory if it doesn't exist
func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0750)
}

// configureSQLite applies the connection settings for an append-mostly journal
func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",   // readers of /api/turns never block a turn insert
		"PRAGMA synchronous = NORMAL", // a crash may lose the last turns, never corrupt the file
		"PRAGMA cache_size = 10000",   // pages, not bytes
		"PRAGMA temp_store = memory",  // sort space for paged listings
		"PRAGMA foreign_keys = ON",    // enforce constraints declared in schema.sql
		"PRAGMA busy_timeout = 5000",  // wait up to 5s on a locked file
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// migrate applies the embedded schema. Every statement is idempotent.
func (d *Database) migrate() error {
	// Read schema from embedded file
	schemaSQL, err := schemaFiles.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	// Execute schema
	if _, err := d.db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	logging.Logger.Debug("Database schema migrated", zap.String("path", d.path))
	return nil
}

// DB returns the underlying sql.DB instance
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close checkpoints the WAL and closes the database connection
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	if err := d.Checkpoint(); err != nil {
		logging.LogWarn("WAL checkpoint on close failed", zap.Error(err))
	}
	logging.Sugar.Infof("🔌 Closing database connection: %s", security.SanitizeLogInput(d.path))
	return d.db.Close()
}

// Ping tests the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Checkpoint forces a WAL checkpoint to sync data to the main database file
func (d *Database) Checkpoint() error {
	if _, err := d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	return nil
}
