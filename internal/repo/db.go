// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/clinova/go-triage-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
// The path ":memory:" yields a volatile store that vanishes on restart,
// which is the default deployment mode for this service.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file::memory:") {
		// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool. In-memory databases must stay on a single connection or each
	// pooled conn would see its own empty schema.
	if sqlDB, err := db.DB(); err == nil {
		if path == ":memory:" || strings.HasPrefix(path, "file::memory:") {
			sqlDB.SetMaxOpenConns(1)
		} else {
			sqlDB.SetMaxOpenConns(10)
			sqlDB.SetMaxIdleConns(10)
			sqlDB.SetConnMaxIdleTime(5 * time.Minute)
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
		}
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Session{},
		&domain.Message{},
		&domain.TriageLog{},
		&domain.Appointment{},
		&domain.Idempotency{},
	)
}
