// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists synced site content in SQLite through gorm.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultDatabaseURL is used when DATABASE_URL is unset.
const DefaultDatabaseURL = "file:data/covenant.db"

// ErrUnsupportedDatabase is returned for DATABASE_URL values that do not
// name a SQLite file.
var ErrUnsupportedDatabase = errors.New("unsupported DATABASE_URL")

// Store represents the database store
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// ParseDatabaseURL returns the SQLite file path for a DATABASE_URL. Accepted
// forms are "file:<path>", "sqlite:<path>", "sqlite://<path>" and a plain
// path; query strings are dropped.
func ParseDatabaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsupportedDatabase)
	}
	p := raw
	for _, prefix := range []string{"sqlite://", "sqlite:", "file://", "file:"} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	if strings.Contains(p, "://") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDatabase, raw)
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "", fmt.Errorf("%w: %q has no path", ErrUnsupportedDatabase, raw)
	}
	return p, nil
}

// Open opens the database named by databaseURL, creating its directory.
func Open(databaseURL string, log *zap.Logger) (*Store, error) {
	dbPath, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}
	s, err := newStoreWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	if log != nil {
		s.logger = log
	}
	return s, nil
}

// newStoreWithPath creates a store with a custom database path (used for testing)
func newStoreWithPath(dbPath string) (*Store, error) {
	// Check if parent directory exists
	dbDir := filepath.Dir(dbPath)
	if _, err := os.Stat(dbDir); err != nil {
		return nil, fmt.Errorf("database directory does not exist: %s, error: %v", dbDir, err)
	}

	// WAL mode enables concurrent reads while the sync writes
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=1", dbPath)

	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := database.AutoMigrate(&Article{}, &ArticleRevision{}, &SiteSettings{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	return &Store{db: database, logger: zap.NewNop()}, nil
}

// DB returns the underlying GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
