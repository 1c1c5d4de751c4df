package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store owns the run-results database: one read-write connection the
// recorder writes through, and a second connection kept for readers
// such as a dashboard (spec.md §4.6). The second connection is opened
// with the same settings as the first; nothing restricts it to reads.
type Store struct {
	write    *gorm.DB
	readOnly *gorm.DB
}

// Open connects to path, dispatching to Postgres when path carries a
// postgres(ql):// scheme and to SQLite (WAL-mode, for concurrent reads
// while writing per spec.md §4.6) otherwise, then auto-migrates every
// event table plus `runs`. Mirrors the teacher's dual-driver
// database.New dispatch.
func Open(path string) (*Store, error) {
	write, err := openConn(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open write connection: %w", err)
	}
	if err := write.AutoMigrate(allModels...); err != nil {
		return nil, fmt.Errorf("recorder: migrate: %w", err)
	}

	readOnly, err := openConn(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: open read-only connection: %w", err)
	}

	return &Store{write: write, readOnly: readOnly}, nil
}

func openConn(path string) (*gorm.DB, error) {
	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		db, err := gorm.Open(postgres.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Debug().Msg("recorder connected (PostgreSQL)")
		return db, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Msg("recorder connected (SQLite, WAL)")
	return db, nil
}

// ReadOnly exposes the second connection for external inspection of
// in-progress and completed runs. Writes through it are not rejected.
func (s *Store) ReadOnly() *gorm.DB { return s.readOnly }

// Close closes the write connection. The read-only companion is left
// open for whatever external process holds it.
func (s *Store) Close() error {
	sqlDB, err := s.write.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CloseReadOnly closes the read-only companion connection.
func (s *Store) CloseReadOnly() error {
	sqlDB, err := s.readOnly.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
