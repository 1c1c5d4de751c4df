package datasource

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

// openStore connects to the source-data store, dispatching to Postgres
// or SQLite by URL scheme exactly as the teacher's database.New and
// recorder.Open do, and auto-migrates the ohlcv/symbology tables so a
// freshly provisioned store is queryable immediately.
func openStore(path string) (*gorm.DB, error) {
	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		db, err := gorm.Open(postgres.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Debug().Msg("datasource connected (PostgreSQL)")
		return migrateAndReturn(db)
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
	log.Debug().Str("path", path).Msg("datasource connected (SQLite, WAL)")
	return migrateAndReturn(db)
}

func migrateAndReturn(db *gorm.DB) (*gorm.DB, error) {
	if err := db.AutoMigrate(&OHLCVRow{}, &SymbologyRow{}); err != nil {
		return nil, fmt.Errorf("datasource: migrate: %w", err)
	}
	return db, nil
}
