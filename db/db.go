package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultFileName is the name of the SQLite file inside the data directory.
const DefaultFileName = "microfeed.db"

// Open opens (and creates, if needed) the SQLite database at path,
// migrates the tables, and configures the GORM logger.
// The returned handle is owned by the caller and must be released with Close.
func Open(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if err := createDBDirectory(path); err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to open database")
		return nil, err
	}

	if err := Migrate(gdb); err != nil {
		_ = Close(gdb)
		return nil, err
	}

	configureLogger(gdb)

	log.Debug().Str("path", path).Msg("Database initialized successfully")
	return gdb, nil
}

// Migrate creates or updates the token and post cache tables.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&Token{}, &CachedPost{}); err != nil {
		log.Error().Err(err).Msg("Failed to auto-migrate database")
		return err
	}
	return nil
}

// createDBDirectory creates the directory for the database file if it does not exist.
func createDBDirectory(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error().Err(err).Msg("Failed to create database directory")
			return err
		}
	}
	return nil
}

// configureLogger keeps GORM quiet unless zerolog is enabled.
func configureLogger(gdb *gorm.DB) {
	if zerolog.GlobalLevel() == zerolog.Disabled {
		gdb.Logger = gdb.Logger.LogMode(logger.Silent)
	} else {
		gdb.Logger = gdb.Logger.LogMode(logger.Info)
	}
}

// Close closes the database connection. A nil handle is a no-op.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get raw database connection")
		return err
	}
	return sqlDB.Close()
}
