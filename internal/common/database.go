package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options used to open the database. PostgreSQL is used when
// the url is set, else SQLite is opened on the provided path
type DatabaseOptions struct {
	Path string
	Url  string
}

// Database is embedded by every package that owns tables
type Database struct {
	db *gorm.DB
}

func OpenDatabase(options DatabaseOptions) (Database, error) {

	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	if options.Url != "" {
		db, err := gorm.Open(postgres.Open(options.Url), config)
		if err != nil {
			return Database{}, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return Database{}, err
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		return Database{db}, nil
	}

	// Ensure directory exists
	if options.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(options.Path), 0755); err != nil {
			return Database{}, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := options.Path
	if dsn != ":memory:" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := gorm.Open(sqlite.Open(dsn), config)
	if err != nil {
		return Database{}, fmt.Errorf("failed to open sqlite database %s: %w", options.Path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return Database{}, err
	}
	// SQLite has a single writer, and an in memory database
	// only lives as long as its connection
	sqlDB.SetMaxOpenConns(1)
	return Database{db}, nil
}

func (database Database) DB() *gorm.DB {
	return database.db
}

// Create the tables of the provided models if needed
func (database Database) Migrate(models ...interface{}) error {
	if err := database.db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (database Database) Ping() error {
	sqlDB, err := database.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (database Database) Close() error {
	sqlDB, err := database.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
