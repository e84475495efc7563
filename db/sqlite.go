package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	puresqlite "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/treelens/models"
)

// Drivers for local database files
const (
	DriverSQLite = "sqlite" // cgo mattn/go-sqlite3
	DriverPure   = "pure"   // pure-Go modernc sqlite
)

// Config selects and configures the journal database
type Config struct {
	DSN       string
	Driver    string
	AuthToken string // libsql remote databases only
	Debug     bool
}

// Connect establishes a database connection and runs migrations
func Connect(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	if !isURL(dsn) && !isMemory(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	config := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cfg.Debug {
		config.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	switch {
	case isURL(dsn):
		var (
			connector driver.Connector
			err       error
		)
		if cfg.AuthToken != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(cfg.AuthToken))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create libsql connector: %w", err)
		}

		conn = sql.OpenDB(connector)
		dialector = sqlite.New(sqlite.Config{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		})
	case cfg.Driver == DriverPure:
		dialector = puresqlite.Open(dsn)
	case cfg.Driver == "" || cfg.Driver == DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		// Every connection to :memory: opens a separate database.
		if isMemory(dsn) {
			sqlDB.SetMaxOpenConns(1)
		}
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isURL checks if the DSN is a remote libsql URL or a file path
func isURL(dsn string) bool {
	for _, prefix := range []string{"http://", "https://", "libsql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return true
		}
	}
	return false
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file::memory:")
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Run{},
		&models.Edit{},
	)
}
