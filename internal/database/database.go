package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mapprice/server/config"
)

// Database holds the write handle used by the aggregator and the read handle
// used by map queries. Each has its own connection pool.
type Database struct {
	writer *gorm.DB
	reader *gorm.DB
}

func NewDatabase(cfg *config.Config, logger *logrus.Logger) (*Database, error) {
	writer, err := Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.MaxOpenConns, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}

	reader, err := Open(cfg.Database.Driver, cfg.Database.ReadDSN, cfg.Database.ReadMaxOpenConns, logger)
	if err != nil {
		closeDB(writer)
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}

	return &Database{writer: writer, reader: reader}, nil
}

// Open connects to sqlite or postgres through gorm.
func Open(driver, dsn string, maxOpenConns int, logger *logrus.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dialector = sqlite.Open(dsn + sep + "_foreign_keys=on&_busy_timeout=5000")
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gormConfig := &gorm.Config{}
	if logger != nil {
		gormConfig.Logger = gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

var testDBCounter atomic.Int64

// NewTestDB opens a private in-memory sqlite database.
func NewTestDB() (*gorm.DB, error) {
	name := fmt.Sprintf("file:mapprice_test_%d?mode=memory&cache=shared&_foreign_keys=on", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one connection keeps the shared-cache database alive and avoids
	// table lock errors between connections
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func (d *Database) Writer() *gorm.DB {
	return d.writer
}

func (d *Database) Reader() *gorm.DB {
	return d.reader
}

func (d *Database) Close() error {
	werr := closeDB(d.writer)
	rerr := closeDB(d.reader)
	if werr != nil {
		return werr
	}
	return rerr
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
