package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/monorkin/nightscout-watch-monitor/internal/config"
)

const BUSY_TIMEOUT_MS = 5000

var (
	DB      *gorm.DB
	once    sync.Once
	initErr error
)

// Init opens the database at config.DBPath once per process.
func Init() error {
	once.Do(func() {
		DB, initErr = Open(config.DBPath())
	})
	return initErr
}

func Open(dbPath string) (*gorm.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := Migrate(db); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return db, nil
}

// dsn turns foreign keys on for every pooled connection and lets writers
// wait for each other instead of failing with "database is locked".
func dsn(dbPath string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=%d", dbPath, BUSY_TIMEOUT_MS)
}

func GetSize(db *gorm.DB) (int64, error) {
	var pageCount, pageSize int64

	if err := db.Raw("PRAGMA page_count").Scan(&pageCount).Error; err != nil {
		return 0, errors.Wrap(err, "failed to read page count")
	}
	if err := db.Raw("PRAGMA page_size").Scan(&pageSize).Error; err != nil {
		return 0, errors.Wrap(err, "failed to read page size")
	}

	return pageCount * pageSize, nil
}
