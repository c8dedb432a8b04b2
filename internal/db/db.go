// internal/db/db.go
package db

import (
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	sqlite3 "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultFile = "storesync.db"

type Handle struct {
	DB     *gorm.DB
	Driver string
	DSN    string
}

// Open: sqlite (czysty Go, domyślny), sqlite3 (cgo), postgres, mysql.
func Open(driver, dsn string) (*Handle, error) {
	var dial gorm.Dialector
	switch driver {
	case "", "sqlite":
		driver = "sqlite"
		dial = sqlite.Open(dsn)
	case "sqlite3":
		dial = sqlite3.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // logger.Info dla verbose SQL
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return &Handle{DB: gdb, Driver: driver, DSN: dsn}, nil
}

// OpenAt - plik sqlite w katalogu aplikacji.
func OpenAt(dir string) (*Handle, error) {
	path := filepath.Join(dir, DefaultFile)
	return Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
}

func (h *Handle) Close() error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
