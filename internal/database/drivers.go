package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxIdleConns    = 5
	maxOpenConns    = 25
	connMaxLifetime = time.Hour
)

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		path := strings.TrimSpace(cfg.Path)
		if path == "" || strings.EqualFold(path, ":memory:") {
			dsn = "file::memory:?cache=shared&_foreign_keys=1"
		} else {
			if dir := filepath.Dir(path); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create database directory: %w", err)
				}
			}
			dsn = fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", filepath.ToSlash(path))
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// The DSN flag alone does not cover pooled connections.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil && err != sql.ErrConnDone {
		return nil, err
	}

	return db, nil
}

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.User == "" || cfg.Name == "" {
			return nil, errors.New("postgres requires a user and database name")
		}

		parts := []string{
			"host=" + defaultString(cfg.Host, "localhost"),
			fmt.Sprintf("port=%d", defaultInt(cfg.Port, 5432)),
			"user=" + cfg.User,
			"dbname=" + cfg.Name,
		}
		if cfg.Password != "" {
			parts = append(parts, "password="+cfg.Password)
		}

		options := map[string]string{"sslmode": "disable"}
		for key, value := range cfg.Options {
			options[key] = value
		}
		for _, kv := range sortedOptions(options) {
			parts = append(parts, kv)
		}

		dsn = strings.Join(parts, " ")
	}

	return openWithPool(postgres.Open(dsn))
}

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.User == "" || cfg.Name == "" {
			return nil, errors.New("mysql requires a user and database name")
		}

		credentials := cfg.User
		if cfg.Password != "" {
			credentials += ":" + cfg.Password
		}

		options := map[string]string{
			"charset":   "utf8mb4",
			"parseTime": "True",
			"loc":       "Local",
		}
		for key, value := range cfg.Options {
			options[key] = value
		}

		dsn = fmt.Sprintf("%s@tcp(%s:%d)/%s?%s",
			credentials,
			defaultString(cfg.Host, "127.0.0.1"),
			defaultInt(cfg.Port, 3306),
			cfg.Name,
			strings.Join(sortedOptions(options), "&"),
		)
	}

	return openWithPool(mysql.Open(dsn))
}

func openWithPool(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	return db, nil
}

// sortedOptions renders key=value pairs in a stable order so DSNs are
// reproducible across restarts.
func sortedOptions(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+options[key])
	}
	return pairs
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
