package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// registers the "sqlite" driver used by DriverPure
	_ "modernc.org/sqlite"
)

const (
	DriverCGO  = "cgo"  // github.com/mattn/go-sqlite3 via gorm.io/driver/sqlite
	DriverPure = "pure" // modernc.org/sqlite, no cgo toolchain required
)

var DB *gorm.DB

// DatabaseConfig database config
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Database string `yaml:"database"` // sqlite file path
}

// DefaultDatabaseConfig returns the default database config
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Driver:   DriverCGO,
		Database: "data/imonitor.db",
	}
}

// Open opens the sqlite database described by config without touching the global handle.
func Open(config *DatabaseConfig) (*gorm.DB, error) {
	if config.Database == "" {
		config.Database = DefaultDatabaseConfig().Database
	}

	// make sure the database directory exists
	dbDir := filepath.Dir(config.Database)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var dialector gorm.Dialector
	switch config.Driver {
	case "", DriverCGO:
		dialector = sqlite.Open(config.Database + "?_busy_timeout=5000&_txlock=immediate")
	case DriverPure:
		dialector = sqlite.New(sqlite.Config{
			DriverName: "sqlite",
			DSN:        "file:" + config.Database + "?_pragma=busy_timeout(5000)&_txlock=immediate",
		})
	default:
		return nil, fmt.Errorf("unsupported sqlite driver: %s", config.Driver)
	}

	logLevel := logger.Error
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(log.Default(), logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite has a single writer; one connection keeps report transactions serialized
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// newGormLogger routes gorm output through w. Unknown tokens are an expected
// outcome of every report lookup, so record-not-found is not logged.
func newGormLogger(w logger.Writer, level logger.LogLevel) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// InitDatabase opens the database and installs it as the global handle
func InitDatabase(config *DatabaseConfig) error {
	db, err := Open(config)
	if err != nil {
		return err
	}
	DB = db
	log.Printf("Database connected successfully (driver: %s, file: %s)", config.Driver, config.Database)
	return nil
}

// GetDB returns the global database handle
func GetDB() *gorm.DB {
	return DB
}

// Migrate creates or updates the registry tables on db
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := db.AutoMigrate(&Node{}, &NodeEvent{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// AutoMigrate migrates the global database
func AutoMigrate() error {
	if err := Migrate(DB); err != nil {
		return err
	}
	log.Println("Database migration completed successfully")
	return nil
}

// CloseDB closes the global database connection
func CloseDB() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
