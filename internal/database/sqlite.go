package database

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/binder-tracker/backend/internal/models"
)

// Options selects the database backend
type Options struct {
	Driver      string // "sqlite" (default) or "postgres"
	Path        string // sqlite file path
	DatabaseURL string // postgres DSN
	LogLevel    logger.LogLevel
}

// Initialize connects to the configured backend and auto-migrates every table.
func Initialize(opts Options) (*gorm.DB, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Database connected successfully (%s)", driverName(opts))

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")
	return db, nil
}

// Migrate auto-migrates every table owned by the application
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Card{},
		&models.Binder{},
		&models.BinderCard{},
		&models.BinderValueSnapshot{},
	)
}

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch driverName(opts) {
	case "sqlite":
		path := opts.Path
		if path == "" {
			path = "./binder_tracker.db"
		}
		return sqlite.Open(path), nil
	case "postgres":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		return postgres.Open(opts.DatabaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

func driverName(opts Options) string {
	if opts.Driver == "" {
		return "sqlite"
	}
	return opts.Driver
}
