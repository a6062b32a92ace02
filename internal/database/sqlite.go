package database

import (
	"log"

	"github.com/codyseavey/crypto-tracker/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the database at dbPath and stores it as the package-level
// handle returned by GetDB.
func Initialize(dbPath string) error {
	db, err := Open(dbPath)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects to the sqlite file at dbPath, migrates the schema and runs
// the data migrations.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.KVEntry{}); err != nil {
		return nil, err
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")
	return db, nil
}

func GetDB() *gorm.DB {
	return DB
}
