package database

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/crypto-tracker/internal/models"
)

// Keys shared with the services package. They are the browser dashboard's
// localStorage keys.
const (
	WatchlistKey       = "crypto_watchlist_v1"
	legacyWatchlistKey = "crypto_watchlist"
)

// RunMigrations runs any custom data migrations after schema changes
func RunMigrations(db *gorm.DB) error {
	if err := migrateLegacyWatchlistKey(db); err != nil {
		return err
	}
	if err := cleanupWatchlistEntries(db); err != nil {
		return err
	}
	return nil
}

// migrateLegacyWatchlistKey moves a watchlist saved under the unversioned key
// to the current key. An existing current value always wins.
func migrateLegacyWatchlistKey(db *gorm.DB) error {
	var legacy models.KVEntry
	if err := db.Where("key = ?", legacyWatchlistKey).Limit(1).Find(&legacy).Error; err != nil {
		return err
	}
	if legacy.Key == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.KVEntry{}).Where("key = ?", WatchlistKey).Count(&count).Error; err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if count == 0 {
			entry := models.KVEntry{Key: WatchlistKey, Value: legacy.Value, UpdatedAt: time.Now()}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			log.Printf("Migrated watchlist from %s to %s", legacyWatchlistKey, WatchlistKey)
		}
		return tx.Where("key = ?", legacyWatchlistKey).Delete(&models.KVEntry{}).Error
	})
}

// cleanupWatchlistEntries drops blank and duplicate coin ids from the stored
// watchlist, keeping first-seen order. Corrupt values are left alone; readers
// fail open on them.
// This is safe to run multiple times as it only rewrites when something changed
func cleanupWatchlistEntries(db *gorm.DB) error {
	var entry models.KVEntry
	if err := db.Where("key = ?", WatchlistKey).Limit(1).Find(&entry).Error; err != nil {
		return err
	}
	if entry.Key == "" {
		return nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(entry.Value), &ids); err != nil {
		log.Printf("Warning: stored watchlist is not valid JSON, leaving it untouched: %v", err)
		return nil
	}

	seen := make(map[string]bool, len(ids))
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}

	if len(cleaned) == len(ids) {
		return nil
	}

	data, err := json.Marshal(cleaned)
	if err != nil {
		return err
	}
	result := db.Model(&models.KVEntry{}).Where("key = ?", WatchlistKey).
		Updates(map[string]any{"value": string(data), "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}

	log.Printf("Cleaned up %d duplicate or blank watchlist entries", len(ids)-len(cleaned))
	return nil
}
