package models

import (
	"time"
)

// KVEntry is a row of the durable key-value table.
type KVEntry struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index"`
}

func (KVEntry) TableName() string { return "kv_entries" }
