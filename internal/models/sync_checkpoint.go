package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncCheckpoint stores the last date a long running job has completely processed.
type SyncCheckpoint struct {
	Name              string    `json:"name" gorm:"primaryKey"`
	LastProcessedDate time.Time `json:"lastProcessedDate"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// LoadCheckpoint returns the last processed date for name. ok is false if
// there is no checkpoint.
func LoadCheckpoint(db *gorm.DB, name string) (date time.Time, ok bool, err error) {
	var c SyncCheckpoint
	err = db.Where("name = ?", name).First(&c).Error
	if errors.Is(err, ErrResourceNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	return c.LastProcessedDate.In(time.UTC), true, nil
}

// SaveCheckpoint creates or updates the checkpoint for name.
func SaveCheckpoint(db *gorm.DB, name string, date time.Time) error {
	c := SyncCheckpoint{
		Name:              name,
		LastProcessedDate: normalizeDate(date),
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_processed_date", "updated_at"}),
	}).Create(&c).Error
}

// DeleteCheckpoint removes the checkpoint for name.
func DeleteCheckpoint(db *gorm.DB, name string) error {
	return db.Where("name = ?", name).Delete(&SyncCheckpoint{}).Error
}
