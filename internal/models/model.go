package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultModel is the base model for the ledger tables.
//
// IDs are integers since they are part of HCB codes, which are stored
// outside of this database and must keep their format.
type DefaultModel struct {
	ID uint `json:"id" gorm:"primaryKey"`
	Timestamps
}

// Timestamps only contains the timestamps that gorm sets automatically.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// normalizeDate strips the time of day. Posted dates are calendar days in UTC.
func normalizeDate(t time.Time) time.Time {
	t = t.In(time.UTC)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// utc converts the timestamps to UTC.
//
// They are stored in UTC, but reading them from the database returns
// them as +0000.
func (t *Timestamps) utc() {
	t.CreatedAt = t.CreatedAt.In(time.UTC)
	t.UpdatedAt = t.UpdatedAt.In(time.UTC)
}

// AfterFind updates the timestamps to use UTC as timezone.
func (m *DefaultModel) AfterFind(_ *gorm.DB) (err error) {
	m.utc()
	return nil
}
