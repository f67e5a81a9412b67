package models

import (
	"errors"
)

var ErrAlreadyMapped = errors.New("the transaction is already mapped to an event")

// CanonicalEventMapping attributes a canonical transaction to exactly one event.
type CanonicalEventMapping struct {
	DefaultModel
	CanonicalTransactionID uint                 `json:"canonicalTransactionId" gorm:"uniqueIndex:idx_event_mapping_canonical"`
	CanonicalTransaction   CanonicalTransaction `json:"-"`
	EventID                uint                 `json:"eventId" gorm:"index"`
	Event                  Event                `json:"-"`
}

// CanonicalPendingEventMapping attributes a pending transaction to exactly one event.
type CanonicalPendingEventMapping struct {
	DefaultModel
	CanonicalPendingTransactionID uint                        `json:"canonicalPendingTransactionId" gorm:"uniqueIndex:idx_pending_event_mapping_pending"`
	CanonicalPendingTransaction   CanonicalPendingTransaction `json:"-"`
	EventID                       uint                        `json:"eventId" gorm:"index"`
	Event                         Event                       `json:"-"`
}
