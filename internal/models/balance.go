package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AvailableBalance returns the balance of an event that can be spent right
// now, in cents. It is the settled balance minus outgoing pending
// transactions and fees. Card authorizations are approved against it.
func AvailableBalance(db *gorm.DB, eventID uint) (int64, error) {
	var settled int64
	err := db.Model(&CanonicalTransaction{}).
		Select("COALESCE(SUM(canonical_transactions.amount), 0)").
		Joins("JOIN canonical_event_mappings ON canonical_event_mappings.canonical_transaction_id = canonical_transactions.id").
		Where("canonical_event_mappings.event_id = ?", eventID).
		Scan(&settled).Error
	if err != nil {
		return 0, err
	}

	var pendingOutgoing int64
	err = db.Model(&CanonicalPendingTransaction{}).
		Select("COALESCE(SUM(canonical_pending_transactions.amount), 0)").
		Joins("JOIN canonical_pending_event_mappings ON canonical_pending_event_mappings.canonical_pending_transaction_id = canonical_pending_transactions.id").
		Where("canonical_pending_event_mappings.event_id = ?", eventID).
		Where("canonical_pending_transactions.state = ?", PendingStatePending).
		Where("canonical_pending_transactions.amount < 0").
		Scan(&pendingOutgoing).Error
	if err != nil {
		return 0, err
	}

	var fees []decimal.Decimal
	err = db.Model(&Fee{}).
		Joins("JOIN canonical_event_mappings ON canonical_event_mappings.id = fees.canonical_event_mapping_id").
		Where("canonical_event_mappings.event_id = ?", eventID).
		Pluck("fees.amount", &fees).Error
	if err != nil {
		return 0, err
	}

	feeTotal := decimal.Sum(decimal.Zero, fees...)

	// Fees are charged in whole cents, rounding in the platform's favour
	return settled + pendingOutgoing - feeTotal.Ceil().IntPart(), nil
}
