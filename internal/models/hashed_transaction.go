package models

import (
	"time"

	"gorm.io/gorm"
)

// HashedTransaction is the uniform identity of a raw transaction.
//
// RawTransactionID is not unique. Duplicates are detected by the
// canonicalizer and reported as anomalies.
type HashedTransaction struct {
	DefaultModel
	RawTransactionID uint           `json:"rawTransactionId" gorm:"index"`
	RawTransaction   RawTransaction `json:"-"`
	Source           Source         `json:"source"`

	// UniqueBankIdentifier is the identifier of the account the money moved on
	UniqueBankIdentifier string `json:"uniqueBankIdentifier" gorm:"index:idx_hashed_ubi_primary"`

	// PrimaryHash is derived from the content of the transaction and is shared
	// by different sources reporting the same movement of money
	PrimaryHash string `json:"primaryHash" gorm:"index:idx_hashed_ubi_primary"`

	// SecondaryHash is derived from the source and its native id
	SecondaryHash string `json:"secondaryHash" gorm:"index"`

	Amount  int64     `json:"amount"`
	Date    time.Time `json:"date" gorm:"index"`
	Pending bool      `json:"pending"`
}

func (h *HashedTransaction) AfterFind(tx *gorm.DB) error {
	h.Date = h.Date.In(time.UTC)
	return h.DefaultModel.AfterFind(tx)
}

func (h HashedTransaction) EntityRef() EntityRef {
	return ref("hashed_transaction", h.ID)
}

// HashedTransactionsForRaw returns all hashed transactions claiming the raw transaction.
func HashedTransactionsForRaw(db *gorm.DB, rawID uint) ([]HashedTransaction, error) {
	var hashed []HashedTransaction
	err := db.Where("raw_transaction_id = ?", rawID).Order("id ASC").Find(&hashed).Error
	return hashed, err
}
