package models

import (
	"errors"
	"time"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"gorm.io/gorm"
)

var (
	ErrHashedAlreadyCanonized = errors.New("the hashed transaction already belongs to a canonical transaction")
	ErrAmountImmutable        = errors.New("the amount of a canonical transaction cannot be changed")
	ErrHcbCodeAssigned        = errors.New("the canonical transaction already has an HCB code")
)

// CanonicalTransaction is the authoritative, settled ledger line.
type CanonicalTransaction struct {
	DefaultModel
	Amount       int64     `json:"amount"`
	Date         time.Time `json:"date" gorm:"index"`
	Memo         string    `json:"memo"`
	FriendlyMemo *string   `json:"friendlyMemo"`
	CustomMemo   *string   `json:"customMemo"`
	HcbCode      *string   `json:"hcbCode" gorm:"index"`
}

func (c *CanonicalTransaction) BeforeCreate(_ *gorm.DB) error {
	c.Date = normalizeDate(c.Date)
	return nil
}

func (c *CanonicalTransaction) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("Amount") {
		return ErrAmountImmutable
	}
	return nil
}

func (c *CanonicalTransaction) AfterFind(tx *gorm.DB) error {
	c.Date = c.Date.In(time.UTC)
	return c.DefaultModel.AfterFind(tx)
}

func (c CanonicalTransaction) EntityRef() EntityRef {
	return ref("canonical_transaction", c.ID)
}

// Code returns the parsed HCB code if one has been assigned.
func (c CanonicalTransaction) Code() (hcbcode.Code, bool) {
	if c.HcbCode == nil {
		return hcbcode.Code{}, false
	}

	code, err := hcbcode.Parse(*c.HcbCode)
	if err != nil {
		return hcbcode.Code{}, false
	}
	return code, true
}

// Kind is the kind of entity the transaction belongs to.
func (c CanonicalTransaction) Kind() hcbcode.Kind {
	code, ok := c.Code()
	if !ok {
		return hcbcode.Unknown
	}
	return code.Kind()
}

// SmartMemo is the memo to display. Custom memos take precedence over
// friendly memos, which take precedence over the raw memo.
func (c CanonicalTransaction) SmartMemo() string {
	if c.CustomMemo != nil && *c.CustomMemo != "" {
		return *c.CustomMemo
	}

	if c.FriendlyMemo != nil && *c.FriendlyMemo != "" {
		return *c.FriendlyMemo
	}

	return c.Memo
}

// AssignHcbCode sets the HCB code of a canonical transaction that does not
// have one yet. Codes are never reassigned.
func AssignHcbCode(db *gorm.DB, c *CanonicalTransaction, code hcbcode.Code) error {
	s := code.String()

	result := db.Model(&CanonicalTransaction{}).
		Where("id = ? AND hcb_code IS NULL", c.ID).
		Update("hcb_code", s)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrHcbCodeAssigned
	}

	c.HcbCode = &s
	return nil
}

// CanonicalHashedMapping links hashed transactions to the canonical
// transaction they were merged into.
type CanonicalHashedMapping struct {
	DefaultModel
	CanonicalTransactionID uint                 `json:"canonicalTransactionId" gorm:"index"`
	CanonicalTransaction   CanonicalTransaction `json:"-"`
	HashedTransactionID    uint                 `json:"hashedTransactionId" gorm:"uniqueIndex:idx_canonical_hashed_hashed"`
	HashedTransaction      HashedTransaction    `json:"-"`
}

// RawTransactionsFor returns the raw transactions merged into a canonical transaction.
func RawTransactionsFor(db *gorm.DB, canonicalID uint) ([]RawTransaction, error) {
	var raws []RawTransaction
	err := db.Unscoped().
		Joins("JOIN hashed_transactions ON hashed_transactions.raw_transaction_id = raw_transactions.id").
		Joins("JOIN canonical_hashed_mappings ON canonical_hashed_mappings.hashed_transaction_id = hashed_transactions.id").
		Where("canonical_hashed_mappings.canonical_transaction_id = ?", canonicalID).
		Order("raw_transactions.id ASC").
		Find(&raws).Error
	return raws, err
}
