package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRawTransactionExists = errors.New("a raw transaction with this native id already exists for the source")

// RawTransaction is a record as reported by a source, keyed by the
// source's native id.
type RawTransaction struct {
	DefaultModel
	DeletedAt gorm.DeletedAt `json:"deletedAt" gorm:"index"`

	Source        Source       `json:"source" gorm:"uniqueIndex:idx_raw_source_native;not null"`
	NativeID      string       `json:"nativeId" gorm:"uniqueIndex:idx_raw_source_native;not null"`
	BankAccountID *uint        `json:"bankAccountId" gorm:"index"`
	BankAccount   *BankAccount `json:"-"`

	Amount int64     `json:"amount"`
	Date   time.Time `json:"date" gorm:"index"`
	Memo   string    `json:"memo"`

	Pending   bool `json:"pending"`
	Declined  bool `json:"declined"`
	FeeWaived bool `json:"feeWaived"`

	// LinkedCode is the HCB code of the entity for sources derived from local entities
	LinkedCode *string `json:"linkedCode"`

	Payload    datatypes.JSON `json:"payload"`
	LastSeenAt time.Time      `json:"lastSeenAt"`
}

func (r *RawTransaction) BeforeSave(_ *gorm.DB) error {
	r.Date = normalizeDate(r.Date)
	r.Memo = strings.TrimSpace(r.Memo)
	return nil
}

func (r *RawTransaction) AfterFind(tx *gorm.DB) error {
	r.Date = r.Date.In(time.UTC)
	r.LastSeenAt = r.LastSeenAt.In(time.UTC)
	return r.DefaultModel.AfterFind(tx)
}

func (r RawTransaction) EntityRef() EntityRef {
	return ref("raw_transaction", r.ID)
}

// Settled is true once the source stopped reporting the record as pending.
func (r RawTransaction) Settled() bool {
	return !r.Pending
}

// Linked returns the HCB code of the linked entity.
func (r RawTransaction) Linked() (hcbcode.Code, bool) {
	if r.LinkedCode == nil {
		return hcbcode.Code{}, false
	}

	c, err := hcbcode.Parse(*r.LinkedCode)
	if err != nil {
		return hcbcode.Code{}, false
	}
	return c, true
}

// PayloadString returns a top level string attribute of the payload.
func (r RawTransaction) PayloadString(key string) string {
	if len(r.Payload) == 0 {
		return ""
	}

	var m map[string]any
	if err := json.Unmarshal(r.Payload, &m); err != nil {
		return ""
	}

	s, _ := m[key].(string)
	return s
}
