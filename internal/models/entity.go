package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"gorm.io/gorm"
)

var ErrNoLocalEntity = errors.New("the HCB code does not reference a local entity")

// Leg is one pending ledger line created by an entity. Most entities have one
// leg, disbursements have an outgoing and an incoming one.
type Leg struct {
	NativeID  string
	Amount    int64
	Date      time.Time
	Memo      string
	Declined  bool
	FeeWaived bool
}

// Entity is a domain entity that transactions are linked to by HCB code.
type Entity interface {
	Commentable

	// Code is the HCB code of all transactions belonging to the entity
	Code() hcbcode.Code

	// EventFor returns the event that owns a ledger line with the given amount
	EventFor(amount int64) uint

	// Legs returns the pending ledger lines of the entity
	Legs() []Leg

	// Describe returns a human readable description of a ledger line
	Describe(amount int64) string
}

// FindEntity loads the entity referenced by code, including everything
// needed to resolve its event and description.
func FindEntity(db *gorm.DB, code hcbcode.Code) (Entity, error) {
	id, ok := code.EntityID()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoLocalEntity, code)
	}

	switch code.Kind() {
	case hcbcode.Invoice:
		var i Invoice
		err := db.Preload("Sponsor").First(&i, id).Error
		return &i, err
	case hcbcode.Donation:
		var d Donation
		err := db.First(&d, id).Error
		return &d, err
	case hcbcode.AchTransfer:
		var a AchTransfer
		err := db.First(&a, id).Error
		return &a, err
	case hcbcode.Check:
		var c Check
		err := db.First(&c, id).Error
		return &c, err
	case hcbcode.Disbursement:
		var d Disbursement
		err := db.Preload("Event").Preload("SourceEvent").First(&d, id).Error
		return &d, err
	case hcbcode.BankFee:
		var b BankFee
		err := db.First(&b, id).Error
		return &b, err
	case hcbcode.CardCharge, hcbcode.Unknown:
		return nil, fmt.Errorf("%w: %s", ErrNoLocalEntity, code)
	}

	return nil, fmt.Errorf("%w: %s", ErrNoLocalEntity, code)
}
