package models

import (
	"errors"
	"time"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/statemachine"
	"gorm.io/gorm"
)

var (
	ErrPendingExists          = errors.New("a canonical pending transaction already exists for the raw transaction")
	ErrPendingAlreadySettled  = errors.New("the pending transaction is already settled")
	ErrPendingAlreadyDeclined = errors.New("the pending transaction is already declined")
	ErrCanonicalAlreadyLinked = errors.New("the canonical transaction already settles another pending transaction")
)

type PendingState string

const (
	PendingStatePending  PendingState = "pending"
	PendingStateDeclined PendingState = "declined"
	PendingStateSettled  PendingState = "settled"
)

// PendingMachine moves a pending transaction into exactly one of its terminal states.
var PendingMachine = statemachine.New("canonical_pending_transaction", PendingStatePending, []statemachine.Transition[PendingState]{
	{Event: "decline", From: []PendingState{PendingStatePending}, To: PendingStateDeclined},
	{Event: "settle", From: []PendingState{PendingStatePending}, To: PendingStateSettled},
}, PendingStateDeclined, PendingStateSettled)

// CanonicalPendingTransaction is a movement of money that has been
// authorized or initiated but not settled yet.
type CanonicalPendingTransaction struct {
	DefaultModel
	RawTransactionID uint           `json:"rawTransactionId" gorm:"uniqueIndex:idx_pending_raw"`
	RawTransaction   RawTransaction `json:"-"`
	Amount           int64          `json:"amount"`
	Date             time.Time      `json:"date" gorm:"index"`
	Memo             string         `json:"memo"`
	HcbCode          *string        `json:"hcbCode" gorm:"index"`
	FeeWaived        bool           `json:"feeWaived"`
	State            PendingState   `json:"state" gorm:"index;not null"`
}

func (p *CanonicalPendingTransaction) BeforeCreate(_ *gorm.DB) error {
	p.Date = normalizeDate(p.Date)
	if p.State == "" {
		p.State = PendingMachine.Initial()
	}
	return nil
}

func (p *CanonicalPendingTransaction) AfterFind(tx *gorm.DB) error {
	p.Date = p.Date.In(time.UTC)
	return p.DefaultModel.AfterFind(tx)
}

func (p CanonicalPendingTransaction) EntityRef() EntityRef {
	return ref("canonical_pending_transaction", p.ID)
}

func (p CanonicalPendingTransaction) Code() (hcbcode.Code, bool) {
	if p.HcbCode == nil {
		return hcbcode.Code{}, false
	}

	code, err := hcbcode.Parse(*p.HcbCode)
	if err != nil {
		return hcbcode.Code{}, false
	}
	return code, true
}

func (p CanonicalPendingTransaction) Kind() hcbcode.Kind {
	code, ok := p.Code()
	if !ok {
		return hcbcode.Unknown
	}
	return code.Kind()
}

func (p CanonicalPendingTransaction) IsSettled() bool {
	return p.State == PendingStateSettled
}

func (p CanonicalPendingTransaction) IsDeclined() bool {
	return p.State == PendingStateDeclined
}

// transition moves the pending transaction to a new state. The update is
// conditional on the state read before, so concurrent transitions fail.
func (p *CanonicalPendingTransaction) transition(tx *gorm.DB, event string) error {
	next, err := PendingMachine.Fire(p.State, event)
	if err != nil {
		if p.State == PendingStateSettled {
			return ErrPendingAlreadySettled
		}
		if p.State == PendingStateDeclined {
			return ErrPendingAlreadyDeclined
		}
		return err
	}

	result := tx.Model(&CanonicalPendingTransaction{}).
		Where("id = ? AND state = ?", p.ID, p.State).
		Update("state", next)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var current CanonicalPendingTransaction
		if err := tx.First(&current, p.ID).Error; err != nil {
			return err
		}
		if current.State == PendingStateSettled {
			return ErrPendingAlreadySettled
		}
		return ErrPendingAlreadyDeclined
	}

	p.State = next
	return nil
}

// Decline marks the pending transaction as declined. It must be called in a transaction.
func (p *CanonicalPendingTransaction) Decline(tx *gorm.DB) (CanonicalPendingDeclinedMapping, error) {
	if err := p.transition(tx, "decline"); err != nil {
		return CanonicalPendingDeclinedMapping{}, err
	}

	m := CanonicalPendingDeclinedMapping{CanonicalPendingTransactionID: p.ID}
	err := tx.Create(&m).Error
	return m, err
}

// Settle links the pending transaction to the canonical transaction clearing it.
// It must be called in a transaction.
func (p *CanonicalPendingTransaction) Settle(tx *gorm.DB, ct CanonicalTransaction) (CanonicalPendingSettledMapping, error) {
	if err := p.transition(tx, "settle"); err != nil {
		return CanonicalPendingSettledMapping{}, err
	}

	m := CanonicalPendingSettledMapping{
		CanonicalPendingTransactionID: p.ID,
		CanonicalTransactionID:        ct.ID,
		AmountSettled:                 ct.Amount,
	}
	err := tx.Create(&m).Error
	return m, err
}

type CanonicalPendingDeclinedMapping struct {
	DefaultModel
	CanonicalPendingTransactionID uint                        `json:"canonicalPendingTransactionId" gorm:"uniqueIndex:idx_declined_pending"`
	CanonicalPendingTransaction   CanonicalPendingTransaction `json:"-"`
}

// CanonicalPendingSettledMapping links a pending transaction to the
// canonical transaction it settled as. Both sides are unique.
type CanonicalPendingSettledMapping struct {
	DefaultModel
	CanonicalPendingTransactionID uint                        `json:"canonicalPendingTransactionId" gorm:"uniqueIndex:idx_settled_pending"`
	CanonicalPendingTransaction   CanonicalPendingTransaction `json:"-"`
	CanonicalTransactionID        uint                        `json:"canonicalTransactionId" gorm:"uniqueIndex:idx_settled_canonical"`
	CanonicalTransaction          CanonicalTransaction        `json:"-"`

	// AmountSettled can be less than the pending amount, e.g. for partial captures
	AmountSettled int64 `json:"amountSettled"`
}
