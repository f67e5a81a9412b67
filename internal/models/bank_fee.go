package models

import (
	"strconv"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/statemachine"
)

type BankFeeState string

const (
	BankFeePending   BankFeeState = "pending"
	BankFeeInTransit BankFeeState = "in_transit"
	BankFeeSettled   BankFeeState = "settled"
)

var BankFeeMachine = statemachine.New("bank_fee", BankFeePending, []statemachine.Transition[BankFeeState]{
	{Event: "mark_in_transit", From: []BankFeeState{BankFeePending}, To: BankFeeInTransit},
	{Event: "mark_settled", From: []BankFeeState{BankFeeInTransit}, To: BankFeeSettled},
}, BankFeeSettled)

// BankFee is the platform fee charged to an event, collected as a transfer.
type BankFee struct {
	DefaultModel
	EventID uint         `json:"eventId"`
	Event   Event        `json:"-"`
	Amount  int64        `json:"amount"` // positive, leaves the event
	State   BankFeeState `json:"state" gorm:"default:pending"`
}

func (b *BankFee) Transition(event string) (err error) {
	b.State, err = BankFeeMachine.Fire(b.State, event)
	return
}

func (b BankFee) EntityRef() EntityRef {
	return ref("bank_fee", b.ID)
}

func (b BankFee) Code() hcbcode.Code {
	return hcbcode.ForEntity(hcbcode.BankFee, b.ID)
}

func (b BankFee) EventFor(int64) uint {
	return b.EventID
}

func (b BankFee) Legs() []Leg {
	return []Leg{{
		NativeID: strconv.FormatUint(uint64(b.ID), 10),
		Amount:   -b.Amount,
		Date:     b.CreatedAt,
		Memo:     b.Describe(-b.Amount),
	}}
}

func (b BankFee) Describe(int64) string {
	return "Bank fee"
}
