package models

import (
	"fmt"
	"strconv"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/statemachine"
)

type CheckState string

const (
	CheckPending   CheckState = "pending"
	CheckInTransit CheckState = "in_transit"
	CheckDeposited CheckState = "deposited"
	CheckRejected  CheckState = "rejected"
	CheckVoided    CheckState = "voided"
)

var CheckMachine = statemachine.New("check", CheckPending, []statemachine.Transition[CheckState]{
	{Event: "mark_in_transit", From: []CheckState{CheckPending}, To: CheckInTransit},
	{Event: "mark_deposited", From: []CheckState{CheckInTransit}, To: CheckDeposited},
	{Event: "mark_rejected", From: []CheckState{CheckPending}, To: CheckRejected},
	{Event: "mark_voided", From: []CheckState{CheckPending, CheckInTransit}, To: CheckVoided},
}, CheckDeposited, CheckRejected, CheckVoided)

// Check is a paper check mailed on behalf of an event.
type Check struct {
	DefaultModel
	EventID   uint       `json:"eventId"`
	Event     Event      `json:"-"`
	Amount    int64      `json:"amount"` // positive, leaves the event
	PayeeName string     `json:"payeeName"`
	State     CheckState `json:"state" gorm:"default:pending"`
}

func (c *Check) Transition(event string) (err error) {
	c.State, err = CheckMachine.Fire(c.State, event)
	return
}

func (c Check) EntityRef() EntityRef {
	return ref("check", c.ID)
}

func (c Check) Code() hcbcode.Code {
	return hcbcode.ForEntity(hcbcode.Check, c.ID)
}

func (c Check) EventFor(int64) uint {
	return c.EventID
}

func (c Check) Legs() []Leg {
	return []Leg{{
		NativeID: strconv.FormatUint(uint64(c.ID), 10),
		Amount:   -c.Amount,
		Date:     c.CreatedAt,
		Memo:     c.Describe(-c.Amount),
		Declined: c.State == CheckRejected || c.State == CheckVoided,
	}}
}

func (c Check) Describe(int64) string {
	return fmt.Sprintf("Check to %s", c.PayeeName)
}
