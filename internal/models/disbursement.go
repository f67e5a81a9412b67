package models

import (
	"fmt"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/statemachine"
)

type DisbursementState string

const (
	DisbursementPending   DisbursementState = "pending"
	DisbursementInTransit DisbursementState = "in_transit"
	DisbursementDeposited DisbursementState = "deposited"
	DisbursementRejected  DisbursementState = "rejected"
)

var DisbursementMachine = statemachine.New("disbursement", DisbursementPending, []statemachine.Transition[DisbursementState]{
	{Event: "mark_in_transit", From: []DisbursementState{DisbursementPending}, To: DisbursementInTransit},
	{Event: "mark_deposited", From: []DisbursementState{DisbursementInTransit}, To: DisbursementDeposited},
	{Event: "mark_rejected", From: []DisbursementState{DisbursementPending}, To: DisbursementRejected},
}, DisbursementDeposited, DisbursementRejected)

// Disbursement moves money from SourceEvent to Event. Both legs share one HCB code.
type Disbursement struct {
	DefaultModel
	EventID       uint              `json:"eventId"`
	Event         Event             `json:"-"`
	SourceEventID uint              `json:"sourceEventId"`
	SourceEvent   Event             `json:"-"`
	Amount        int64             `json:"amount"`
	Name          string            `json:"name"`
	State         DisbursementState `json:"state" gorm:"default:pending"`
}

func (d *Disbursement) Transition(event string) (err error) {
	d.State, err = DisbursementMachine.Fire(d.State, event)
	return
}

func (d Disbursement) EntityRef() EntityRef {
	return ref("disbursement", d.ID)
}

func (d Disbursement) Code() hcbcode.Code {
	return hcbcode.ForEntity(hcbcode.Disbursement, d.ID)
}

// EventFor returns the receiving event for incoming money and the
// sending event for outgoing money.
func (d Disbursement) EventFor(amount int64) uint {
	if amount < 0 {
		return d.SourceEventID
	}
	return d.EventID
}

func (d Disbursement) Legs() []Leg {
	declined := d.State == DisbursementRejected

	return []Leg{
		{
			NativeID: fmt.Sprintf("%d:out", d.ID),
			Amount:   -d.Amount,
			Date:     d.CreatedAt,
			Memo:     d.Describe(-d.Amount),
			Declined: declined,
		},
		{
			NativeID: fmt.Sprintf("%d:in", d.ID),
			Amount:   d.Amount,
			Date:     d.CreatedAt,
			Memo:     d.Describe(d.Amount),
			Declined: declined,
		},
	}
}

func (d Disbursement) Describe(amount int64) string {
	if amount < 0 {
		return fmt.Sprintf("Transfer to %s", d.Event.Name)
	}
	return fmt.Sprintf("Transfer from %s", d.SourceEvent.Name)
}
