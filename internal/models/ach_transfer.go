package models

import (
	"fmt"
	"strconv"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/statemachine"
)

type AchTransferState string

const (
	AchTransferPending   AchTransferState = "pending"
	AchTransferInTransit AchTransferState = "in_transit"
	AchTransferRejected  AchTransferState = "rejected"
	AchTransferFailed    AchTransferState = "failed"
	AchTransferDeposited AchTransferState = "deposited"
)

var AchTransferMachine = statemachine.New("ach_transfer", AchTransferPending, []statemachine.Transition[AchTransferState]{
	{Event: "mark_in_transit", From: []AchTransferState{AchTransferPending, AchTransferDeposited}, To: AchTransferInTransit},
	{Event: "mark_rejected", From: []AchTransferState{AchTransferPending}, To: AchTransferRejected},
	{Event: "mark_failed", From: []AchTransferState{AchTransferInTransit}, To: AchTransferFailed},
	{Event: "mark_deposited", From: []AchTransferState{AchTransferInTransit}, To: AchTransferDeposited},
}, AchTransferRejected, AchTransferFailed)

// AchTransfer is an outgoing ACH transfer from an event.
type AchTransfer struct {
	DefaultModel
	EventID       uint             `json:"eventId"`
	Event         Event            `json:"-"`
	Amount        int64            `json:"amount"` // positive, leaves the event
	RecipientName string           `json:"recipientName"`
	State         AchTransferState `json:"state" gorm:"default:pending"`
}

func (a *AchTransfer) Transition(event string) (err error) {
	a.State, err = AchTransferMachine.Fire(a.State, event)
	return
}

func (a AchTransfer) EntityRef() EntityRef {
	return ref("ach_transfer", a.ID)
}

func (a AchTransfer) Code() hcbcode.Code {
	return hcbcode.ForEntity(hcbcode.AchTransfer, a.ID)
}

func (a AchTransfer) EventFor(int64) uint {
	return a.EventID
}

func (a AchTransfer) Legs() []Leg {
	return []Leg{{
		NativeID: strconv.FormatUint(uint64(a.ID), 10),
		Amount:   -a.Amount,
		Date:     a.CreatedAt,
		Memo:     a.Describe(-a.Amount),
		Declined: a.State == AchTransferRejected,
	}}
}

func (a AchTransfer) Describe(int64) string {
	return fmt.Sprintf("ACH to %s", a.RecipientName)
}
