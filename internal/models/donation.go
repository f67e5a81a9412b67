package models

import (
	"fmt"
	"strconv"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/statemachine"
)

type DonationState string

const (
	DonationPending   DonationState = "pending"
	DonationInTransit DonationState = "in_transit"
	DonationDeposited DonationState = "deposited"
	DonationFailed    DonationState = "failed"
	DonationRefunded  DonationState = "refunded"
)

var DonationMachine = statemachine.New("donation", DonationPending, []statemachine.Transition[DonationState]{
	{Event: "mark_in_transit", From: []DonationState{DonationPending}, To: DonationInTransit},
	{Event: "mark_deposited", From: []DonationState{DonationInTransit}, To: DonationDeposited},
	{Event: "mark_refunded", From: []DonationState{DonationDeposited}, To: DonationRefunded},
	{Event: "mark_failed", From: []DonationState{DonationPending, DonationInTransit}, To: DonationFailed},
}, DonationFailed, DonationRefunded)

type Donation struct {
	DefaultModel
	EventID uint          `json:"eventId"`
	Event   Event         `json:"-"`
	Amount  int64         `json:"amount"`
	Name    string        `json:"name"`
	State   DonationState `json:"state" gorm:"default:pending"`
}

func (d *Donation) Transition(event string) (err error) {
	d.State, err = DonationMachine.Fire(d.State, event)
	return
}

func (d Donation) Refunded() bool {
	return d.State == DonationRefunded
}

func (d Donation) EntityRef() EntityRef {
	return ref("donation", d.ID)
}

func (d Donation) Code() hcbcode.Code {
	return hcbcode.ForEntity(hcbcode.Donation, d.ID)
}

func (d Donation) EventFor(int64) uint {
	return d.EventID
}

func (d Donation) Legs() []Leg {
	return []Leg{{
		NativeID: strconv.FormatUint(uint64(d.ID), 10),
		Amount:   d.Amount,
		Date:     d.CreatedAt,
		Memo:     d.Describe(d.Amount),
		Declined: d.State == DonationFailed,
	}}
}

func (d Donation) Describe(int64) string {
	return fmt.Sprintf("Donation from %s", d.Name)
}
