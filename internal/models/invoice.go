package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/statemachine"
)

type InvoiceState string

const (
	InvoiceOpen InvoiceState = "open"
	InvoicePaid InvoiceState = "paid"
	InvoiceVoid InvoiceState = "void"
)

var InvoiceMachine = statemachine.New("invoice", InvoiceOpen, []statemachine.Transition[InvoiceState]{
	{Event: "mark_paid", From: []InvoiceState{InvoiceOpen}, To: InvoicePaid},
	{Event: "mark_void", From: []InvoiceState{InvoiceOpen}, To: InvoiceVoid},
}, InvoicePaid, InvoiceVoid)

// Invoice is sent to a sponsor, who pays it to the sponsor's event.
type Invoice struct {
	DefaultModel
	SponsorID uint         `json:"sponsorId"`
	Sponsor   Sponsor      `json:"-"`
	AmountDue int64        `json:"amountDue"`
	State     InvoiceState `json:"state" gorm:"default:open"`
	FeeWaived bool         `json:"feeWaived"`
}

func (i *Invoice) Transition(event string) (err error) {
	i.State, err = InvoiceMachine.Fire(i.State, event)
	return
}

func (i Invoice) EntityRef() EntityRef {
	return ref("invoice", i.ID)
}

func (i Invoice) Code() hcbcode.Code {
	return hcbcode.ForEntity(hcbcode.Invoice, i.ID)
}

func (i Invoice) EventFor(int64) uint {
	return i.Sponsor.EventID
}

func (i Invoice) Legs() []Leg {
	return []Leg{{
		NativeID:  strconv.FormatUint(uint64(i.ID), 10),
		Amount:    i.AmountDue,
		Date:      i.CreatedAt,
		Memo:      i.Describe(i.AmountDue),
		Declined:  i.State == InvoiceVoid,
		FeeWaived: i.FeeWaived,
	}}
}

func (i Invoice) Describe(int64) string {
	return fmt.Sprintf("Invoice to %s", strings.TrimSpace(i.Sponsor.Name))
}
