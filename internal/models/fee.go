package models

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrFeeExists  = errors.New("a fee has already been calculated for the event mapping")
	ErrFeeNotZero = errors.New("only revenue can have a fee amount other than zero")
)

type FeeReason string

const (
	FeeReasonRevenue          FeeReason = "REVENUE"
	FeeReasonRevenueWaived    FeeReason = "REVENUE_WAIVED"
	FeeReasonHackClubFee      FeeReason = "HACK_CLUB_FEE"
	FeeReasonDonationRefunded FeeReason = "DONATION_REFUNDED"
	FeeReasonTBD              FeeReason = "TBD"
)

// Waived is true for reasons that waive the fee of an otherwise charged transaction.
func (r FeeReason) Waived() bool {
	return r == FeeReasonRevenueWaived || r == FeeReasonDonationRefunded
}

// Fee is the platform's share of a transaction attributed to an event.
type Fee struct {
	DefaultModel
	CanonicalEventMappingID uint                  `json:"canonicalEventMappingId" gorm:"uniqueIndex:idx_fee_mapping"`
	CanonicalEventMapping   CanonicalEventMapping `json:"-"`
	Reason                  FeeReason             `json:"reason" gorm:"index"`

	// Amount is in cents. It is not rounded, rounding happens when fees are charged.
	Amount decimal.Decimal `json:"amount" gorm:"type:DECIMAL(20,8)"`

	// EventSponsorshipFee is the fee rate of the event at calculation time
	EventSponsorshipFee decimal.Decimal `json:"eventSponsorshipFee" gorm:"type:DECIMAL(20,8)"`
}

func (f *Fee) BeforeSave(_ *gorm.DB) error {
	if f.Reason != FeeReasonRevenue && !f.Amount.IsZero() {
		return ErrFeeNotZero
	}
	return nil
}
