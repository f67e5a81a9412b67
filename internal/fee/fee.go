// Package fee calculates the platform fee of transactions attributed to events.
package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/lookup"
	"github.com/ImShyMike/hcb/internal/memo"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Calculator struct {
	resolver *lookup.Resolver
}

func New(resolver *lookup.Resolver) *Calculator {
	return &Calculator{resolver: resolver}
}

type Result struct {
	Created    int
	Deferred   int
	Downgraded int
}

// Reason determines why a transaction is or is not charged. Reasons are
// checked from the highest precedence down.
func (c *Calculator) Reason(db *gorm.DB, ct models.CanonicalTransaction, code hcbcode.Code) (models.FeeReason, error) {
	if refunded, err := c.donationRefunded(db, code); err != nil || refunded {
		return models.FeeReasonDonationRefunded, err
	}

	waived, err := c.waived(db, ct, code)
	if err != nil || waived {
		return models.FeeReasonRevenueWaived, err
	}

	if memo.IsHackClubFee(ct.Memo) {
		return models.FeeReasonHackClubFee, nil
	}

	if ct.Amount > 0 {
		return models.FeeReasonRevenue, nil
	}

	return models.FeeReasonTBD, nil
}

func (c *Calculator) donationRefunded(db *gorm.DB, code hcbcode.Code) (bool, error) {
	if code.Kind() != hcbcode.Donation {
		return false, nil
	}

	e, err := c.resolver.Entity(db, code)
	if err != nil {
		return false, nil
	}

	d, ok := e.(interface{ Refunded() bool })
	return ok && d.Refunded(), nil
}

func (c *Calculator) waived(db *gorm.DB, ct models.CanonicalTransaction, code hcbcode.Code) (bool, error) {
	if memo.IsAccountVerification(ct.Memo, ct.Amount) {
		return true, nil
	}

	var siblings int64
	err := db.Model(&models.Fee{}).
		Joins("JOIN canonical_event_mappings ON canonical_event_mappings.id = fees.canonical_event_mapping_id").
		Joins("JOIN canonical_transactions ON canonical_transactions.id = canonical_event_mappings.canonical_transaction_id").
		Where("canonical_transactions.hcb_code = ? AND canonical_transactions.id <> ? AND fees.reason = ?", code.String(), ct.ID, models.FeeReasonRevenueWaived).
		Count(&siblings).Error
	if err != nil || siblings > 0 {
		return siblings > 0, err
	}

	err = db.Model(&models.CanonicalPendingTransaction{}).
		Where("hcb_code = ? AND fee_waived = ?", code.String(), true).
		Count(&siblings).Error
	if err != nil || siblings > 0 {
		return siblings > 0, err
	}

	if code.Kind() == hcbcode.AchTransfer {
		return true, nil
	}

	refund, err := cardRefund(db, ct, code)
	if err != nil || refund {
		return refund, err
	}

	return memo.IsCheckClearing(ct.Memo), nil
}

// cardRefund is true for money coming back from the card issuer. Refunds
// are marked as such by the issuer or share their code with the charge.
func cardRefund(db *gorm.DB, ct models.CanonicalTransaction, code hcbcode.Code) (bool, error) {
	if ct.Amount <= 0 {
		return false, nil
	}

	raws, err := models.RawTransactionsFor(db, ct.ID)
	if err != nil {
		return false, err
	}

	card := code.Kind() == hcbcode.CardCharge
	for _, raw := range raws {
		if !raw.Source.IsCardIssuer() {
			continue
		}
		card = true

		if raw.PayloadString("type") == "refund" {
			return true, nil
		}
	}

	if !card {
		return false, nil
	}

	var charges int64
	err = db.Model(&models.CanonicalTransaction{}).
		Where("hcb_code = ? AND id <> ? AND amount < 0", code.String(), ct.ID).
		Count(&charges).Error
	return charges > 0, err
}

// Calculate creates the fee of an event mapping. The calculation is
// deferred while the transaction has no HCB code, deferred is true then.
func (c *Calculator) Calculate(db *gorm.DB, mapping models.CanonicalEventMapping) (models.Fee, bool, error) {
	var fee models.Fee
	if err := db.Where("canonical_event_mapping_id = ?", mapping.ID).Limit(1).Find(&fee).Error; err != nil || fee.ID != 0 {
		return fee, false, err
	}

	var ct models.CanonicalTransaction
	if err := db.First(&ct, mapping.CanonicalTransactionID).Error; err != nil {
		return models.Fee{}, false, err
	}

	code, ok := ct.Code()
	if !ok {
		return models.Fee{}, true, nil
	}

	event, err := c.resolver.Event(db, mapping.EventID)
	if err != nil {
		return models.Fee{}, false, err
	}

	reason, err := c.Reason(db, ct, code)
	if err != nil {
		return models.Fee{}, false, err
	}

	amount := decimal.Zero
	if reason == models.FeeReasonRevenue {
		amount = decimal.NewFromInt(ct.Amount).Mul(event.SponsorshipFee)
	}

	fee = models.Fee{
		CanonicalEventMappingID: mapping.ID,
		Reason:                  reason,
		Amount:                  amount,
		EventSponsorshipFee:     event.SponsorshipFee,
	}
	err = db.Create(&fee).Error
	return fee, false, err
}

// Run calculates the fees of all event mappings of transactions dated in
// [from, to], oldest first. Afterwards, revenue sharing an HCB code with a
// waived fee is waived as well, so the result does not depend on the order.
func (c *Calculator) Run(ctx context.Context, db *gorm.DB, from, to time.Time) (Result, error) {
	var res Result

	var mappings []models.CanonicalEventMapping
	err := db.WithContext(ctx).
		Joins("JOIN canonical_transactions ON canonical_transactions.id = canonical_event_mappings.canonical_transaction_id").
		Where("canonical_transactions.date >= ? AND canonical_transactions.date <= ?", from, to).
		Where("NOT EXISTS (SELECT 1 FROM fees WHERE fees.canonical_event_mapping_id = canonical_event_mappings.id)").
		Order("canonical_transactions.date ASC, canonical_transactions.id ASC").
		Find(&mappings).Error
	if err != nil {
		return res, err
	}

	touched := make(map[string]struct{})
	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var fee models.Fee
		var deferred bool
		err := models.Atomic(db, func(tx *gorm.DB) (err error) {
			fee, deferred, err = c.Calculate(tx, m)
			return
		})
		if err != nil {
			return res, fmt.Errorf("event mapping %d: %w", m.ID, err)
		}

		if deferred {
			res.Deferred++
			continue
		}

		res.Created++
		if code, ok := c.codeOf(db, m); ok {
			touched[code] = struct{}{}
		}
		log.Debug().Uint("mapping", m.ID).Str("reason", string(fee.Reason)).Str("amount", fee.Amount.String()).Msg("fee")
	}

	for code := range touched {
		n, err := Consolidate(db, code)
		if err != nil {
			return res, fmt.Errorf("%s: %w", code, err)
		}
		res.Downgraded += n
	}

	return res, nil
}

func (c *Calculator) codeOf(db *gorm.DB, m models.CanonicalEventMapping) (string, bool) {
	var ct models.CanonicalTransaction
	if err := db.First(&ct, m.CanonicalTransactionID).Error; err != nil || ct.HcbCode == nil {
		return "", false
	}
	return *ct.HcbCode, true
}

// Consolidate waives the revenue fees of all transactions sharing code if
// any of them is waived. It returns the number of waived fees.
func Consolidate(db *gorm.DB, code string) (int, error) {
	count := 0

	err := models.Atomic(db, func(tx *gorm.DB) error {
		var fees []models.Fee
		err := tx.Joins("JOIN canonical_event_mappings ON canonical_event_mappings.id = fees.canonical_event_mapping_id").
			Joins("JOIN canonical_transactions ON canonical_transactions.id = canonical_event_mappings.canonical_transaction_id").
			Where("canonical_transactions.hcb_code = ?", code).
			Order("fees.id ASC").
			Find(&fees).Error
		if err != nil {
			return err
		}

		waived := false
		for _, f := range fees {
			waived = waived || f.Reason == models.FeeReasonRevenueWaived
		}
		if !waived {
			return nil
		}

		for i := range fees {
			if fees[i].Reason != models.FeeReasonRevenue {
				continue
			}

			fees[i].Reason = models.FeeReasonRevenueWaived
			fees[i].Amount = decimal.Zero
			if err := tx.Save(&fees[i]).Error; err != nil {
				return err
			}
			count++
		}
		return nil
	})

	return count, err
}
