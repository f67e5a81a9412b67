// Package linker settles and declines canonical pending transactions.
package linker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

type Linker struct {
	reporter *anomaly.Reporter

	// window is how far apart the dates of a pending transaction and the
	// canonical transaction settling it can be for proximity matches
	window time.Duration
}

func New(reporter *anomaly.Reporter, window time.Duration) *Linker {
	return &Linker{reporter: reporter, window: window}
}

type Result struct {
	Settled   int
	Declined  int
	Ambiguous int
}

// Outcome is what linking did to a pending transaction.
type Outcome int

const (
	Unchanged Outcome = iota
	Settled
	Declined
	Ambiguous
)

// unlinked excludes canonical transactions that already settle a pending transaction.
const unlinked = "NOT EXISTS (SELECT 1 FROM canonical_pending_settled_mappings m WHERE m.canonical_transaction_id = canonical_transactions.id)"

// Run links all open pending transactions dated up to to. Settled pending
// transactions in [from, to] whose record has been declined since are
// reported.
func (l *Linker) Run(ctx context.Context, db *gorm.DB, from, to time.Time) (Result, error) {
	var res Result

	var pendings []models.CanonicalPendingTransaction
	err := db.WithContext(ctx).
		Where("state = ? AND date <= ?", models.PendingStatePending, to).
		Order("date ASC, id ASC").
		Find(&pendings).Error
	if err != nil {
		return res, err
	}

	for _, p := range pendings {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		o, candidates, err := l.Link(db, p)
		switch {
		case errors.Is(err, models.ErrCanonicalAlreadyLinked), errors.Is(err, models.ErrPendingAlreadySettled), errors.Is(err, models.ErrPendingAlreadyDeclined):
			log.Warn().Err(err).Uint("pending", p.ID).Msg("pending transaction could not be linked")
			continue
		case err != nil:
			return res, fmt.Errorf("pending transaction %d: %w", p.ID, err)
		}

		switch o {
		case Settled:
			res.Settled++
		case Declined:
			res.Declined++
		case Ambiguous:
			res.Ambiguous++
			l.reporter.Report(db, models.AnomalyAmbiguousSettlement, p, "%d canonical transactions could settle pending transaction %d", candidates, p.ID)
		case Unchanged:
		}
	}

	if err := l.declinedAfterSettlement(db, from, to); err != nil {
		return res, err
	}

	return res, nil
}

// Link declines or settles a single pending transaction. For ambiguous
// proximity matches, the number of candidates is returned.
func (l *Linker) Link(db *gorm.DB, p models.CanonicalPendingTransaction) (Outcome, int, error) {
	o := Unchanged
	count := 0

	err := models.Atomic(db, func(tx *gorm.DB) error {
		var raw models.RawTransaction
		if err := tx.Unscoped().First(&raw, p.RawTransactionID).Error; err != nil {
			return err
		}

		if raw.Declined {
			if _, err := p.Decline(tx); err != nil {
				return err
			}
			o = Declined
			return nil
		}

		ct, n, err := l.match(tx, p, raw)
		if err != nil {
			return err
		}

		if n > 1 {
			o = Ambiguous
			count = n
			return nil
		}

		if ct.ID == 0 {
			return nil
		}

		if _, err := p.Settle(tx, ct); err != nil {
			return err
		}

		if code, ok := p.Code(); ok && ct.HcbCode == nil {
			if err := models.AssignHcbCode(tx, &ct, code); err != nil {
				return err
			}
		}

		o = Settled
		return nil
	})

	return o, count, err
}

// match finds the canonical transaction settling p. The record settling in
// place wins over code equality, which wins over proximity.
func (l *Linker) match(tx *gorm.DB, p models.CanonicalPendingTransaction, raw models.RawTransaction) (models.CanonicalTransaction, int, error) {
	if raw.Settled() {
		var ct models.CanonicalTransaction
		err := tx.Joins("JOIN canonical_hashed_mappings ON canonical_hashed_mappings.canonical_transaction_id = canonical_transactions.id").
			Joins("JOIN hashed_transactions ON hashed_transactions.id = canonical_hashed_mappings.hashed_transaction_id").
			Where("hashed_transactions.raw_transaction_id = ?", raw.ID).
			Where(unlinked).
			Limit(1).
			Find(&ct).Error
		if err != nil || ct.ID != 0 {
			return ct, 0, err
		}
	}

	code, ok := p.Code()
	if !ok {
		return models.CanonicalTransaction{}, 0, nil
	}

	// Both legs of a disbursement share a code, only the leg of the same
	// sign settles p
	var sameCode []models.CanonicalTransaction
	err := settling(tx.Where("hcb_code = ?", code.String()), p.Amount).Where(unlinked).Find(&sameCode).Error
	if err != nil {
		return models.CanonicalTransaction{}, 0, err
	}

	if len(sameCode) > 0 {
		slices.SortFunc(sameCode, func(a, b models.CanonicalTransaction) int {
			if ea, eb := a.Amount == p.Amount, b.Amount == p.Amount; ea != eb {
				if ea {
					return -1
				}
				return 1
			}

			if da, dbb := distance(a.Date, p.Date), distance(b.Date, p.Date); da != dbb {
				if da < dbb {
					return -1
				}
				return 1
			}

			return int(a.ID) - int(b.ID)
		})
		return sameCode[0], 1, nil
	}

	switch code.Kind() {
	case hcbcode.AchTransfer, hcbcode.Check:
		return l.proximity(tx, p)
	case hcbcode.Invoice, hcbcode.Donation, hcbcode.Disbursement, hcbcode.CardCharge, hcbcode.BankFee, hcbcode.Unknown:
	}

	return models.CanonicalTransaction{}, 0, nil
}

// proximity matches uncoded canonical transactions of the same sign that
// settle at most the pending amount within the window.
func (l *Linker) proximity(tx *gorm.DB, p models.CanonicalPendingTransaction) (models.CanonicalTransaction, int, error) {
	q := settling(tx.Where("hcb_code IS NULL AND date >= ? AND date <= ?", p.Date.Add(-l.window), p.Date.Add(l.window)), p.Amount).
		Where(unlinked)

	var candidates []models.CanonicalTransaction
	if err := q.Order("id ASC").Find(&candidates).Error; err != nil {
		return models.CanonicalTransaction{}, 0, err
	}

	switch len(candidates) {
	case 0:
		return models.CanonicalTransaction{}, 0, nil
	case 1:
		return candidates[0], 1, nil
	}

	return models.CanonicalTransaction{}, len(candidates), nil
}

// settling restricts q to canonical transactions of the sign of amount that
// settle at most amount.
func settling(q *gorm.DB, amount int64) *gorm.DB {
	if amount < 0 {
		return q.Where("amount < 0 AND amount >= ?", amount)
	}
	return q.Where("amount > 0 AND amount <= ?", amount)
}

func (l *Linker) declinedAfterSettlement(db *gorm.DB, from, to time.Time) error {
	var pendings []models.CanonicalPendingTransaction
	err := db.Joins("JOIN raw_transactions ON raw_transactions.id = canonical_pending_transactions.raw_transaction_id").
		Where("canonical_pending_transactions.state = ? AND raw_transactions.declined = ?", models.PendingStateSettled, true).
		Where("canonical_pending_transactions.date >= ? AND canonical_pending_transactions.date <= ?", from, to).
		Find(&pendings).Error
	if err != nil {
		return err
	}

	for _, p := range pendings {
		l.reporter.Report(db, models.AnomalyDeclinedAfterSettle, p, "pending transaction %d was declined after it settled", p.ID)
	}
	return nil
}

// StampUnknownCodes assigns HCB-000 codes to canonical transactions dated
// in [from, to] that did not get a code from their source or the linker.
func StampUnknownCodes(ctx context.Context, db *gorm.DB, from, to time.Time) (int, error) {
	var cts []models.CanonicalTransaction
	err := db.WithContext(ctx).
		Where("hcb_code IS NULL AND date >= ? AND date <= ?", from, to).
		Order("id ASC").
		Find(&cts).Error
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range cts {
		err := models.AssignHcbCode(db, &cts[i], hcbcode.ForEntity(hcbcode.Unknown, cts[i].ID))
		if errors.Is(err, models.ErrHcbCodeAssigned) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func distance(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
