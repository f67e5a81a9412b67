// Package canonical merges hashed transactions into canonical transactions
// and creates the canonical pending transactions of pending records.
package canonical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/lookup"
	"github.com/ImShyMike/hcb/internal/memo"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const batchSize = 500

type Canonicalizer struct {
	resolver *lookup.Resolver
	reporter *anomaly.Reporter
}

func New(resolver *lookup.Resolver, reporter *anomaly.Reporter) *Canonicalizer {
	return &Canonicalizer{resolver: resolver, reporter: reporter}
}

// Result counts what a run did.
type Result struct {
	Created int
	Grouped int
	Pending int
	Skipped int
}

// CodeFor returns the HCB code of a raw transaction, if it can be known
// before linking.
//
// Records of local entities carry their code. Card issuer records are keyed
// by their authorization. A code in the memo is only honoured if the entity
// it references exists.
func (c *Canonicalizer) CodeFor(db *gorm.DB, raw models.RawTransaction) (hcbcode.Code, bool) {
	if code, ok := raw.Linked(); ok {
		return code, true
	}

	if raw.Source.IsCardIssuer() {
		id := raw.PayloadString("authorization")
		if id == "" {
			id = raw.NativeID
		}

		code, err := hcbcode.Parse(hcbcode.New(hcbcode.CardCharge, id).String())
		if err == nil {
			return code, true
		}
		return hcbcode.Code{}, false
	}

	code, ok := hcbcode.Find(raw.Memo)
	if !ok {
		return hcbcode.Code{}, false
	}

	if _, err := c.resolver.Entity(db, code); err != nil {
		return hcbcode.Code{}, false
	}
	return code, true
}

// FriendlyMemo derives the memo shown to users for a transaction of raw.
func (c *Canonicalizer) FriendlyMemo(db *gorm.DB, raw models.RawTransaction, code hcbcode.Code, hasCode bool, amount int64) string {
	in := memo.Input{
		Memo:     raw.Memo,
		Amount:   amount,
		Kind:     hcbcode.Unknown,
		Merchant: raw.PayloadString("merchant"),
	}

	if hasCode {
		in.Kind = code.Kind()
		if e, err := c.resolver.Entity(db, code); err == nil {
			in.Entity = e
		}
	}

	return memo.Friendly(in)
}

// Canonize returns the canonical transaction of a settled hashed
// transaction, creating or joining one if the hashed transaction is not
// mapped yet.
//
// A hashed transaction joins an existing canonical transaction when one of
// its members reports the same movement of money from another source and it
// has no member from the source of the hashed transaction.
func (c *Canonicalizer) Canonize(db *gorm.DB, hashed models.HashedTransaction) (models.CanonicalTransaction, error) {
	ct, _, err := c.canonize(db, hashed)
	return ct, err
}

type outcome int

const (
	existing outcome = iota
	created
	grouped
)

func (c *Canonicalizer) canonize(db *gorm.DB, hashed models.HashedTransaction) (models.CanonicalTransaction, outcome, error) {
	var ct models.CanonicalTransaction
	result := existing

	err := models.Atomic(db, func(tx *gorm.DB) error {
		found, err := mapped(tx, hashed.ID)
		if err != nil || found.ID != 0 {
			ct = found
			return err
		}

		var raw models.RawTransaction
		if err := tx.Unscoped().First(&raw, hashed.RawTransactionID).Error; err != nil {
			return err
		}
		code, hasCode := c.CodeFor(tx, raw)

		ct, err = groupFor(tx, hashed)
		if err != nil {
			return err
		}

		if ct.ID != 0 {
			result = grouped
			if hasCode && ct.HcbCode == nil {
				if err := models.AssignHcbCode(tx, &ct, code); err != nil {
					return err
				}
			}
		} else {
			result = created
			ct = models.CanonicalTransaction{
				Amount: hashed.Amount,
				Date:   hashed.Date,
				Memo:   raw.Memo,
			}

			friendly := c.FriendlyMemo(tx, raw, code, hasCode, hashed.Amount)
			ct.FriendlyMemo = &friendly

			if hasCode {
				s := code.String()
				ct.HcbCode = &s
			}

			if err := tx.Create(&ct).Error; err != nil {
				return err
			}
		}

		return tx.Create(&models.CanonicalHashedMapping{
			CanonicalTransactionID: ct.ID,
			HashedTransactionID:    hashed.ID,
		}).Error
	})

	return ct, result, err
}

func mapped(tx *gorm.DB, hashedID uint) (models.CanonicalTransaction, error) {
	var ct models.CanonicalTransaction
	err := tx.Joins("JOIN canonical_hashed_mappings ON canonical_hashed_mappings.canonical_transaction_id = canonical_transactions.id").
		Where("canonical_hashed_mappings.hashed_transaction_id = ?", hashedID).
		Limit(1).
		Find(&ct).Error
	return ct, err
}

// groupFor finds the canonical transaction a hashed transaction joins.
func groupFor(tx *gorm.DB, hashed models.HashedTransaction) (models.CanonicalTransaction, error) {
	var candidates []uint
	err := tx.Model(&models.CanonicalHashedMapping{}).
		Distinct("canonical_hashed_mappings.canonical_transaction_id").
		Joins("JOIN hashed_transactions ON hashed_transactions.id = canonical_hashed_mappings.hashed_transaction_id").
		Where("hashed_transactions.unique_bank_identifier = ? AND hashed_transactions.primary_hash = ? AND hashed_transactions.source <> ?", hashed.UniqueBankIdentifier, hashed.PrimaryHash, hashed.Source).
		Order("canonical_hashed_mappings.canonical_transaction_id ASC").
		Pluck("canonical_hashed_mappings.canonical_transaction_id", &candidates).Error
	if err != nil {
		return models.CanonicalTransaction{}, err
	}

	for _, id := range candidates {
		var sameSource int64
		err := tx.Model(&models.CanonicalHashedMapping{}).
			Joins("JOIN hashed_transactions ON hashed_transactions.id = canonical_hashed_mappings.hashed_transaction_id").
			Where("canonical_hashed_mappings.canonical_transaction_id = ? AND hashed_transactions.source = ?", id, hashed.Source).
			Count(&sameSource).Error
		if err != nil {
			return models.CanonicalTransaction{}, err
		}

		if sameSource > 0 {
			continue
		}

		var ct models.CanonicalTransaction
		if err := tx.First(&ct, id).Error; err != nil {
			return models.CanonicalTransaction{}, err
		}
		return ct, nil
	}

	return models.CanonicalTransaction{}, nil
}

// ImportPending returns the canonical pending transaction of a raw
// transaction, creating it if there is none.
func (c *Canonicalizer) ImportPending(db *gorm.DB, raw models.RawTransaction) (models.CanonicalPendingTransaction, bool, error) {
	var p models.CanonicalPendingTransaction
	isNew := false

	err := models.Atomic(db, func(tx *gorm.DB) error {
		err := tx.Where("raw_transaction_id = ?", raw.ID).Limit(1).Find(&p).Error
		if err != nil || p.ID != 0 {
			return err
		}

		p = models.CanonicalPendingTransaction{
			RawTransactionID: raw.ID,
			Amount:           raw.Amount,
			Date:             raw.Date,
			Memo:             raw.Memo,
			FeeWaived:        raw.FeeWaived,
		}

		if code, ok := c.CodeFor(tx, raw); ok {
			s := code.String()
			p.HcbCode = &s
		}

		isNew = true
		return tx.Create(&p).Error
	})

	return p, isNew, err
}

// Run canonizes all raw transactions dated in [from, to]. Records with a
// missing or duplicated hashed transaction are reported and skipped.
func (c *Canonicalizer) Run(ctx context.Context, db *gorm.DB, from, to time.Time) (Result, error) {
	var res Result

	var batch []models.RawTransaction
	result := db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, id ASC").
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for _, raw := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}

				if err := c.process(db, raw, &res); err != nil {
					res.Skipped++
					log.Error().Err(err).Uint("raw", raw.ID).Msg("raw transaction could not be canonized")
				}
			}
			return nil
		})

	return res, result.Error
}

func (c *Canonicalizer) process(db *gorm.DB, raw models.RawTransaction, res *Result) error {
	hashed, err := models.HashedTransactionsForRaw(db, raw.ID)
	if err != nil {
		return err
	}

	switch {
	case len(hashed) == 0:
		res.Skipped++
		c.reporter.Report(db, models.AnomalyMissingHashed, raw, "raw transaction %s:%s has no hashed transaction", raw.Source, raw.NativeID)
		return nil
	case len(hashed) > 1:
		res.Skipped++
		c.reporter.Report(db, models.AnomalyDuplicateHashed, raw, "raw transaction %s:%s has %d hashed transactions", raw.Source, raw.NativeID, len(hashed))
		return nil
	}

	if hashed[0].Pending || raw.Declined {
		_, isNew, err := c.ImportPending(db, raw)
		if err != nil && !errors.Is(err, models.ErrPendingExists) {
			return fmt.Errorf("pending: %w", err)
		}
		if isNew {
			res.Pending++
		}
		return nil
	}

	_, result, err := c.canonize(db, hashed[0])
	if err != nil {
		return fmt.Errorf("canonize: %w", err)
	}

	switch result {
	case created:
		res.Created++
	case grouped:
		res.Grouped++
	case existing:
	}
	return nil
}
