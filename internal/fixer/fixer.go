// Package fixer corrects derived data of canonical transactions that
// earlier runs got wrong or could not compute yet.
package fixer

import (
	"context"
	"fmt"
	"time"

	"github.com/ImShyMike/hcb/internal/canonical"
	"github.com/ImShyMike/hcb/internal/eventmap"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type Fixer struct {
	canonicalizer *canonical.Canonicalizer
	mapper        *eventmap.Mapper
}

func New(canonicalizer *canonical.Canonicalizer, mapper *eventmap.Mapper) *Fixer {
	return &Fixer{canonicalizer: canonicalizer, mapper: mapper}
}

type Result struct {
	Memos  int
	Mapped int
}

// Run fixes all canonical transactions dated in [from, to]. Running it
// again without new data changes nothing.
func (f *Fixer) Run(ctx context.Context, db *gorm.DB, from, to time.Time) (Result, error) {
	var res Result

	var cts []models.CanonicalTransaction
	err := db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, id ASC").
		Find(&cts).Error
	if err != nil {
		return res, err
	}

	for _, ct := range cts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		changed, err := f.FixMemo(db, ct)
		if err != nil {
			return res, fmt.Errorf("canonical transaction %d: %w", ct.ID, err)
		}
		if changed {
			res.Memos++
		}

		mapped, err := f.remap(db, ct)
		if err != nil {
			return res, fmt.Errorf("canonical transaction %d: %w", ct.ID, err)
		}
		if mapped {
			res.Mapped++
		}
	}

	log.Info().Int("memos", res.Memos).Int("mapped", res.Mapped).Msg("fixer")
	return res, nil
}

// FixMemo derives the friendly memo of ct again and stores it if it
// differs. The custom memo is left alone.
func (f *Fixer) FixMemo(db *gorm.DB, ct models.CanonicalTransaction) (bool, error) {
	raws, err := models.RawTransactionsFor(db, ct.ID)
	if err != nil {
		return false, err
	}

	raw := models.RawTransaction{Memo: ct.Memo}
	if len(raws) > 0 {
		raw = raws[0]
	}

	code, ok := ct.Code()
	friendly := f.canonicalizer.FriendlyMemo(db, raw, code, ok, ct.Amount)
	if ct.FriendlyMemo != nil && *ct.FriendlyMemo == friendly {
		return false, nil
	}

	err = db.Model(&models.CanonicalTransaction{}).Where("id = ?", ct.ID).Update("friendly_memo", friendly).Error
	return err == nil, err
}

func (f *Fixer) remap(db *gorm.DB, ct models.CanonicalTransaction) (bool, error) {
	var count int64
	if err := db.Model(&models.CanonicalEventMapping{}).Where("canonical_transaction_id = ?", ct.ID).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	o, err := f.mapper.Map(db, ct)
	return o == eventmap.Mapped, err
}
