// Package subsystem turns the entities of the internal subsystems into
// pending raw records. Their settlement is reported by the bank feeds.
package subsystem

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/models"
	"gorm.io/gorm"
)

const pageSize = 200

// Sources lists all sources backed by local entities.
var Sources = []models.Source{
	models.SourceInvoice,
	models.SourceDonation,
	models.SourceAchTransfer,
	models.SourceCheck,
	models.SourceDisbursement,
	models.SourceBankFee,
}

type Provider struct {
	db     *gorm.DB
	source models.Source
}

func New(db *gorm.DB, source models.Source) *Provider {
	return &Provider{db: db, source: source}
}

func (p *Provider) Source() models.Source {
	return p.source
}

// ListTransactions ignores accountRef, the subsystems are not bound to accounts.
func (p *Provider) ListTransactions(ctx context.Context, _ string, from, to time.Time, cursor string) (feed.Page, error) {
	offset := 0
	if cursor != "" {
		var err error
		offset, err = strconv.Atoi(cursor)
		if err != nil {
			return feed.Page{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
	}

	q := p.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", feed.Day(from), feed.Day(to).AddDate(0, 0, 1)).
		Order("id ASC").
		Offset(offset).
		Limit(pageSize)

	entities, err := p.entities(q)
	if err != nil {
		return feed.Page{}, err
	}

	var page feed.Page
	for _, e := range entities {
		for _, leg := range e.Legs() {
			if !feed.Window(leg.Date, from, to) {
				continue
			}

			page.Records = append(page.Records, feed.Record{
				NativeID:   leg.NativeID,
				Amount:     leg.Amount,
				Date:       leg.Date,
				Memo:       leg.Memo,
				Pending:    true,
				Declined:   leg.Declined,
				FeeWaived:  leg.FeeWaived,
				LinkedCode: e.Code().String(),
				Payload:    map[string]any{"entity": e.EntityRef().String()},
			})
		}
	}

	if len(entities) == pageSize {
		page.NextCursor = strconv.Itoa(offset + pageSize)
	}

	return page, nil
}

func (p *Provider) entities(q *gorm.DB) ([]models.Entity, error) {
	switch p.source {
	case models.SourceInvoice:
		return find[models.Invoice](q.Preload("Sponsor"))
	case models.SourceDonation:
		return find[models.Donation](q)
	case models.SourceAchTransfer:
		return find[models.AchTransfer](q)
	case models.SourceCheck:
		return find[models.Check](q)
	case models.SourceDisbursement:
		return find[models.Disbursement](q.Preload("Event").Preload("SourceEvent"))
	case models.SourceBankFee:
		return find[models.BankFee](q)
	}

	return nil, fmt.Errorf("%s is not a subsystem source", p.source)
}

func find[T models.Entity](q *gorm.DB) ([]models.Entity, error) {
	var found []T
	if err := q.Find(&found).Error; err != nil {
		return nil, err
	}

	entities := make([]models.Entity, len(found))
	for i := range found {
		entities[i] = found[i]
	}
	return entities, nil
}
