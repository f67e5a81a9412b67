// Package eventmap attributes canonical and canonical pending transactions
// to events.
package eventmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/hcbcode"
	"github.com/ImShyMike/hcb/internal/lookup"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ryanuber/go-glob"
	"gorm.io/gorm"
)

// Outcome is what mapping did to a transaction.
type Outcome int

const (
	Mapped Outcome = iota
	Kept
	Conflict
	Unmapped
)

type Result struct {
	Mapped    int
	Kept      int
	Conflicts int
	Unmapped  int
}

func (r *Result) add(o Outcome) {
	switch o {
	case Mapped:
		r.Mapped++
	case Kept:
		r.Kept++
	case Conflict:
		r.Conflicts++
	case Unmapped:
		r.Unmapped++
	}
}

type Mapper struct {
	resolver *lookup.Resolver
	reporter *anomaly.Reporter
}

func New(resolver *lookup.Resolver, reporter *anomaly.Reporter) *Mapper {
	return &Mapper{resolver: resolver, reporter: reporter}
}

// problem is the reason a transaction could not be attributed.
type problem struct {
	kind   models.AnomalyKind
	detail string
}

func missing(format string, args ...any) *problem {
	return &problem{kind: models.AnomalyMissingEntity, detail: fmt.Sprintf(format, args...)}
}

// deterministic resolves the event from the entity the code references.
// ok is false for kinds without an entity.
func (m *Mapper) deterministic(db *gorm.DB, code hcbcode.Code, amount int64, raws []models.RawTransaction) (uint, *problem, bool) {
	switch code.Kind() {
	case hcbcode.Unknown:
		return 0, nil, false
	case hcbcode.CardCharge:
		id, p := cardEvent(db, code, raws)
		return id, p, true
	case hcbcode.Invoice, hcbcode.Donation, hcbcode.AchTransfer, hcbcode.Check, hcbcode.Disbursement, hcbcode.BankFee:
	}

	e, err := m.resolver.Entity(db, code)
	if errors.Is(err, models.ErrResourceNotFound) {
		return 0, missing("%s references a missing %s", code, code.Kind()), true
	}
	if err != nil {
		return 0, missing("%s could not be resolved: %v", code, err), true
	}

	return e.EventFor(amount), nil, true
}

// cardEvent is the event of the cardholder of a card charge, falling back
// to the event of the card.
func cardEvent(db *gorm.DB, code hcbcode.Code, raws []models.RawTransaction) (uint, *problem) {
	for _, raw := range raws {
		if id := raw.PayloadString("cardholder"); id != "" {
			var holder models.StripeCardholder
			if err := db.Where("stripe_id = ?", id).Limit(1).Find(&holder).Error; err == nil && holder.ID != 0 {
				return holder.EventID, nil
			}
		}

		if id := raw.PayloadString("card"); id != "" {
			var card models.StripeCard
			if err := db.Where("stripe_id = ?", id).Limit(1).Find(&card).Error; err == nil && card.ID != 0 {
				return card.EventID, nil
			}
		}
	}

	return 0, missing("%s has no known cardholder or card", code)
}

// heuristic matches the memo against the event memo rules. Only the rules
// of the best matching priority count and they must agree.
func heuristic(db *gorm.DB, memo string) (uint, *problem, error) {
	var rules []models.EventMemoRule
	if err := db.Order("priority ASC, id ASC").Find(&rules).Error; err != nil {
		return 0, nil, err
	}

	memo = strings.ToUpper(memo)

	var events []uint
	for i, rule := range rules {
		if len(events) > 0 && rule.Priority != rules[i-1].Priority {
			break
		}

		if glob.Glob(rule.Match, memo) && !contains(events, rule.EventID) {
			events = append(events, rule.EventID)
		}
	}

	switch len(events) {
	case 0:
		return 0, &problem{kind: models.AnomalyEventUnmapped, detail: fmt.Sprintf("no rule matches %q", memo)}, nil
	case 1:
		return events[0], nil, nil
	}

	return 0, &problem{kind: models.AnomalyEventAmbiguous, detail: fmt.Sprintf("rules for %d events match %q", len(events), memo)}, nil
}

func contains(ids []uint, id uint) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

// eventFor computes the event of a canonical transaction. A deterministic
// mapping wins over the event of the settled pending transaction, which
// wins over the memo rules. Memo rules only apply to feed transactions
// of unknown kind.
func (m *Mapper) eventFor(db *gorm.DB, ct models.CanonicalTransaction) (uint, *problem, error) {
	raws, err := models.RawTransactionsFor(db, ct.ID)
	if err != nil {
		return 0, nil, err
	}

	if code, ok := ct.Code(); ok {
		if id, p, ok := m.deterministic(db, code, ct.Amount, raws); ok {
			return id, p, nil
		}
	}

	var inherited models.CanonicalPendingEventMapping
	err = db.Joins("JOIN canonical_pending_settled_mappings ON canonical_pending_settled_mappings.canonical_pending_transaction_id = canonical_pending_event_mappings.canonical_pending_transaction_id").
		Where("canonical_pending_settled_mappings.canonical_transaction_id = ?", ct.ID).
		Limit(1).
		Find(&inherited).Error
	if err != nil {
		return 0, nil, err
	}
	if inherited.ID != 0 {
		return inherited.EventID, nil, nil
	}

	feed := false
	for _, raw := range raws {
		feed = feed || raw.Source.IsFeed()
	}
	if !feed {
		return 0, &problem{kind: models.AnomalyEventUnmapped, detail: "transaction has neither an entity nor a feed memo"}, nil
	}

	return heuristic(db, ct.Memo)
}

// Map attributes a canonical transaction to its event. Existing mappings
// are never changed, a different computed event is reported as a conflict.
func (m *Mapper) Map(db *gorm.DB, ct models.CanonicalTransaction) (Outcome, error) {
	eventID, p, err := m.eventFor(db, ct)
	if err != nil {
		return Unmapped, err
	}

	var existing models.CanonicalEventMapping
	if err := db.Where("canonical_transaction_id = ?", ct.ID).Limit(1).Find(&existing).Error; err != nil {
		return Unmapped, err
	}

	return m.apply(db, ct, existing.ID, existing.EventID, eventID, p, func() error {
		return db.Create(&models.CanonicalEventMapping{CanonicalTransactionID: ct.ID, EventID: eventID}).Error
	})
}

// MapPending attributes a pending transaction to the event of its entity.
func (m *Mapper) MapPending(db *gorm.DB, pt models.CanonicalPendingTransaction) (Outcome, error) {
	code, ok := pt.Code()
	if !ok {
		return Unmapped, nil
	}

	var raw models.RawTransaction
	if err := db.Unscoped().First(&raw, pt.RawTransactionID).Error; err != nil {
		return Unmapped, err
	}

	eventID, p, ok := m.deterministic(db, code, pt.Amount, []models.RawTransaction{raw})
	if !ok {
		return Unmapped, nil
	}

	var existing models.CanonicalPendingEventMapping
	if err := db.Where("canonical_pending_transaction_id = ?", pt.ID).Limit(1).Find(&existing).Error; err != nil {
		return Unmapped, err
	}

	return m.apply(db, pt, existing.ID, existing.EventID, eventID, p, func() error {
		return db.Create(&models.CanonicalPendingEventMapping{CanonicalPendingTransactionID: pt.ID, EventID: eventID}).Error
	})
}

func (m *Mapper) apply(db *gorm.DB, subject models.Commentable, existingID, existingEvent, eventID uint, p *problem, create func() error) (Outcome, error) {
	if existingID != 0 {
		if eventID != 0 && eventID != existingEvent {
			m.reporter.Report(db, models.AnomalyEventMappingConflict, subject, "mapped to event %d, computed event %d", existingEvent, eventID)
			return Conflict, nil
		}
		return Kept, nil
	}

	if eventID == 0 {
		if p != nil {
			m.reporter.Report(db, p.kind, subject, "%s", p.detail)
		}
		return Unmapped, nil
	}

	err := create()
	if errors.Is(err, models.ErrAlreadyMapped) {
		return Kept, nil
	}
	if err != nil {
		return Unmapped, err
	}

	return Mapped, nil
}

// Run maps all canonical and open or settled pending transactions dated in [from, to].
func (m *Mapper) Run(ctx context.Context, db *gorm.DB, from, to time.Time) (Result, Result, error) {
	var settled, pending Result

	var pts []models.CanonicalPendingTransaction
	err := db.WithContext(ctx).
		Where("state <> ? AND date >= ? AND date <= ?", models.PendingStateDeclined, from, to).
		Order("date ASC, id ASC").
		Find(&pts).Error
	if err != nil {
		return settled, pending, err
	}

	for _, pt := range pts {
		if err := ctx.Err(); err != nil {
			return settled, pending, err
		}

		o, err := m.MapPending(db, pt)
		if err != nil {
			return settled, pending, fmt.Errorf("pending transaction %d: %w", pt.ID, err)
		}
		pending.add(o)
	}

	var cts []models.CanonicalTransaction
	err = db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, id ASC").
		Find(&cts).Error
	if err != nil {
		return settled, pending, err
	}

	for _, ct := range cts {
		if err := ctx.Err(); err != nil {
			return settled, pending, err
		}

		o, err := m.Map(db, ct)
		if err != nil {
			return settled, pending, fmt.Errorf("canonical transaction %d: %w", ct.ID, err)
		}
		settled.add(o)
	}

	return settled, pending, nil
}
