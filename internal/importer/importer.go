package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/metrics"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrMissingCredentials = feed.ErrMissingCredentials
	ErrTooManyPages       = errors.New("the provider returned too many pages")
)

const maxPages = 10000

// Job is one source and account to import.
type Job struct {
	Provider feed.Provider

	// Account is nil for sources that are not bound to bank accounts
	Account *models.BankAccount
}

func (j Job) accountRef() string {
	if j.Account == nil {
		return ""
	}
	return j.Account.AccountRef
}

func (j Job) String() string {
	if j.Account == nil {
		return string(j.Provider.Source())
	}
	return fmt.Sprintf("%s:%s", j.Provider.Source(), j.Account.AccountRef)
}

type Result struct {
	Source      models.Source
	AccountRef  string
	Upserted    int
	Restored    int
	SoftDeleted int
	Invalid     int
	Err         error
}

type Importer struct {
	db       *gorm.DB
	reporter *anomaly.Reporter
	lookback time.Duration
	now      func() time.Time
}

// New creates an importer. Raw transactions that have not been seen for
// lookback are soft deleted.
func New(db *gorm.DB, reporter *anomaly.Reporter, lookback time.Duration) *Importer {
	return &Importer{
		db:       db,
		reporter: reporter,
		lookback: lookback,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock, e.g. for tests.
func (i *Importer) WithClock(now func() time.Time) *Importer {
	i.now = now
	return i
}

// Run imports all jobs in parallel, at most concurrency at a time. A failing
// job does not stop the others, its error is part of its result.
func (i *Importer) Run(ctx context.Context, jobs []Job, start time.Time, concurrency int) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for n, job := range jobs {
		g.Go(func() error {
			res, err := i.Import(ctx, job, start)
			if err != nil {
				res.Err = err
				metrics.ImportFailures.WithLabelValues(string(job.Provider.Source())).Inc()
				log.Error().Err(err).Str("job", job.String()).Msg("import failed")
			}

			results[n] = res
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Import fetches all records of the job dated between start and now and
// upserts them. The window is extended by the lookback before start, a record
// dated start is still fetched after it went unseen for the lookback.
func (i *Importer) Import(ctx context.Context, job Job, start time.Time) (Result, error) {
	source := job.Provider.Source()
	res := Result{Source: source, AccountRef: job.accountRef()}
	now := i.now()
	start = start.Add(-i.lookback)

	records, err := fetch(ctx, job.Provider, job.accountRef(), start, now)
	if err != nil {
		return res, err
	}

	valid := make([]feed.Record, 0, len(records))
	for _, r := range records {
		if err := feed.Validate(r); err != nil {
			res.Invalid++
			i.reporter.Report(i.db, models.AnomalyInvalidRecord, models.EntityRef{Type: "feed_record", ID: fmt.Sprintf("%s:%s", source, r.NativeID)}, "%v", err)
			continue
		}
		valid = append(valid, r)
	}

	var changed []models.RawTransaction
	err = models.Atomic(i.db.WithContext(ctx), func(tx *gorm.DB) error {
		for _, r := range valid {
			raw, outcome, err := upsert(tx, job, r, now)
			if err != nil {
				return fmt.Errorf("record %q: %w", r.NativeID, err)
			}

			res.Upserted++
			switch outcome {
			case restored:
				res.Restored++
			case immutableChanged:
				changed = append(changed, raw)
			}
		}

		deleted, err := i.softDelete(tx, job, start, now)
		res.SoftDeleted = deleted
		return err
	})
	if err != nil {
		return res, err
	}

	for _, raw := range changed {
		i.reporter.Report(i.db, models.AnomalyImmutableChanged, raw, "%s reported a new amount or date for settled transaction %q", source, raw.NativeID)
	}

	metrics.ImportedRecords.WithLabelValues(string(source)).Add(float64(res.Upserted))
	log.Info().Str("job", job.String()).Int("upserted", res.Upserted).Int("restored", res.Restored).Int("softDeleted", res.SoftDeleted).Int("invalid", res.Invalid).Msg("import")

	return res, nil
}

func fetch(ctx context.Context, p feed.Provider, accountRef string, from, to time.Time) ([]feed.Record, error) {
	var records []feed.Record
	cursor := ""

	for range maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := p.ListTransactions(ctx, accountRef, from, to, cursor)
		if err != nil {
			return nil, err
		}

		records = append(records, page.Records...)
		if page.NextCursor == "" {
			return records, nil
		}
		cursor = page.NextCursor
	}

	return nil, ErrTooManyPages
}

type outcome int

const (
	created outcome = iota
	updated
	restored
	immutableChanged
)

// upsert stores a record. Amount and date of settled raw transactions are
// never changed.
func upsert(tx *gorm.DB, job Job, r feed.Record, now time.Time) (models.RawTransaction, outcome, error) {
	var payload datatypes.JSON
	if len(r.Payload) > 0 {
		b, err := json.Marshal(r.Payload)
		if err != nil {
			return models.RawTransaction{}, created, err
		}
		payload = b
	}

	var linked *string
	if r.LinkedCode != "" {
		linked = &r.LinkedCode
	}

	var accountID *uint
	if job.Account != nil {
		accountID = &job.Account.ID
	}

	var existing models.RawTransaction
	err := tx.Unscoped().
		Where("source = ? AND native_id = ?", job.Provider.Source(), r.NativeID).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return models.RawTransaction{}, created, err
	}

	if existing.ID == 0 {
		raw := models.RawTransaction{
			Source:        job.Provider.Source(),
			NativeID:      r.NativeID,
			BankAccountID: accountID,
			Amount:        r.Amount,
			Date:          r.Date,
			Memo:          r.Memo,
			Pending:       r.Pending,
			Declined:      r.Declined,
			FeeWaived:     r.FeeWaived,
			LinkedCode:    linked,
			Payload:       payload,
			LastSeenAt:    now,
		}
		err := tx.Create(&raw).Error
		return raw, created, err
	}

	updates := map[string]any{
		"memo":            strings.TrimSpace(r.Memo),
		"payload":         payload,
		"declined":        r.Declined,
		"fee_waived":      r.FeeWaived,
		"linked_code":     linked,
		"bank_account_id": accountID,
		"last_seen_at":    now,
		"deleted_at":      nil,
	}

	result := updated
	if existing.Pending {
		updates["pending"] = r.Pending
		updates["amount"] = r.Amount
		updates["date"] = feed.Day(r.Date)
	} else if existing.Amount != r.Amount || !feed.Day(existing.Date).Equal(feed.Day(r.Date)) {
		result = immutableChanged
	}

	if existing.DeletedAt.Valid {
		result = restored
	}

	err = tx.Unscoped().Model(&existing).Updates(updates).Error
	return existing, result, err
}

// softDelete soft deletes raw transactions of the job in the window that
// have not been seen for the lookback window.
func (i *Importer) softDelete(tx *gorm.DB, job Job, start, now time.Time) (int, error) {
	q := tx.Where("source = ? AND date >= ? AND date <= ? AND last_seen_at < ?", job.Provider.Source(), feed.Day(start), now, now.Add(-i.lookback))
	if job.Account != nil {
		q = q.Where("bank_account_id = ?", job.Account.ID)
	} else {
		q = q.Where("bank_account_id IS NULL")
	}

	result := q.Delete(&models.RawTransaction{})
	return int(result.RowsAffected), result.Error
}
