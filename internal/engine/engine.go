// Package engine runs the reconciliation pipeline stage by stage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/canonical"
	"github.com/ImShyMike/hcb/internal/config"
	"github.com/ImShyMike/hcb/internal/eventmap"
	"github.com/ImShyMike/hcb/internal/fee"
	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/feed/csvfeed"
	"github.com/ImShyMike/hcb/internal/feed/httpfeed"
	"github.com/ImShyMike/hcb/internal/feed/subsystem"
	"github.com/ImShyMike/hcb/internal/fixer"
	"github.com/ImShyMike/hcb/internal/hasher"
	"github.com/ImShyMike/hcb/internal/importer"
	"github.com/ImShyMike/hcb/internal/linker"
	"github.com/ImShyMike/hcb/internal/lookup"
	"github.com/ImShyMike/hcb/internal/metrics"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// SweepCheckpoint is the name of the checkpoint of full sweeps.
const SweepCheckpoint = "sweep"

// Engine runs the pipeline against one database.
type Engine struct {
	db        *gorm.DB
	cfg       config.Config
	providers []feed.Provider
	now       func() time.Time
}

// New creates an engine importing from providers. The subsystem sources
// are always imported.
func New(db *gorm.DB, cfg config.Config, providers ...feed.Provider) *Engine {
	return &Engine{
		db:        db,
		cfg:       cfg,
		providers: providers,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock, e.g. for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Providers builds the external feeds that are configured.
func Providers(cfg config.Config) []feed.Provider {
	var providers []feed.Provider

	if cfg.PlaidFeedURL != "" {
		providers = append(providers, httpfeed.New(models.SourcePlaid, cfg.PlaidFeedURL, cfg.PlaidFeedToken, nil))
	}

	if cfg.StripeFeedURL != "" {
		providers = append(providers, httpfeed.New(models.SourceStripe, cfg.StripeFeedURL, cfg.StripeFeedToken, nil))
	}

	if cfg.CSVImportDir != "" {
		providers = append(providers, csvfeed.New(cfg.CSVImportDir))
	}

	return providers
}

// Report is the outcome of a run.
type Report struct {
	RunID    string
	From, To time.Time

	Imports   []importer.Result
	Hashed    int
	Canonical canonical.Result
	Links     linker.Result
	Stamped   int
	Mapped    eventmap.Result
	Pending   eventmap.Result
	Fees      fee.Result
	Fixes     fixer.Result

	Anomalies map[models.AnomalyKind]int
}

// FailedImports returns the imports that failed.
func (r Report) FailedImports() []importer.Result {
	var failed []importer.Result
	for _, i := range r.Imports {
		if i.Err != nil {
			failed = append(failed, i)
		}
	}
	return failed
}

func (r Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("run", r.RunID).
		Time("from", r.From).
		Time("to", r.To).
		Int("imports", len(r.Imports)).
		Int("failed_imports", len(r.FailedImports())).
		Int("hashed", r.Hashed).
		Int("canonical_created", r.Canonical.Created).
		Int("canonical_grouped", r.Canonical.Grouped).
		Int("pending_created", r.Canonical.Pending).
		Int("settled", r.Links.Settled).
		Int("declined", r.Links.Declined).
		Int("mapped", r.Mapped.Mapped+r.Pending.Mapped).
		Int("unmapped", r.Mapped.Unmapped).
		Int("fees", r.Fees.Created).
		Int("fees_deferred", r.Fees.Deferred)

	total := 0
	for _, n := range r.Anomalies {
		total += n
	}
	e.Int("anomalies", total)
}

// run holds the per-run state of the stages.
type run struct {
	id       string
	logger   zerolog.Logger
	reporter *anomaly.Reporter
	resolver *lookup.Resolver
}

func (e *Engine) newRun() (*run, error) {
	id := uuid.New().String()

	resolver, err := lookup.New(e.cfg.LookupCacheSize)
	if err != nil {
		return nil, err
	}

	if e.cfg.MemoRulesFile != "" {
		if _, err := eventmap.LoadRulesFile(e.db, e.cfg.MemoRulesFile); err != nil {
			return nil, fmt.Errorf("memo rules: %w", err)
		}
	}

	return &run{
		id:       id,
		logger:   log.With().Str("run", id).Logger(),
		reporter: anomaly.NewReporter(id),
		resolver: resolver,
	}, nil
}

// stage runs fn and records its duration.
func (r *run) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		r.logger.Error().Err(err).Str("stage", name).Dur("duration", elapsed).Msg("stage failed")
		return fmt.Errorf("%s: %w", name, err)
	}

	r.logger.Info().Str("stage", name).Dur("duration", elapsed).Msg("stage finished")
	return nil
}

// jobs returns one import job per syncing bank account of every provider.
// Providers without accounts are imported once, unbound to an account.
func (e *Engine) jobs() ([]importer.Job, error) {
	var jobs []importer.Job

	for _, p := range e.providers {
		var accounts []models.BankAccount
		if err := e.db.Where("source = ? AND syncing = ?", p.Source(), true).Order("id ASC").Find(&accounts).Error; err != nil {
			return nil, err
		}

		if len(accounts) == 0 {
			jobs = append(jobs, importer.Job{Provider: p})
			continue
		}

		for i := range accounts {
			jobs = append(jobs, importer.Job{Provider: p, Account: &accounts[i]})
		}
	}

	for _, s := range subsystem.Sources {
		jobs = append(jobs, importer.Job{Provider: subsystem.New(e.db, s)})
	}

	return jobs, nil
}

// Nightly imports everything dated since start and runs all stages over
// [start, now].
func (e *Engine) Nightly(ctx context.Context, start time.Time) (Report, error) {
	r, err := e.newRun()
	if err != nil {
		return Report{}, err
	}

	report := Report{RunID: r.id, From: feed.Day(start), To: e.now()}
	r.logger.Info().Time("start", report.From).Msg("nightly run started")

	err = r.stage("import", func() error {
		jobs, err := e.jobs()
		if err != nil {
			return err
		}

		report.Imports = importer.New(e.db, r.reporter, e.cfg.Lookback()).
			WithClock(e.now).
			Run(ctx, jobs, start, e.cfg.ImportConcurrency)
		return ctx.Err()
	})
	if err != nil {
		return e.finish(r, report), err
	}

	err = e.process(ctx, r, &report)
	return e.finish(r, report), err
}

// process runs all stages after the import over the window of report.
func (e *Engine) process(ctx context.Context, r *run, report *Report) error {
	from, to := report.From, report.To

	canonicalizer := canonical.New(r.resolver, r.reporter)
	mapper := eventmap.New(r.resolver, r.reporter)

	stages := []struct {
		name string
		fn   func() error
	}{
		{"hash", func() (err error) {
			report.Hashed, err = hasher.Run(ctx, e.db, from, to)
			return
		}},
		{"canonicalize", func() (err error) {
			report.Canonical, err = canonicalizer.Run(ctx, e.db, from, to)
			return
		}},
		{"link", func() (err error) {
			report.Links, err = linker.New(r.reporter, e.cfg.PendingMatchWindow).Run(ctx, e.db, from, to)
			return
		}},
		{"stamp", func() (err error) {
			report.Stamped, err = linker.StampUnknownCodes(ctx, e.db, from, to)
			return
		}},
		{"map", func() (err error) {
			report.Mapped, report.Pending, err = mapper.Run(ctx, e.db, from, to)
			return
		}},
		{"fee", func() (err error) {
			report.Fees, err = fee.New(r.resolver).Run(ctx, e.db, from, to)
			return
		}},
		{"fix", func() (err error) {
			report.Fixes, err = fixer.New(canonicalizer, mapper).Run(ctx, e.db, from, to)
			return
		}},
	}

	for _, s := range stages {
		if err := r.stage(s.name, s.fn); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) finish(r *run, report Report) Report {
	report.Anomalies = r.reporter.Counts()
	r.logger.Info().EmbedObject(report).Msg("run finished")
	return report
}

// Sweep runs all stages after the import over everything dated since
// from, one window at a time. The last finished window is checkpointed, a
// restarted sweep continues after it. A finished sweep removes its
// checkpoint.
func (e *Engine) Sweep(ctx context.Context, from time.Time) ([]Report, error) {
	start := feed.Day(from)

	last, ok, err := models.LoadCheckpoint(e.db, SweepCheckpoint)
	if err != nil {
		return nil, err
	}
	if ok && !last.Before(start) {
		start = last.AddDate(0, 0, 1)
		log.Info().Time("checkpoint", last).Msg("resuming sweep")
	}

	today := feed.Day(e.now())
	days := e.cfg.SweepWindowDays

	var reports []Report
	for !start.After(today) {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		end := start.AddDate(0, 0, days-1)
		if end.After(today) {
			end = today
		}

		r, err := e.newRun()
		if err != nil {
			return reports, err
		}

		// The window includes all of its last day
		report := Report{RunID: r.id, From: start, To: end.Add(24*time.Hour - time.Nanosecond)}
		err = e.process(ctx, r, &report)
		reports = append(reports, e.finish(r, report))
		if err != nil {
			return reports, err
		}

		if err := models.SaveCheckpoint(e.db, SweepCheckpoint, end); err != nil {
			return reports, err
		}

		start = end.AddDate(0, 0, 1)
	}

	return reports, models.DeleteCheckpoint(e.db, SweepCheckpoint)
}

// Fix runs the mistake-fixer alone over [from, now].
func (e *Engine) Fix(ctx context.Context, from time.Time) (fixer.Result, error) {
	r, err := e.newRun()
	if err != nil {
		return fixer.Result{}, err
	}

	var res fixer.Result
	err = r.stage("fix", func() (err error) {
		f := fixer.New(canonical.New(r.resolver, r.reporter), eventmap.New(r.resolver, r.reporter))
		res, err = f.Run(ctx, e.db, feed.Day(from), e.now())
		return
	})
	return res, err
}

var ErrNukeNotConfirmed = errors.New("nuking must be confirmed")

// Nuke deletes everything the pipeline derived and all raw transactions.
// Entities, events and comments are kept.
func (e *Engine) Nuke(confirmed bool) error {
	if !confirmed {
		return ErrNukeNotConfirmed
	}

	// Dependents come first
	tables := []any{
		&models.Fee{},
		&models.CanonicalPendingEventMapping{},
		&models.CanonicalEventMapping{},
		&models.CanonicalPendingSettledMapping{},
		&models.CanonicalPendingDeclinedMapping{},
		&models.CanonicalPendingTransaction{},
		&models.CanonicalHashedMapping{},
		&models.CanonicalTransaction{},
		&models.HashedTransaction{},
		&models.RawTransaction{},
		&models.Anomaly{},
		&models.SyncCheckpoint{},
	}

	err := models.Atomic(e.db, func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Unscoped().Where("1 = 1").Delete(t).Error; err != nil {
				return fmt.Errorf("%T: %w", t, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Warn().Msg("all transactions have been deleted")
	return nil
}
