package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ImShyMike/hcb/internal/config"
	"github.com/ImShyMike/hcb/internal/engine"
	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/feed/memfeed"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/test"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	start = test.Date(2024, 3, 1)
	now   = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
)

var cfg = config.Config{
	LookbackDays:       30,
	SweepWindowDays:    15,
	PendingMatchWindow: 240 * time.Hour,
	ImportConcurrency:  2,
	LookupCacheSize:    64,
}

func newEngine(db *gorm.DB, providers ...feed.Provider) *engine.Engine {
	return engine.New(db, cfg, providers...).WithClock(func() time.Time { return now })
}

func nightly(t *testing.T, e *engine.Engine) engine.Report {
	report, err := e.Nightly(context.Background(), start)
	require.Nil(t, err)
	require.Empty(t, report.FailedImports())
	return report
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	var n int64
	require.Nil(t, db.Model(model).Count(&n).Error)
	return n
}

func pendingFor(t *testing.T, db *gorm.DB, source models.Source, nativeID string) models.CanonicalPendingTransaction {
	var p models.CanonicalPendingTransaction
	err := db.Joins("JOIN raw_transactions ON raw_transactions.id = canonical_pending_transactions.raw_transaction_id").
		Where("raw_transactions.source = ? AND raw_transactions.native_id = ?", source, nativeID).
		First(&p).Error
	require.Nil(t, err)
	return p
}

// An ACH transfer is pending until the bank reports it with its code. A card
// authorization that never clears stays pending.
func TestNightlySettlesByCode(t *testing.T) {
	db := test.Connect(t)
	event := test.CreateEvent(t, db, "Robotics", "0.07")
	test.CreateBankAccount(t, db, models.SourcePlaid, "acc_1", "UBI-1")

	ach := models.AchTransfer{EventID: event.ID, Amount: 1000, RecipientName: "Parts Inc"}
	ach.ID = 55
	ach.CreatedAt = test.Date(2024, 3, 5)
	require.Nil(t, db.Create(&ach).Error)

	unmatched := feed.Record{NativeID: "p_123", Amount: -1500, Date: test.Date(2024, 3, 6), Memo: "CARD HOLD", Pending: true}

	plaid := memfeed.New(models.SourcePlaid).AddPage("acc_1", unmatched)
	e := newEngine(db, plaid)

	report := nightly(t, e)
	assert.Equal(t, 2, report.Canonical.Pending)
	assert.Equal(t, int64(0), count(t, db, &models.CanonicalTransaction{}))

	plaid.Reset("acc_1")
	plaid.AddPage("acc_1", unmatched, feed.Record{
		NativeID: "ach_1",
		Amount:   -1000,
		Date:     test.Date(2024, 3, 7),
		Memo:     "ACH DEBIT PARTS INC HCB-300-55",
	})

	report = nightly(t, e)
	assert.Equal(t, 1, report.Canonical.Created)
	assert.Equal(t, 1, report.Links.Settled)

	var ct models.CanonicalTransaction
	require.Nil(t, db.First(&ct).Error)
	assert.Equal(t, "HCB-300-55", *ct.HcbCode)

	assert.Equal(t, int64(1), count(t, db, &models.CanonicalPendingSettledMapping{}))
	assert.Equal(t, models.PendingStateSettled, pendingFor(t, db, models.SourceAchTransfer, "55").State)
	assert.Equal(t, models.PendingStatePending, pendingFor(t, db, models.SourcePlaid, "p_123").State)

	var m models.CanonicalEventMapping
	require.Nil(t, db.Where("canonical_transaction_id = ?", ct.ID).First(&m).Error)
	assert.Equal(t, event.ID, m.EventID)

	var f models.Fee
	require.Nil(t, db.Where("canonical_event_mapping_id = ?", m.ID).First(&f).Error)
	assert.Equal(t, models.FeeReasonRevenueWaived, f.Reason)

	// Nothing changes on a rerun
	report = nightly(t, e)
	assert.Equal(t, 0, report.Canonical.Created)
	assert.Equal(t, 0, report.Links.Settled)
	assert.Equal(t, 0, report.Fees.Created)
	assert.Equal(t, int64(1), count(t, db, &models.CanonicalTransaction{}))
}

func TestNightlyCardRevenue(t *testing.T) {
	db := test.Connect(t)
	event := test.CreateEvent(t, db, "Robotics", "0.07")
	require.Nil(t, db.Create(&models.StripeCardholder{StripeID: "ich_1", EventID: event.ID, Name: "Ada"}).Error)

	stripe := memfeed.New(models.SourceStripe).AddPage("", feed.Record{
		NativeID: "ipi_1",
		Amount:   5000,
		Date:     test.Date(2024, 3, 10),
		Memo:     "MERCH SALE",
		Payload:  map[string]any{"authorization": "iauth_1", "cardholder": "ich_1"},
	})

	nightly(t, newEngine(db, stripe))

	var f models.Fee
	require.Nil(t, db.First(&f).Error)
	assert.Equal(t, models.FeeReasonRevenue, f.Reason)
	assert.True(t, f.Amount.Equal(decimal.NewFromInt(350)), "fee is %s", f.Amount)

	balance, err := models.AvailableBalance(db, event.ID)
	require.Nil(t, err)
	assert.Equal(t, int64(4650), balance)
}

func TestNightlySkipsDuplicateHashed(t *testing.T) {
	db := test.Connect(t)

	raw := test.CreateRaw(t, db, models.RawTransaction{
		Source:   models.SourceCSV,
		NativeID: "row_1",
		Amount:   -700,
		Date:     test.Date(2024, 3, 10),
		Memo:     "HARDWARE STORE",
	})
	for range 2 {
		require.Nil(t, db.Create(&models.HashedTransaction{RawTransactionID: raw.ID, Source: raw.Source, Date: raw.Date, Amount: raw.Amount}).Error)
	}

	report := nightly(t, newEngine(db))
	assert.Equal(t, 1, report.Anomalies[models.AnomalyDuplicateHashed])
	assert.Equal(t, int64(0), count(t, db, &models.CanonicalTransaction{}))

	var a models.Anomaly
	require.Nil(t, db.Where("kind = ?", models.AnomalyDuplicateHashed).First(&a).Error)
	assert.Equal(t, raw.EntityRef().String(), a.Subject)
	assert.Equal(t, report.RunID, a.RunID)
}

// Both legs of a disbursement map to the events of the disbursement, even
// though a memo rule would map them to another event.
func TestNightlyDisbursement(t *testing.T) {
	db := test.Connect(t)
	robotics := test.CreateEvent(t, db, "Robotics", "0.07")
	art := test.CreateEvent(t, db, "Art", "0.07")
	other := test.CreateEvent(t, db, "Other", "0.07")
	test.CreateBankAccount(t, db, models.SourcePlaid, "acc_1", "UBI-1")

	require.Nil(t, db.Create(&models.EventMemoRule{Priority: 1, Match: "*HCB DISBURSE*", EventID: other.ID}).Error)

	d := models.Disbursement{SourceEventID: robotics.ID, EventID: art.ID, Amount: 2000, Name: "Supplies"}
	d.CreatedAt = test.Date(2024, 3, 5)
	require.Nil(t, db.Create(&d).Error)

	memo := "HCB DISBURSE " + d.Code().String()
	plaid := memfeed.New(models.SourcePlaid).AddPage("acc_1",
		feed.Record{NativeID: "out", Amount: -2000, Date: test.Date(2024, 3, 6), Memo: memo},
		feed.Record{NativeID: "in", Amount: 2000, Date: test.Date(2024, 3, 6), Memo: memo},
	)

	report := nightly(t, newEngine(db, plaid))
	assert.Equal(t, 2, report.Links.Settled)

	var mappings []models.CanonicalEventMapping
	require.Nil(t, db.Preload("CanonicalTransaction").Order("id ASC").Find(&mappings).Error)
	require.Len(t, mappings, 2)

	for _, m := range mappings {
		if m.CanonicalTransaction.Amount < 0 {
			assert.Equal(t, robotics.ID, m.EventID)
		} else {
			assert.Equal(t, art.ID, m.EventID)
		}
	}
}

// The incoming leg of a disbursement clearing first does not settle the
// outgoing one, the source event keeps the hold on its balance.
func TestNightlyDisbursementOneLegCleared(t *testing.T) {
	db := test.Connect(t)
	robotics := test.CreateEvent(t, db, "Robotics", "0.07")
	art := test.CreateEvent(t, db, "Art", "0.07")
	test.CreateBankAccount(t, db, models.SourcePlaid, "acc_1", "UBI-1")

	d := models.Disbursement{SourceEventID: robotics.ID, EventID: art.ID, Amount: 2000, Name: "Supplies"}
	d.CreatedAt = test.Date(2024, 3, 5)
	require.Nil(t, db.Create(&d).Error)

	memo := "HCB DISBURSE " + d.Code().String()
	plaid := memfeed.New(models.SourcePlaid).AddPage("acc_1",
		feed.Record{NativeID: "in", Amount: 2000, Date: test.Date(2024, 3, 6), Memo: memo},
	)

	report := nightly(t, newEngine(db, plaid))
	assert.Equal(t, 1, report.Links.Settled)

	out := pendingFor(t, db, models.SourceDisbursement, fmt.Sprintf("%d:out", d.ID))
	assert.Equal(t, models.PendingStatePending, out.State)
	in := pendingFor(t, db, models.SourceDisbursement, fmt.Sprintf("%d:in", d.ID))
	assert.Equal(t, models.PendingStateSettled, in.State)

	balance, err := models.AvailableBalance(db, robotics.ID)
	require.Nil(t, err)
	assert.Equal(t, int64(-2000), balance)
}

func TestSweep(t *testing.T) {
	db := test.Connect(t)
	account := test.CreateBankAccount(t, db, models.SourcePlaid, "acc_1", "UBI-1")

	for i, date := range []time.Time{test.Date(2024, 2, 3), test.Date(2024, 2, 20), test.Date(2024, 3, 18)} {
		test.CreateRaw(t, db, models.RawTransaction{
			Source:        models.SourcePlaid,
			NativeID:      date.Format(time.DateOnly),
			BankAccountID: &account.ID,
			Amount:        int64(-100 * (i + 1)),
			Date:          date,
			Memo:          "HARDWARE STORE",
		})
	}

	e := newEngine(db)
	reports, err := e.Sweep(context.Background(), test.Date(2024, 2, 1))
	require.Nil(t, err)

	// 02-01..02-15, 02-16..03-01, 03-02..03-16, 03-17..03-20
	require.Len(t, reports, 4)
	assert.Equal(t, test.Date(2024, 3, 17), reports[3].From)
	assert.Equal(t, int64(3), count(t, db, &models.CanonicalTransaction{}))

	_, ok, err := models.LoadCheckpoint(db, engine.SweepCheckpoint)
	require.Nil(t, err)
	assert.False(t, ok, "a finished sweep removes its checkpoint")
}

func TestSweepResumes(t *testing.T) {
	db := test.Connect(t)
	require.Nil(t, models.SaveCheckpoint(db, engine.SweepCheckpoint, test.Date(2024, 3, 16)))

	reports, err := newEngine(db).Sweep(context.Background(), test.Date(2024, 2, 1))
	require.Nil(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, test.Date(2024, 3, 17), reports[0].From)
}

func TestSweepCanceled(t *testing.T) {
	db := test.Connect(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(db).Sweep(ctx, test.Date(2024, 2, 1))
	assert.ErrorIs(t, err, context.Canceled)

	_, ok, err := models.LoadCheckpoint(db, engine.SweepCheckpoint)
	require.Nil(t, err)
	assert.False(t, ok)
}

func TestNuke(t *testing.T) {
	db := test.Connect(t)
	event := test.CreateEvent(t, db, "Robotics", "0.07")
	test.CreateBankAccount(t, db, models.SourcePlaid, "acc_1", "UBI-1")

	plaid := memfeed.New(models.SourcePlaid).AddPage("acc_1",
		feed.Record{NativeID: "1", Amount: 2500, Date: test.Date(2024, 3, 6), Memo: "DEPOSIT"},
		feed.Record{NativeID: "2", Amount: -500, Date: test.Date(2024, 3, 7), Memo: "CARD HOLD", Pending: true},
	)
	e := newEngine(db, plaid)
	nightly(t, e)
	require.Equal(t, int64(1), count(t, db, &models.CanonicalTransaction{}))

	assert.ErrorIs(t, e.Nuke(false), engine.ErrNukeNotConfirmed)
	assert.Equal(t, int64(2), count(t, db, &models.RawTransaction{}))

	require.Nil(t, e.Nuke(true))
	for _, model := range []any{
		&models.RawTransaction{},
		&models.HashedTransaction{},
		&models.CanonicalTransaction{},
		&models.CanonicalPendingTransaction{},
		&models.CanonicalHashedMapping{},
	} {
		assert.Equal(t, int64(0), count(t, db.Unscoped(), model), "%T", model)
	}

	require.Nil(t, db.First(&event, event.ID).Error, "events are kept")
}
