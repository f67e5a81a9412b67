package importer_test

import (
	"context"
	"testing"
	"time"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/feed/memfeed"
	"github.com/ImShyMike/hcb/internal/importer"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	now   = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	start = test.Date(2024, 2, 1)
)

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func setup(t *testing.T) (*gorm.DB, *importer.Importer, *memfeed.Provider, importer.Job) {
	db := test.Connect(t)
	account := test.CreateBankAccount(t, db, models.SourcePlaid, "acc", "FS-MAIN")

	i := importer.New(db, anomaly.NewReporter("test"), 7*24*time.Hour).WithClock(clock(now))
	p := memfeed.New(models.SourcePlaid)
	return db, i, p, importer.Job{Provider: p, Account: &account}
}

func raws(t *testing.T, db *gorm.DB) []models.RawTransaction {
	var raws []models.RawTransaction
	require.Nil(t, db.Order("id ASC").Find(&raws).Error)
	return raws
}

func TestImportIsIdempotent(t *testing.T) {
	db, i, p, job := setup(t)
	p.AddPage("acc",
		feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE"},
	).AddPage("acc",
		feed.Record{NativeID: "p_2", Amount: 2000, Date: test.Date(2024, 3, 11), Memo: "DEPOSIT", Pending: true, Payload: map[string]any{"merchant": "ACME"}},
	)

	for range 2 {
		res, err := i.Import(context.Background(), job, start)
		require.Nil(t, err)
		assert.Equal(t, 2, res.Upserted)
		assert.Equal(t, 0, res.SoftDeleted)
	}

	stored := raws(t, db)
	require.Len(t, stored, 2)
	assert.Equal(t, "p_1", stored[0].NativeID)
	assert.Equal(t, job.Account.ID, *stored[0].BankAccountID)
	assert.True(t, stored[1].Pending)
	assert.Equal(t, "ACME", stored[1].PayloadString("merchant"))
	assert.True(t, now.Equal(stored[1].LastSeenAt))
}

func TestPendingRecordSettles(t *testing.T) {
	db, i, p, job := setup(t)
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "HOTEL", Pending: true})

	_, err := i.Import(context.Background(), job, start)
	require.Nil(t, err)

	p.Reset("acc")
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1450, Date: test.Date(2024, 3, 12), Memo: "HOTEL PARIS"})

	_, err = i.Import(context.Background(), job, start)
	require.Nil(t, err)

	stored := raws(t, db)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].Pending)
	assert.Equal(t, int64(-1450), stored[0].Amount)
	assert.True(t, test.Date(2024, 3, 12).Equal(stored[0].Date))
	assert.Equal(t, "HOTEL PARIS", stored[0].Memo)
}

func TestSettledAmountIsImmutable(t *testing.T) {
	db, i, p, job := setup(t)
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE"})

	_, err := i.Import(context.Background(), job, start)
	require.Nil(t, err)

	p.Reset("acc")
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -9900, Date: test.Date(2024, 3, 10), Memo: "COFFEE SHOP"})

	_, err = i.Import(context.Background(), job, start)
	require.Nil(t, err)

	stored := raws(t, db)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(-1500), stored[0].Amount)
	assert.Equal(t, "COFFEE SHOP", stored[0].Memo)

	var anomalies []models.Anomaly
	require.Nil(t, db.Where("kind = ?", models.AnomalyImmutableChanged).Find(&anomalies).Error)
	require.Len(t, anomalies, 1)
	assert.Equal(t, stored[0].EntityRef().String(), anomalies[0].Subject)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	db, i, p, job := setup(t)
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE"})

	_, err := i.Import(context.Background(), job, start)
	require.Nil(t, err)

	// Not reported for longer than the lookback
	p.Reset("acc")
	i.WithClock(clock(now.AddDate(0, 0, 10)))

	res, err := i.Import(context.Background(), job, start)
	require.Nil(t, err)
	assert.Equal(t, 1, res.SoftDeleted)
	assert.Empty(t, raws(t, db))

	var deleted models.RawTransaction
	require.Nil(t, db.Unscoped().Where("native_id = ?", "p_1").First(&deleted).Error)
	assert.True(t, deleted.DeletedAt.Valid)

	// Reported again
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE"})
	i.WithClock(clock(now.AddDate(0, 0, 11)))

	res, err = i.Import(context.Background(), job, start)
	require.Nil(t, err)
	assert.Equal(t, 1, res.Restored)
	assert.Equal(t, 0, res.SoftDeleted)

	stored := raws(t, db)
	require.Len(t, stored, 1)
	assert.Equal(t, deleted.ID, stored[0].ID)
}

// Nightly runs start one lookback before now. A record that vanished from
// the feed is soft deleted once it went unseen for the lookback.
func TestVanishedRecordIsSoftDeletedByDailyRuns(t *testing.T) {
	db := test.Connect(t)
	account := test.CreateBankAccount(t, db, models.SourcePlaid, "acc", "FS-MAIN")
	p := memfeed.New(models.SourcePlaid)
	job := importer.Job{Provider: p, Account: &account}

	lookback := 30 * 24 * time.Hour
	i := importer.New(db, anomaly.NewReporter("test"), lookback)

	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 15), Memo: "COFFEE"})
	i.WithClock(clock(now))
	_, err := i.Import(context.Background(), job, now.Add(-lookback))
	require.Nil(t, err)

	p.Reset("acc")

	deletedOn := 0
	for day := 1; day <= 90; day++ {
		today := now.AddDate(0, 0, day)
		i.WithClock(clock(today))

		res, err := i.Import(context.Background(), job, today.Add(-lookback))
		require.Nil(t, err)
		if res.SoftDeleted > 0 {
			require.Zero(t, deletedOn, "soft deleted twice")
			deletedOn = day
		}
	}

	assert.Equal(t, 31, deletedOn)

	var deleted models.RawTransaction
	require.Nil(t, db.Unscoped().Where("native_id = ?", "p_1").First(&deleted).Error)
	assert.True(t, deleted.DeletedAt.Valid)
}

func TestRecentlySeenIsKept(t *testing.T) {
	db, i, p, job := setup(t)
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE"})

	_, err := i.Import(context.Background(), job, start)
	require.Nil(t, err)

	p.Reset("acc")
	i.WithClock(clock(now.AddDate(0, 0, 2)))

	res, err := i.Import(context.Background(), job, start)
	require.Nil(t, err)
	assert.Equal(t, 0, res.SoftDeleted)
	assert.Len(t, raws(t, db), 1)
}

func TestInvalidRecordsAreReported(t *testing.T) {
	db, i, p, job := setup(t)
	p.AddPage("acc",
		feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE", LinkedCode: "HCB-999-1"},
		feed.Record{NativeID: "p_2", Amount: -500, Date: test.Date(2024, 3, 10), Memo: "TEA"},
	)

	res, err := i.Import(context.Background(), job, start)
	require.Nil(t, err)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 1, res.Upserted)

	var a models.Anomaly
	require.Nil(t, db.Where("kind = ?", models.AnomalyInvalidRecord).First(&a).Error)
	assert.Equal(t, "feed_record:plaid:p_1", a.Subject)
}

func TestRunIsolatesFailures(t *testing.T) {
	db, i, p, job := setup(t)
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE"})

	broken := memfeed.New(models.SourceStripe)
	broken.Fail(importer.ErrMissingCredentials)

	results := i.Run(context.Background(), []importer.Job{{Provider: broken}, job}, start, 2)
	require.Len(t, results, 2)

	assert.ErrorIs(t, results[0].Err, importer.ErrMissingCredentials)
	assert.Equal(t, models.SourceStripe, results[0].Source)
	assert.Nil(t, results[1].Err)
	assert.Equal(t, 1, results[1].Upserted)
	assert.Len(t, raws(t, db), 1)
}

func TestCanceledContext(t *testing.T) {
	_, i, p, job := setup(t)
	p.AddPage("acc", feed.Record{NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 10), Memo: "COFFEE"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := i.Import(ctx, job, start)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.Calls())
}
