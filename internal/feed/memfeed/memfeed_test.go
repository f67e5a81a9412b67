package memfeed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ImShyMike/hcb/internal/feed"
	"github.com/ImShyMike/hcb/internal/feed/memfeed"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagination(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	p := memfeed.New(models.SourcePlaid).
		AddPage("acc", feed.Record{NativeID: "1", Date: from}, feed.Record{NativeID: "old", Date: from.AddDate(0, -1, 0)}).
		AddPage("acc", feed.Record{NativeID: "2", Date: to})

	page, err := p.ListTransactions(context.Background(), "acc", from, to, "")
	require.Nil(t, err)
	require.Len(t, page.Records, 1, "records outside of the window are filtered")
	assert.Equal(t, "1", page.NextCursor)

	page, err = p.ListTransactions(context.Background(), "acc", from, to, page.NextCursor)
	require.Nil(t, err)
	assert.Equal(t, "2", page.Records[0].NativeID)
	assert.Equal(t, "", page.NextCursor)

	page, err = p.ListTransactions(context.Background(), "other", from, to, "")
	require.Nil(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 3, p.Calls())
}

func TestFailure(t *testing.T) {
	boom := errors.New("upstream is down")
	p := memfeed.New(models.SourceStripe)
	p.Fail(boom)

	_, err := p.ListTransactions(context.Background(), "", time.Time{}, time.Now(), "")
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Fail(nil)
	_, err = p.ListTransactions(ctx, "", time.Time{}, time.Now(), "")
	assert.ErrorIs(t, err, context.Canceled)
}
