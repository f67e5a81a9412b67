package anomaly_test

import (
	"testing"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportDeduplicatesUnresolved(t *testing.T) {
	db := test.Connect(t)
	r := anomaly.NewReporter("run-1")

	subject := models.EntityRef{Type: "canonical_transaction", ID: "7"}
	r.Report(db, models.AnomalyEventUnmapped, subject, "no rule matches %q", "COFFEE")
	r.Report(db, models.AnomalyEventUnmapped, subject, "no rule matches %q", "COFFEE")
	r.Report(db, models.AnomalyEventAmbiguous, subject, "rules disagree")

	open, err := anomaly.Open(db)
	require.Nil(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "canonical_transaction:7", open[0].Subject)
	assert.Equal(t, `no rule matches "COFFEE"`, open[0].Detail)
	assert.Equal(t, "run-1", open[0].RunID)

	assert.Equal(t, map[models.AnomalyKind]int{
		models.AnomalyEventUnmapped:  1,
		models.AnomalyEventAmbiguous: 1,
	}, r.Counts())
}

func TestResolvedAnomaliesAreReportedAgain(t *testing.T) {
	db := test.Connect(t)
	r := anomaly.NewReporter("run-2")
	subject := models.EntityRef{Type: "raw_transaction", ID: "1"}

	r.Report(db, models.AnomalyDuplicateHashed, subject, "two hashed transactions")
	open, err := anomaly.Open(db)
	require.Nil(t, err)
	require.Len(t, open, 1)

	require.Nil(t, anomaly.Resolve(db, open[0].ID))
	assert.ErrorIs(t, anomaly.Resolve(db, open[0].ID), anomaly.ErrAlreadyResolved)
	assert.ErrorIs(t, anomaly.Resolve(db, 4711), models.ErrResourceNotFound)

	r.Report(db, models.AnomalyDuplicateHashed, subject, "two hashed transactions")
	open, err = anomaly.Open(db)
	require.Nil(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, 2, r.Counts()[models.AnomalyDuplicateHashed])
}
