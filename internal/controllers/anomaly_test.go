package controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/ImShyMike/hcb/internal/anomaly"
	"github.com/ImShyMike/hcb/internal/controllers"
	"github.com/ImShyMike/hcb/internal/models"
	"github.com/ImShyMike/hcb/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnomalies(t *testing.T) {
	db := test.Connect(t)

	raw := test.CreateRaw(t, db, models.RawTransaction{Source: models.SourcePlaid, NativeID: "p_1", Amount: -1500, Date: test.Date(2024, 3, 11)})
	anomaly.NewReporter("run").Report(db, models.AnomalyMissingHashed, raw, "no hashed transaction")

	recorder := test.Request(t, db, http.MethodGet, "http://example.com/v1/anomalies")
	test.AssertHTTPStatus(t, &recorder, http.StatusOK)

	var response controllers.AnomalyListResponse
	test.DecodeResponse(t, &recorder, &response)
	require.Len(t, response.Data, 1)
	assert.Equal(t, models.AnomalyMissingHashed, response.Data[0].Kind)

	path := fmt.Sprintf("http://example.com/v1/anomalies/%d/resolve", response.Data[0].ID)
	recorder = test.Request(t, db, http.MethodPost, path)
	test.AssertHTTPStatus(t, &recorder, http.StatusNoContent)

	recorder = test.Request(t, db, http.MethodPost, path)
	test.AssertHTTPStatus(t, &recorder, http.StatusConflict)

	recorder = test.Request(t, db, http.MethodGet, "http://example.com/v1/anomalies")
	test.DecodeResponse(t, &recorder, &response)
	assert.Len(t, response.Data, 0)

	recorder = test.Request(t, db, http.MethodPost, "http://example.com/v1/anomalies/99/resolve")
	test.AssertHTTPStatus(t, &recorder, http.StatusNotFound)
}
