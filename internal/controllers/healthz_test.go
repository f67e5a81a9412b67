package controllers_test

import (
	"net/http"
	"testing"

	"github.com/ImShyMike/hcb/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthzSuccess(t *testing.T) {
	db := test.Connect(t)

	recorder := test.Request(t, db, http.MethodGet, "http://example.com/healthz")
	test.AssertHTTPStatus(t, &recorder, http.StatusNoContent)
}

func TestHealthzFail(t *testing.T) {
	db := test.Connect(t)

	sqlDB, err := db.DB()
	require.Nil(t, err)
	require.Nil(t, sqlDB.Close())

	recorder := test.Request(t, db, http.MethodGet, "http://example.com/healthz")
	test.AssertHTTPStatus(t, &recorder, http.StatusInternalServerError)
	assert.Contains(t, test.DecodeError(t, recorder.Body.Bytes()), "an error occurred on the server")
}

func TestHealthzOptions(t *testing.T) {
	db := test.Connect(t)

	recorder := test.Request(t, db, http.MethodOptions, "http://example.com/healthz")
	test.AssertHTTPStatus(t, &recorder, http.StatusNoContent)
	assert.Equal(t, "OPTIONS, GET", recorder.Header().Get("allow"))
}
