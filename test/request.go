package test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/ImShyMike/hcb/internal/controllers"
	"github.com/ImShyMike/hcb/internal/httperror"
	"github.com/ImShyMike/hcb/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Request is a helper method to simplify making a HTTP request for tests.
func Request(t *testing.T, db *gorm.DB, method, reqURL string, headers ...map[string]string) httptest.ResponseRecorder {
	r, teardown, err := router.Config(nil)
	defer teardown()
	require.Nil(t, err, "Router could not be initialized")

	router.AttachRoutes(controllers.Controller{DB: db}, r.Group("/"), false)

	recorder := httptest.NewRecorder()
	req, _ := http.NewRequest(method, reqURL, nil)

	for _, headerMap := range headers {
		for header, value := range headerMap {
			req.Header.Set(header, value)
		}
	}

	r.ServeHTTP(recorder, req)

	return *recorder
}

// DecodeResponse decodes an HTTP response into a target struct.
func DecodeResponse(t *testing.T, r *httptest.ResponseRecorder, target any) {
	err := json.Unmarshal(r.Body.Bytes(), &target)
	if err != nil {
		assert.FailNow(t, "Parsing error", "Unable to parse response from server %q into %v, '%v', Request ID: %s", r.Body, reflect.TypeOf(target), err, r.Result().Header.Get("x-request-id"))
	}
}

// DecodeError decodes the message of an error response.
func DecodeError(t *testing.T, s []byte) string {
	var r httperror.Error
	if err := json.Unmarshal(s, &r); err != nil {
		assert.FailNow(t, "Could not decode error", "Unable to parse error response %q: %v", string(s), err)
	}

	return r.Message
}

// AssertHTTPStatus verifies that the HTTP response status is correct
func AssertHTTPStatus(t *testing.T, r *httptest.ResponseRecorder, expectedStatus ...int) {
	require.Contains(t, expectedStatus, r.Code, "HTTP status is wrong. Request ID: '%s' Response body: %s", r.Result().Header.Get("x-request-id"), r.Body.String())
}
