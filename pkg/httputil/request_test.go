package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"deluxe"}`))
	var dest struct {
		Name string `json:"name"`
	}
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "deluxe", dest.Name)
}

func TestParseJSONInvalid(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	var dest map[string]string
	err := ParseJSON(r, &dest)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestParsePathString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/bookings/abc", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "abc"})

	val, err := ParsePathString(r, "id")
	require.NoError(t, err)
	assert.Equal(t, "abc", val)

	_, err = ParsePathString(r, "other")
	assert.Error(t, err)
}

func TestParsePathInt64(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/invoices/42", nil)
	r = mux.SetURLVars(r, map[string]string{"id": "42"})

	val, err := ParsePathInt64(r, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)

	r = mux.SetURLVars(r, map[string]string{"id": "nope"})
	_, err = ParsePathInt64(r, "id")
	assert.Error(t, err)
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/bookings?limit=25", nil)
	val, err := ParseQueryInt(r, "limit", 100)
	require.NoError(t, err)
	assert.Equal(t, 25, val)

	val, err = ParseQueryInt(r, "offset", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, val)

	r = httptest.NewRequest(http.MethodGet, "/bookings?limit=x", nil)
	_, err = ParseQueryInt(r, "limit", 100)
	assert.Error(t, err)
}
