package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDAssignedAndPropagated(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	// Absent header gets a generated id.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))

	// A caller-supplied id is kept.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "cid-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "cid-123", seen)

	// An oversized caller id is replaced instead of echoed.
	oversized := strings.Repeat("x", 200)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, oversized)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.NotEmpty(t, seen)
	assert.NotEqual(t, oversized, seen)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))
}

func TestWriteJSONErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteJSONError(rec, req, http.StatusBadRequest, "invalid_amount", "amount must be positive")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "invalid_amount", envelope.Error)
	assert.Equal(t, "amount must be positive", envelope.Message)
}

func TestJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator(`{
		"type": "object",
		"required": ["amount"],
		"properties": {"amount": {"type": "number", "exclusiveMinimum": 0}}
	}`)
	require.NoError(t, err)

	var handlerBody string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 64)
		n, _ := r.Body.Read(b)
		handlerBody = string(b[:n])
	}))

	send := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return rec
	}

	assert.Equal(t, http.StatusOK, send(`{"amount": 10.5}`).Code)
	// The handler still sees the full body after validation.
	assert.JSONEq(t, `{"amount": 10.5}`, handlerBody)

	assert.Equal(t, http.StatusBadRequest, send(`{"amount": -1}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(`not json`).Code)
}

func TestBodySizeLimitRejectsOversized(t *testing.T) {
	v := MustValidator(`{"type": "object"}`)
	h := BodySizeLimit(8)(v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"field": "0123456789"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
