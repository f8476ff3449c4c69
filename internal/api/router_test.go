package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/example/bank-manager/internal/ledger"
	"github.com/example/bank-manager/internal/security"
	"github.com/example/bank-manager/internal/users"
	"github.com/example/bank-manager/pkg/audit"
)

func newTestServer(t *testing.T, mutate func(*Dependencies)) (*httptest.Server, *audit.ChainLogger) {
	t.Helper()

	journal := audit.NewChainLogger()
	deps := Dependencies{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Ledger:       ledger.NewService(ledger.NewMemoryStore()),
		Users:        users.NewService(users.NewMemoryStore()),
		Auditor:      journal,
		MaxBodyBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&deps)
	}

	h, err := NewRouter(deps)
	require.NoError(t, err)

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, journal
}

func postJSON(t *testing.T, url string, body map[string]any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/users", map[string]any{
		"name": "Alice", "email": "alice@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var u users.User
	decodeBody(t, resp, &u)
	require.NotEmpty(t, u.ID)

	// Duplicate email is a conflict.
	resp = postJSON(t, ts.URL+"/v1/users", map[string]any{
		"name": "Other", "email": "alice@example.com", "password": "battery staple",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var envelope security.ErrorResponse
	decodeBody(t, resp, &envelope)
	require.Equal(t, "duplicate_email", envelope.Error)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/users/"+u.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/users/" + u.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestLoggerEmitsRouteAndWriteFields(t *testing.T) {
	var buf bytes.Buffer
	ts, _ := newTestServer(t, func(d *Dependencies) {
		d.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	})

	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "ACC-LOG", "initial_balance": 1.00,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], `"route":"/v1/accounts`)
	require.Contains(t, lines[0], `"write":true`)
	require.Contains(t, lines[1], `"route":"/healthz"`)
	require.Contains(t, lines[1], `"write":false`)
}

func TestCreateUserRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	// Syntactically long enough to pass the schema, still not an address.
	resp := postJSON(t, ts.URL+"/v1/users", map[string]any{
		"name": "Alice", "email": "not-an-email", "password": "correct horse",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var envelope security.ErrorResponse
	decodeBody(t, resp, &envelope)
	require.Equal(t, "validation_error", envelope.Error)

	// Whitespace-only name passes minLength but fails the service check.
	resp = postJSON(t, ts.URL+"/v1/users", map[string]any{
		"name": "   ", "email": "alice@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeBody(t, resp, &envelope)
	require.Equal(t, "validation_error", envelope.Error)
}

func TestCreateAccountValidatesOwner(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "ACC-900", "owner_id": "missing-user",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var envelope security.ErrorResponse
	decodeBody(t, resp, &envelope)
	require.Equal(t, "unknown_owner", envelope.Error)

	resp = postJSON(t, ts.URL+"/v1/users", map[string]any{
		"name": "Owner", "email": "owner@example.com", "password": "long enough",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var u users.User
	decodeBody(t, resp, &u)

	resp = postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "ACC-900", "owner_id": u.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var account ledger.Account
	decodeBody(t, resp, &account)
	require.Equal(t, u.ID, account.OwnerID)
}

func TestAccountAndTransactionFlow(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "ACC-001", "initial_balance": 500.00,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(security.CorrelationIDHeader))
	var account ledger.Account
	decodeBody(t, resp, &account)

	// Duplicate number is a conflict.
	resp = postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "ACC-001",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Schema catches a missing amount before the handler runs.
	resp = postJSON(t, ts.URL+"/v1/accounts/"+account.ID+"/transactions", map[string]any{
		"kind": "DEPOSIT",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/accounts/"+account.ID+"/transactions", map[string]any{
		"amount": 200.00, "kind": "WITHDRAWAL",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/v1/accounts/"+account.ID+"/transactions", map[string]any{
		"amount": 1000.00, "kind": "WITHDRAWAL",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var envelope security.ErrorResponse
	decodeBody(t, resp, &envelope)
	require.Equal(t, "insufficient_funds", envelope.Error)

	resp, err := http.Get(ts.URL + "/v1/accounts/" + account.ID)
	require.NoError(t, err)
	var after ledger.Account
	decodeBody(t, resp, &after)
	require.Equal(t, "300", after.Balance.String())

	resp, err = http.Get(ts.URL + "/v1/accounts/" + account.ID + "/transactions")
	require.NoError(t, err)
	var entries []*ledger.Transaction
	decodeBody(t, resp, &entries)
	require.Len(t, entries, 1)

	// Lookup by number.
	resp, err = http.Get(ts.URL + "/v1/accounts?number=ACC-001")
	require.NoError(t, err)
	var byNumber []*ledger.Account
	decodeBody(t, resp, &byNumber)
	require.Len(t, byNumber, 1)
	require.Equal(t, account.ID, byNumber[0].ID)

	resp, err = http.Get(ts.URL + "/v1/accounts/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransferEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var a, b ledger.Account
	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "A", "initial_balance": 300.00,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &a)
	resp = postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "B", "initial_balance": 50.00,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &b)

	resp = postJSON(t, ts.URL+"/v1/transfers", map[string]any{
		"from_account_id": a.ID, "to_account_id": b.ID, "amount": 100.00,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result ledger.TransferResult
	decodeBody(t, resp, &result)
	require.Equal(t, "200", result.From.Balance.String())
	require.Equal(t, "150", result.To.Balance.String())
	require.Equal(t, result.TransferID, result.Withdrawal.TransferID)
	require.Equal(t, result.TransferID, result.Deposit.TransferID)

	resp = postJSON(t, ts.URL+"/v1/transfers", map[string]any{
		"from_account_id": a.ID, "to_account_id": a.ID, "amount": 10.00,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var envelope security.ErrorResponse
	decodeBody(t, resp, &envelope)
	require.Equal(t, "same_account_transfer", envelope.Error)

	resp = postJSON(t, ts.URL+"/v1/transfers", map[string]any{
		"from_account_id": "missing", "to_account_id": b.ID, "amount": 10.00,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitTrips(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ts, _ := newTestServer(t, func(deps *Dependencies) {
		deps.RateLimiter = &security.RedisTokenBucket{
			Redis: rdb, Prefix: "test", Capacity: 1, RefillRate: 0.0000001,
		}
	})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestBodySizeLimit(t *testing.T) {
	ts, _ := newTestServer(t, func(deps *Dependencies) {
		deps.MaxBodyBytes = 16
	})

	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "ACC-001", "initial_balance": 500.00,
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAuditJournalRecordsWrites(t *testing.T) {
	ts, journal := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]any{
		"account_number": "ACC-001",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/v1/accounts")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := journal.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "POST /v1/accounts", entries[0].Operation)
	require.True(t, audit.VerifyChain(entries))
}
