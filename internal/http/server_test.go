package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/ledger/memory"
	"kharcha/internal/log"
	"kharcha/internal/report"
	"kharcha/internal/services"
	sheetsmem "kharcha/internal/sheets/memory"
)

var fixedNow = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv    *Server
	local  *memory.Store
	remote *sheetsmem.Sheet
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestEnv(t *testing.T, seed ...core.Expense) *testEnv {
	t.Helper()
	local := memory.New(seed...)
	remote := sheetsmem.New()
	remote.SetAvailable(false)

	svc := services.NewExpenseService(local, remote,
		services.WithClock(func() time.Time { return fixedNow }),
		services.WithLogger(quietLogger()))
	gen := report.NewGenerator(local, report.WithClock(func() time.Time { return fixedNow }))
	authn := auth.NewAuthenticator(map[string]auth.Credential{
		"asha@example.com": {Password: "s3cret", Name: "Asha"},
	})

	srv := NewServer(Options{
		Addr:     ":0",
		Expenses: svc,
		Reports:  gen,
		Auth:     authn,
		Logger:   quietLogger(),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, local: local, remote: remote}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["message"])
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req_fixed")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, "req_fixed", rr.Header().Get("X-Request-ID"))
}

func TestPreflight(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodOptions, "/api/add-expense", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("valid", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/login", `{"email":"asha@example.com","password":"s3cret"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "Login successful", body["message"])
		assert.Equal(t, "Asha", body["name"])
		assert.Equal(t, "asha@example.com", body["email"])
		assert.NotEmpty(t, body["token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/login", `{"email":"asha@example.com","password":"nope"}`)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Invalid credentials", decodeBody(t, rr)["message"])
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/login", `{"email":"Asha@example.com","password":"s3cret"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unreadable body", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/login", `{not json`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeBody(t, rr), "message")
	})
}

func TestAddAndListExpenses(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/api/add-expense", `{"date":"2024-01-15","amount":"250.5","reason":"Taxi"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var added addExpenseResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))
	assert.Equal(t, "Expense added successfully", added.Message)
	assert.Equal(t, "0", added.Data.ID)
	assert.Equal(t, 250.5, added.Data.Amount)
	assert.Equal(t, fixedNow.Format(core.TimestampLayout), added.Data.Timestamp)

	rr = env.do(http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(core.SourceLocal), rr.Header().Get("X-Data-Source"))

	var listed []core.Expense
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, added.Data, listed[0])
}

func TestListEmptyLedgerIsArray(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestListPrefersRemote(t *testing.T) {
	env := newTestEnv(t)
	env.remote.SetAvailable(true)

	rr := env.do(http.MethodPost, "/api/add-expense", `{"date":"2024-01-15","amount":10,"reason":"Tea"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, string(core.SourceRemote), rr.Header().Get("X-Data-Source"))

	var listed []core.Expense
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Tea", listed[0].Reason)
}

func TestAddExpenseMalformed(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"missing reason":     `{"date":"2024-01-15","amount":10}`,
		"non-numeric amount": `{"date":"2024-01-15","amount":"abc","reason":"x"}`,
		"NaN amount":         `{"date":"2024-01-15","amount":"NaN","reason":"x"}`,
		"infinite amount":    `{"date":"2024-01-15","amount":"-Infinity","reason":"x"}`,
		"not json":           `nope`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/api/add-expense", body)
			require.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.NotEmpty(t, decodeBody(t, rr)["error"])
		})
	}

	records, err := env.local.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	rr := env.do(http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = env.do(http.MethodGet, "/api/months", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestDeleteExpense(t *testing.T) {
	env := newTestEnv(t,
		core.Expense{ID: "0", Date: "2024-01-01", Amount: 1, Reason: "a"},
		core.Expense{ID: "1", Date: "2024-01-02", Amount: 2, Reason: "b"},
	)

	rr := env.do(http.MethodDelete, "/api/expenses/0", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Expense deleted successfully", decodeBody(t, rr)["message"])

	records, err := env.local.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ID)

	rr = env.do(http.MethodDelete, "/api/expenses/42", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(http.MethodDelete, "/api/expenses/abc", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, decodeBody(t, rr)["error"])
}

func TestMonths(t *testing.T) {
	env := newTestEnv(t,
		core.Expense{ID: "0", Date: "2024-01-15", Amount: 100, Reason: "a"},
		core.Expense{ID: "1", Date: "2024-01-20", Amount: 50.5, Reason: "b"},
		core.Expense{ID: "2", Date: "2024-02-01", Amount: 10, Reason: "c"},
	)

	rr := env.do(http.MethodGet, "/api/months", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var months []core.MonthSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &months))
	require.Len(t, months, 2)
	assert.Equal(t, "2024-02", months[0].Key)
	assert.Equal(t, "January 2024", months[1].Name)
	assert.Equal(t, 2, months[1].Count)
	assert.InDelta(t, 150.5, months[1].Total, 1e-9)
}

func TestMonthsBadDate(t *testing.T) {
	env := newTestEnv(t, core.Expense{ID: "0", Date: "yesterday", Amount: 1, Reason: "a"})

	rr := env.do(http.MethodGet, "/api/months", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, decodeBody(t, rr)["error"])
}

func TestDownloadAll(t *testing.T) {
	env := newTestEnv(t, core.Expense{ID: "0", Date: "2024-01-15", Amount: 100, Reason: "Lunch", Timestamp: "t"})

	rr := env.do(http.MethodGet, "/api/download/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="All_Expenses_2024-03-05.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")

	rows, err := csv.NewReader(bytes.NewReader(rr.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-01-15", "100", "Lunch", "t"}, rows[1])

	rr = env.do(http.MethodGet, "/api/download/all?format=xlsx", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")

	rr = env.do(http.MethodGet, "/api/download/all?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDownloadMonthly(t *testing.T) {
	env := newTestEnv(t,
		core.Expense{ID: "0", Date: "2024-01-15", Amount: 100, Reason: "a"},
		core.Expense{ID: "1", Date: "2024-02-01", Amount: 10, Reason: "b"},
	)

	rr := env.do(http.MethodGet, "/api/download/monthly/2024/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="January_2024_Expenses.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "Total Transactions,1")

	for _, path := range []string{
		"/api/download/monthly/2024/13",
		"/api/download/monthly/2024/0",
		"/api/download/monthly/abc/1",
		"/api/download/monthly/2024/x",
	} {
		rr := env.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.NotEmpty(t, decodeBody(t, rr)["error"], path)
	}
}

type panickingExpenses struct{ ExpenseService }

func (panickingExpenses) List(context.Context) services.Listing { panic("boom") }

func TestPanicRecovery(t *testing.T) {
	srv := NewServer(Options{Expenses: panickingExpenses{}, Logger: quietLogger()})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rr)["error"])
	assert.EqualValues(t, 1, srv.metrics.recoveredPanics)
}

func TestPostRateLimit(t *testing.T) {
	srv := NewServer(Options{
		Auth:            auth.NewAuthenticator(nil),
		Logger:          quietLogger(),
		RateLimitPerMin: 2,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	post := func() int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{}`))
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, post())
	assert.Equal(t, http.StatusUnauthorized, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	// GET requests are not limited.
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCustomCORSOrigin(t *testing.T) {
	srv := NewServer(Options{Logger: quietLogger(), CORSAllowedOrigin: "https://app.example.com"})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
}

func TestShutdownIsIdempotent(t *testing.T) {
	srv := NewServer(Options{Logger: quietLogger()})
	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
}
