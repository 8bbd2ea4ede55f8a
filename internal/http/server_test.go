package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensedash/internal/amqp"
	"expensedash/internal/api"
	"expensedash/internal/core"
	"expensedash/internal/fakeapi"
	"expensedash/internal/log"
	"expensedash/internal/session/memory"
)

type harness struct {
	fake   *fakeapi.Server
	srv    *Server
	url    string
	client *http.Client
	events *amqp.RecordingPublisher
}

func newHarness(t *testing.T, enableCreate bool) *harness {
	t.Helper()
	fake := fakeapi.New()
	backend := httptest.NewServer(fake)
	t.Cleanup(backend.Close)

	client, err := api.New(backend.URL+fakeapi.Prefix, 5*time.Second, api.WithLogger(log.Discard()))
	require.NoError(t, err)

	events := &amqp.RecordingPublisher{}
	srv, err := NewServer(":0", Options{
		API:          client,
		Sessions:     memory.NewProvider(),
		Events:       events,
		EnableCreate: enableCreate,
		Logger:       log.Discard(),
	})
	require.NoError(t, err)
	front := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		front.Close()
		_ = srv.Shutdown(context.Background())
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{
		fake:   fake,
		srv:    srv,
		url:    front.URL,
		client: &http.Client{Jar: jar, Timeout: 5 * time.Second},
		events: events,
	}
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := h.client.Get(h.url + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.url+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (h *harness) login(t *testing.T, username, password string) string {
	t.Helper()
	_, body := h.post(t, "/login", url.Values{"mode": {"login"}, "username": {username}, "password": {password}})
	return body
}

func TestDashboardLoggedOut(t *testing.T) {
	h := newHarness(t, false)

	code, body := h.get(t, "/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Expense Tracker Dashboard")
	assert.Contains(t, body, "Not logged in")
	assert.Contains(t, body, "Please login or register to add expenses")
	assert.Contains(t, body, `data-testid="total-spent">₹0.00`)
	assert.Contains(t, body, "Switch to register")
	assert.Zero(t, h.fake.Requests("GET /expenses"), "logged-out mount must not call the API")
}

func TestIssuesClientCookieOnce(t *testing.T) {
	h := newHarness(t, false)
	h.get(t, "/")
	h.get(t, "/")
	assert.Equal(t, 1, h.srv.Browsers())

	u, err := url.Parse(h.url)
	require.NoError(t, err)
	cookies := h.client.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookie, cookies[0].Name)
}

func TestRegisterThenLogin(t *testing.T) {
	h := newHarness(t, false)

	_, body := h.post(t, "/auth/toggle", url.Values{})
	assert.Contains(t, body, "Switch to login")

	_, body = h.post(t, "/login", url.Values{"mode": {"register"}, "username": {"alice"}, "password": {"secret1"}})
	assert.Contains(t, body, "Registered! Now log in.")
	assert.Contains(t, body, `name="mode" value="login"`)

	h.fake.AddExpense("alice", core.NewExpense{Amount: core.Money{Cents: 1050}, Category: core.Food, Description: "lunch", Date: core.NewDate(2024, 1, 15)})
	body = h.login(t, "alice", "secret1")
	assert.Contains(t, body, "Hi, alice")
	assert.Contains(t, body, `data-testid="total-spent">₹10.50`)
	assert.Contains(t, body, `data-testid="expense-count">1 items`)
	assert.Contains(t, body, "lunch")
	assert.Contains(t, body, "/charts/monthly.png")
	assert.Equal(t, 1, h.fake.Requests("GET /expenses"))
	assert.Equal(t, 1, h.fake.Requests("GET /summary"))
	assert.Equal(t, 1, h.fake.Requests("GET /monthly-summary"))
}

func TestLoginFailureShowsDetail(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.fake.AddUser("alice", "secret1"))

	body := h.login(t, "alice", "wrong-password")
	assert.Contains(t, body, `role="alert">Invalid credentials`)
	assert.Contains(t, body, "Not logged in")

	// shown once
	_, body = h.get(t, "/")
	assert.NotContains(t, body, "Invalid credentials")
}

func TestLogoutClearsViews(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.fake.AddUser("alice", "secret1"))
	h.fake.AddExpense("alice", core.NewExpense{Amount: core.Money{Cents: 500}, Category: core.Food, Date: core.NewDate(2024, 1, 1)})
	h.login(t, "alice", "secret1")

	_, body := h.post(t, "/logout", url.Values{})
	assert.Contains(t, body, "Not logged in")
	assert.Contains(t, body, `data-testid="total-spent">₹0.00`)
	assert.Contains(t, body, "No expenses yet")
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.fake.AddUser("alice", "secret1"))
	id := h.fake.AddExpense("alice", core.NewExpense{Amount: core.Money{Cents: 500}, Category: core.Food, Date: core.NewDate(2024, 1, 1)})
	h.login(t, "alice", "secret1")

	code, body := h.get(t, "/expenses/"+id.String()+"/delete")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Delete this expense?")

	h.post(t, "/expenses/"+id.String()+"/delete", url.Values{"answer": {"no"}})
	assert.Equal(t, 1, h.fake.Expenses("alice"))
	assert.Zero(t, h.fake.Requests("DELETE /expenses/{id}"))

	h.fake.ResetRequests()
	_, body = h.post(t, "/expenses/"+id.String()+"/delete", url.Values{"answer": {"yes"}})
	assert.Equal(t, 0, h.fake.Expenses("alice"))
	assert.Equal(t, 1, h.fake.Requests("GET /expenses"), "one reload after delete")
	assert.Contains(t, body, `data-testid="expense-count">0 items`)
	assert.Equal(t, []string{amqp.EventSessionEstablished, amqp.EventExpenseDeleted}, h.events.Types())
}

func TestConfirmPageRedirectsWhenLoggedOut(t *testing.T) {
	h := newHarness(t, false)
	_, body := h.get(t, "/expenses/1/delete")
	assert.NotContains(t, body, "Delete this expense?")
	assert.Contains(t, body, "Not logged in")
}

func TestCreateExpenseIsStubByDefault(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.fake.AddUser("alice", "secret1"))
	h.login(t, "alice", "secret1")
	h.fake.ResetRequests()

	_, body := h.post(t, "/expenses", url.Values{"amount": {"12.34"}, "category": {"Health"}, "description": {"pharmacy"}, "date": {"2024-02-03"}})
	assert.Zero(t, h.fake.Requests("POST /expenses"))
	assert.Equal(t, 0, h.fake.Expenses("alice"))
	assert.Contains(t, body, `value="12.34"`)
	assert.Contains(t, body, `value="pharmacy"`)
}

func TestCreateExpenseWhenEnabled(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.fake.AddUser("alice", "secret1"))
	h.login(t, "alice", "secret1")

	_, body := h.post(t, "/expenses", url.Values{"amount": {"12.34"}, "category": {"Health"}, "description": {"pharmacy"}, "date": {"2024-02-03"}})
	assert.Equal(t, 1, h.fake.Expenses("alice"))
	assert.Contains(t, body, `data-testid="total-spent">₹12.34`)
	assert.NotContains(t, body, `value="pharmacy"`, "draft resets after a successful create")
}

func TestMonthlyChart(t *testing.T) {
	h := newHarness(t, false)
	require.NoError(t, h.fake.AddUser("alice", "secret1"))

	code, _ := h.get(t, "/charts/monthly.png")
	assert.Equal(t, http.StatusNotFound, code)

	h.fake.AddExpense("alice", core.NewExpense{Amount: core.Money{Cents: 500}, Category: core.Food, Date: core.NewDate(2024, 1, 1)})
	h.login(t, "alice", "secret1")

	resp, err := h.client.Get(h.url + "/charts/monthly.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestProbesAndMetrics(t *testing.T) {
	h := newHarness(t, false)

	code, body := h.get(t, "/healthz")
	require.Equal(t, http.StatusOK, code)
	var health map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health["status"])

	code, body = h.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"ready"`)

	code, body = h.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	for _, name := range []string{"http_requests_total", "logins_total", "rate_limit_hits_total", "suspicious_requests_total"} {
		assert.True(t, strings.Contains(body, "# TYPE "+name), name)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	h := newHarness(t, false)
	resp, err := h.client.Get(h.url + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'self'")
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	client, err := api.New("http://127.0.0.1:1/api", time.Second, api.WithLogger(log.Discard()))
	require.NoError(t, err)

	_, err = NewServer(":0", Options{
		API:            client,
		Sessions:       memory.NewProvider(),
		Logger:         log.Discard(),
		TrustedProxies: []string{"proxy.local"},
	})
	assert.ErrorContains(t, err, "invalid CIDR proxy.local")
}
