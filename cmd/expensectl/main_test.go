package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensedash/internal/core"
	"expensedash/internal/fakeapi"
)

type env struct {
	fake    *fakeapi.Server
	baseURL string
	dir     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fake := fakeapi.New()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return &env{fake: fake, baseURL: srv.URL + fakeapi.Prefix, dir: t.TempDir()}
}

// exec runs one CLI invocation with stdin as typed input.
func (e *env) exec(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{
		"-config", filepath.Join(e.dir, "config.toml"),
		"-session-db", filepath.Join(e.dir, "session.db"),
		"-api", e.baseURL,
	}, args...)
	err := run(context.Background(), full, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func (e *env) seed(t *testing.T) core.ExpenseID {
	t.Helper()
	require.NoError(t, e.fake.AddUser("alice", "secret1"))
	e.fake.AddExpense("alice", core.NewExpense{Amount: core.Money{Cents: 2000}, Category: core.Transport, Description: "taxi", Date: core.NewDate(2024, 1, 10)})
	return e.fake.AddExpense("alice", core.NewExpense{Amount: core.Money{Cents: 1050}, Category: core.Food, Description: "lunch", Date: core.NewDate(2024, 2, 3)})
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	out, _, err := e.exec(t, "alice\nsecret1\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	out, _, err = e.exec(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "lunch")
	assert.Contains(t, out, "taxi")
	assert.Contains(t, out, "₹10.50")
	assert.Contains(t, out, "2 items")
	assert.Less(t, strings.Index(out, "lunch"), strings.Index(out, "taxi"), "newest first")
}

func TestLoginFailurePrintsDetail(t *testing.T) {
	e := newEnv(t)
	e.seed(t)

	out, _, err := e.exec(t, "", "login", "-user", "alice", "-password", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, out, "Invalid credentials")

	_, _, err = e.exec(t, "", "list")
	assert.ErrorContains(t, err, "not logged in")
}

func TestRegister(t *testing.T) {
	e := newEnv(t)

	out, _, err := e.exec(t, "", "register", "-user", "bob", "-password", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered! Now log in.")

	out, _, err = e.exec(t, "", "register", "-user", "bob", "-password", "secret1")
	require.Error(t, err)
	assert.Contains(t, out, "User already exists")
}

func TestSummary(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	_, _, err := e.exec(t, "", "login", "-user", "alice", "-password", "secret1")
	require.NoError(t, err)

	out, _, err := e.exec(t, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Total spent ₹30.50")
	assert.Contains(t, out, "Transport")
	assert.Contains(t, out, "Jan 2024")
	assert.Contains(t, out, "Feb 2024")
}

func TestDeleteAsksFirst(t *testing.T) {
	e := newEnv(t)
	id := e.seed(t)
	_, _, err := e.exec(t, "", "login", "-user", "alice", "-password", "secret1")
	require.NoError(t, err)

	out, _, err := e.exec(t, "n\n", "delete", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Delete this expense? [y/N]")
	assert.Contains(t, out, "Cancelled")
	assert.Equal(t, 2, e.fake.Expenses("alice"))

	out, _, err = e.exec(t, "y\n", "delete", id.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted expense "+id.String())
	assert.Equal(t, 1, e.fake.Expenses("alice"))

	_, _, err = e.exec(t, "", "delete", "-yes", id.String())
	require.Error(t, err)
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	_, _, err := e.exec(t, "", "login", "-user", "alice", "-password", "secret1")
	require.NoError(t, err)

	out, _, err := e.exec(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, _, err = e.exec(t, "", "summary")
	assert.ErrorContains(t, err, "not logged in")
}

func TestAddNeedsEnableCreate(t *testing.T) {
	e := newEnv(t)
	e.seed(t)
	_, _, err := e.exec(t, "", "login", "-user", "alice", "-password", "secret1")
	require.NoError(t, err)

	_, _, err = e.exec(t, "", "add", "-amount", "5")
	require.ErrorContains(t, err, "disabled")
	assert.Zero(t, e.fake.Requests("POST /expenses"))

	profile := "[display]\nenable_create = true\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "config.toml"), []byte(profile), 0o600))

	out, _, err := e.exec(t, "", "add", "-amount", "5", "-category", "Health", "-date", "2024-02-20")
	require.NoError(t, err)
	assert.Contains(t, out, "Expense added")
	assert.Contains(t, out, "Total spent ₹35.50")
	assert.Equal(t, 3, e.fake.Expenses("alice"))
}

func TestProfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	p := defaultProfile(dir)
	p.Display.Locale = "en-GB"
	p.API.Timeout = "5s"
	require.NoError(t, p.save(path))

	got, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, "en-GB", got.locale().String())
}

func TestProfileRejectsBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\ntimeout = \"soon\"\n"), 0o600))
	_, err := loadProfile(path)
	assert.ErrorContains(t, err, "api.timeout")
}

func TestUnknownCommand(t *testing.T) {
	e := newEnv(t)
	_, stderr, err := e.exec(t, "", "frobnicate")
	require.Error(t, err)
	assert.Contains(t, stderr, "Usage: expensectl")
}
