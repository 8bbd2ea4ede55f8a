package authform_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensedash/internal/api"
	"expensedash/internal/authform"
	"expensedash/internal/core"
	"expensedash/internal/log"
	"expensedash/internal/session"
	"expensedash/internal/session/memory"
)

type fakeAuth struct {
	loginToken  string
	loginErr    error
	registerErr error

	loginCalls    []string
	registerCalls []string
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (string, error) {
	f.loginCalls = append(f.loginCalls, username+":"+password)
	return f.loginToken, f.loginErr
}

func (f *fakeAuth) Register(_ context.Context, username, password string) error {
	f.registerCalls = append(f.registerCalls, username+":"+password)
	return f.registerErr
}

type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Notify(_ context.Context, msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

type fixture struct {
	auth  *fakeAuth
	store *session.Store
	notes *notes
	form  *authform.Form
}

func newFixture(auth *fakeAuth) *fixture {
	store := session.NewStore(memory.New(), session.WithLogger(log.Discard()))
	n := &notes{}
	return &fixture{
		auth:  auth,
		store: store,
		notes: n,
		form:  authform.New(auth, store, n, log.Discard()),
	}
}

func TestToggleModeKeepsFields(t *testing.T) {
	fx := newFixture(&fakeAuth{})
	fx.form.SetCredentials("alice", "secret1")

	assert.Equal(t, authform.ModeLogin, fx.form.Mode())
	assert.Equal(t, authform.ModeRegister, fx.form.ToggleMode())
	assert.Equal(t, "alice", fx.form.Username())
	assert.Equal(t, "secret1", fx.form.Password())
	assert.Equal(t, authform.ModeLogin, fx.form.ToggleMode())
}

func TestModeLabels(t *testing.T) {
	assert.Equal(t, "Login", authform.ModeLogin.Title())
	assert.Equal(t, "Register", authform.ModeRegister.Title())
	assert.Equal(t, "Switch to register", authform.ModeLogin.ToggleLabel())
	assert.Equal(t, "Switch to login", authform.ModeRegister.ToggleLabel())
	assert.Equal(t, authform.ModeRegister, authform.ParseMode("register"))
	assert.Equal(t, authform.ModeLogin, authform.ParseMode("bogus"))
}

func TestLoginEstablishesSession(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(&fakeAuth{loginToken: "tok-1"})

	var events []session.Event
	fx.store.Subscribe(func(_ context.Context, e session.Event) { events = append(events, e) })

	fx.form.SetCredentials("alice", "secret1")
	res, err := fx.form.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, authform.ResultLoggedIn, res)

	sess, ok := fx.store.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, core.Session{Token: "tok-1", Username: "alice"}, sess)
	require.Len(t, events, 1)
	assert.Equal(t, session.EventEstablished, events[0].Type)
	assert.Empty(t, fx.notes.msgs)
	assert.Equal(t, []string{"alice:secret1"}, fx.auth.loginCalls)
}

func TestRegisterSwitchesToLoginWithoutSession(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(&fakeAuth{})
	fx.form.SetMode(authform.ModeRegister)
	fx.form.SetCredentials("bob", "hunter22")

	res, err := fx.form.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, authform.ResultRegistered, res)
	assert.Equal(t, authform.ModeLogin, fx.form.Mode())
	assert.Equal(t, []string{authform.RegisteredMessage}, fx.notes.msgs)
	assert.Equal(t, "bob", fx.form.Username())

	_, ok := fx.store.Current(ctx)
	assert.False(t, ok)
	assert.Empty(t, fx.auth.loginCalls)
}

func TestSubmitFailureNotifies(t *testing.T) {
	tests := []struct {
		name string
		mode authform.Mode
		auth *fakeAuth
		want string
	}{
		{
			name: "login rejected",
			mode: authform.ModeLogin,
			auth: &fakeAuth{loginErr: &api.Error{StatusCode: http.StatusUnauthorized, Detail: "Invalid credentials"}},
			want: "Invalid credentials",
		},
		{
			name: "duplicate user",
			mode: authform.ModeRegister,
			auth: &fakeAuth{registerErr: &api.Error{StatusCode: http.StatusBadRequest, Detail: "User already exists"}},
			want: "User already exists",
		},
		{
			name: "error without detail",
			mode: authform.ModeLogin,
			auth: &fakeAuth{loginErr: &api.Error{StatusCode: http.StatusInternalServerError}},
			want: authform.AuthFailedFallback,
		},
		{
			name: "transport failure",
			mode: authform.ModeRegister,
			auth: &fakeAuth{registerErr: errors.New("dial tcp: connection refused")},
			want: authform.AuthFailedFallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fx := newFixture(tt.auth)
			fx.form.SetMode(tt.mode)
			fx.form.SetCredentials("alice", "secret1")

			res, err := fx.form.Submit(ctx)
			require.Error(t, err)
			assert.Equal(t, authform.ResultNone, res)
			assert.Equal(t, []string{tt.want}, fx.notes.msgs)
			assert.Equal(t, tt.mode, fx.form.Mode())

			_, ok := fx.store.Current(ctx)
			assert.False(t, ok)
		})
	}
}
