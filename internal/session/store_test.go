package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensedash/internal/core"
	"expensedash/internal/log"
	"expensedash/internal/session"
	"expensedash/internal/session/memory"
)

func newStore(b session.Backend, opts ...session.Option) *session.Store {
	return session.NewStore(b, append([]session.Option{session.WithLogger(log.Discard())}, opts...)...)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestEstablishPersistsBothValues(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s := newStore(b)

	require.NoError(t, s.Establish(ctx, core.Session{Token: "tok", Username: "alice"}))

	v, ok, _ := b.Get(ctx, session.KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
	v, ok, _ = b.Get(ctx, session.KeyUsername)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)

	cur, ok := s.Current(ctx)
	assert.True(t, ok)
	assert.Equal(t, core.Session{Token: "tok", Username: "alice"}, cur)
}

func TestEstablishRejectsEmptyToken(t *testing.T) {
	s := newStore(memory.New())
	assert.Error(t, s.Establish(context.Background(), core.Session{Username: "alice"}))
}

func TestClearRemovesBothValues(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	s := newStore(b)
	require.NoError(t, s.Establish(ctx, core.Session{Token: "tok", Username: "alice"}))

	require.NoError(t, s.Clear(ctx))

	_, ok, _ := b.Get(ctx, session.KeyToken)
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, session.KeyUsername)
	assert.False(t, ok)
	_, ok = s.Current(ctx)
	assert.False(t, ok)
}

func TestSubscribersNotifiedInOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(memory.New())
	var got []string
	unsubA := s.Subscribe(func(_ context.Context, e session.Event) { got = append(got, "a:"+e.Type.String()) })
	s.Subscribe(func(_ context.Context, e session.Event) { got = append(got, "b:"+e.Type.String()) })

	require.NoError(t, s.Establish(ctx, core.Session{Token: "tok", Username: "alice"}))
	unsubA()
	unsubA() // idempotent
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, []string{
		"a:session.established",
		"b:session.established",
		"b:session.cleared",
	}, got)
}

func TestSubscriberMayReadStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(memory.New())
	var seen core.Session
	s.Subscribe(func(context.Context, session.Event) { seen, _ = s.Current(ctx) })

	require.NoError(t, s.Establish(ctx, core.Session{Token: "tok", Username: "bob"}))
	assert.Equal(t, "bob", seen.Username)
}

func TestExpiredTokenIsNoSession(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newStore(memory.New(), session.WithClock(func() time.Time { return now }))

	require.NoError(t, s.Establish(ctx, core.Session{Token: signed(t, now.Add(-time.Minute)), Username: "alice"}))
	_, ok := s.Current(ctx)
	assert.False(t, ok)

	require.NoError(t, s.Establish(ctx, core.Session{Token: signed(t, now.Add(time.Hour)), Username: "alice"}))
	tok, ok := s.Token(ctx)
	assert.True(t, ok)
	assert.NotEmpty(t, tok)
}

func TestOpaqueTokenNeverExpires(t *testing.T) {
	ctx := context.Background()
	s := newStore(memory.New())
	require.NoError(t, s.Establish(ctx, core.Session{Token: "not-a-jwt", Username: "alice"}))
	_, ok := s.Current(ctx)
	assert.True(t, ok)
}

type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingBackend) Set(context.Context, string, string) error         { return f.err }
func (f failingBackend) Delete(context.Context, ...string) error           { return f.err }

func TestBackendErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk gone")
	s := newStore(failingBackend{err: boom})

	_, ok := s.Current(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Establish(ctx, core.Session{Token: "t"}), boom)
	assert.ErrorIs(t, s.Clear(ctx), boom)
}

func TestMemoryProviderNamespaces(t *testing.T) {
	ctx := context.Background()
	p := memory.NewProvider()
	require.NoError(t, p.Backend("a").Set(ctx, "k", "1"))
	_, ok, _ := p.Backend("b").Get(ctx, "k")
	assert.False(t, ok)
	v, ok, _ := p.Backend("a").Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}
