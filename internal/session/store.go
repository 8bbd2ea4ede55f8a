// Package session persists the signed-in user's bearer token and display
// name, and tells interested views when that changes.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"expensedash/internal/core"
	"expensedash/internal/log"
)

// Persisted keys.
const (
	KeyToken    = "token"
	KeyUsername = "username"
)

// Backend is the key-value storage a Store persists into.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Provider hands out one Backend per namespace (one per browser).
type Provider interface {
	Backend(namespace string) Backend
}

type EventType int

const (
	EventEstablished EventType = iota + 1
	EventCleared
)

func (t EventType) String() string {
	switch t {
	case EventEstablished:
		return "session.established"
	case EventCleared:
		return "session.cleared"
	default:
		return "session.unknown"
	}
}

type Event struct {
	Type EventType
	// Session is the new session for EventEstablished, and the one that
	// was cleared (possibly empty) for EventCleared.
	Session core.Session
}

// Handler receives session changes with the context of the call that
// caused them.
type Handler func(ctx context.Context, e Event)

type subscriber struct {
	id int
	fn Handler
}

type Store struct {
	backend Backend
	logger  *log.Logger
	now     func() time.Time

	mu     sync.Mutex
	subs   []subscriber
	nextID int
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentSession) }
}

// WithClock overrides the clock used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentSession),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current reads the persisted session. Read errors and expired tokens are
// reported as no session.
func (s *Store) Current(ctx context.Context) (core.Session, bool) {
	token, ok, err := s.backend.Get(ctx, KeyToken)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read session token", log.FieldError, err)
		return core.Session{}, false
	}
	if !ok || strings.TrimSpace(token) == "" {
		return core.Session{}, false
	}
	if s.expired(token) {
		s.logger.DebugContext(ctx, "Persisted token has expired")
		return core.Session{}, false
	}
	username, _, err := s.backend.Get(ctx, KeyUsername)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read session username", log.FieldError, err)
	}
	return core.Session{Token: token, Username: username}, true
}

// Token implements api.Credentials.
func (s *Store) Token(ctx context.Context) (string, bool) {
	sess, ok := s.Current(ctx)
	return sess.Token, ok
}

// Establish persists token and username, then notifies subscribers.
func (s *Store) Establish(ctx context.Context, sess core.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("establish session: empty token")
	}
	if err := s.backend.Set(ctx, KeyToken, sess.Token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.backend.Set(ctx, KeyUsername, sess.Username); err != nil {
		return fmt.Errorf("persist username: %w", err)
	}
	s.logger.InfoContext(ctx, "Session established", log.FieldUsername, sess.Username)
	s.publish(ctx, Event{Type: EventEstablished, Session: sess})
	return nil
}

// Clear removes both persisted values, then notifies subscribers. It
// notifies even when nothing was stored.
func (s *Store) Clear(ctx context.Context) error {
	prev, _, _ := s.backend.Get(ctx, KeyUsername)
	if err := s.backend.Delete(ctx, KeyToken, KeyUsername); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.InfoContext(ctx, "Session cleared", log.FieldUsername, prev)
	s.publish(ctx, Event{Type: EventCleared, Session: core.Session{Username: prev}})
	return nil
}

// Subscribe registers fn for session changes. Subscribers run synchronously
// in subscription order, outside the store's lock.
func (s *Store) Subscribe(fn Handler) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) publish(ctx context.Context, e Event) {
	s.mu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ctx, e)
	}
}

// expired reports whether token is a JWT whose exp claim has passed. The
// signature is not checked; opaque tokens never expire here.
func (s *Store) expired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Before(exp.Time)
}
