// Package fakeapi is an in-memory implementation of the expense tracker
// REST API. It backs the tests of the client, the web front end, the CLI
// and the browser suite.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"expensedash/internal/core"
	"expensedash/internal/log"
)

const (
	// Prefix is where the API is mounted.
	Prefix = "/api"

	DefaultTokenTTL = 7 * 24 * time.Hour

	minUsername = 3
	minPassword = 6
	// bcrypt only looks at the first 72 bytes.
	maxPasswordBytes = 72
)

type (
	expense struct {
		id          int64
		owner       string
		amount      core.Money
		category    string
		description string
		date        core.Date
		createdAt   time.Time
	}

	expenseOut struct {
		ID          int64          `json:"id"`
		Amount      core.Money     `json:"amount"`
		Category    string         `json:"category"`
		Description string         `json:"description"`
		Date        core.Date      `json:"date"`
		CreatedAt   core.Timestamp `json:"created_at"`
	}

	// validationError mirrors one item of a 422 detail list.
	validationError struct {
		Loc  []string `json:"loc"`
		Msg  string   `json:"msg"`
		Type string   `json:"type"`
	}

	failure struct {
		status int
		detail string
	}
)

// Server holds users and expenses in memory.
type Server struct {
	mu       sync.Mutex
	users    map[string][]byte
	expenses map[int64]*expense
	nextID   int64
	requests map[string]int
	failures map[string]failure

	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *log.Logger

	mux *http.ServeMux
}

type Option func(*Server)

func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithClock overrides the clock used for token expiry and default dates.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l.WithComponent("fakeapi") }
}

// New returns an empty API. Password hashing uses the minimum bcrypt cost
// so tests stay fast.
func New(opts ...Option) *Server {
	s := &Server{
		users:    make(map[string][]byte),
		expenses: make(map[int64]*expense),
		requests: make(map[string]int),
		failures: make(map[string]failure),
		secret:   []byte("change_me_secret"),
		ttl:      DefaultTokenTTL,
		cost:     bcrypt.MinCost,
		now:      time.Now,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.route("POST /register", s.handleRegister)
	s.route("POST /login", s.handleLogin)
	s.route("GET /expenses", s.authed(s.handleList))
	s.route("POST /expenses", s.authed(s.handleCreate))
	s.route("DELETE /expenses/{id}", s.authed(s.handleDelete))
	s.route("GET /summary", s.authed(s.handleSummary))
	s.route("GET /monthly-summary", s.authed(s.handleMonthly))
	return s
}

// route registers h under Prefix and counts every call by its pattern,
// e.g. "GET /expenses".
func (s *Server) route(pattern string, h http.HandlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	s.mux.HandleFunc(method+" "+Prefix+path, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[pattern]++
		f, failing := s.failures[pattern]
		s.mu.Unlock()

		if failing {
			writeDetail(w, f.status, f.detail)
			return
		}
		s.logger.Debug("Fake API call", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		h(w, r)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Requests reports how many times pattern (e.g. "GET /summary") was called.
func (s *Server) Requests(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[pattern]
}

// ResetRequests zeroes every request counter.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	s.requests = make(map[string]int)
	s.mu.Unlock()
}

// Fail makes every call to pattern answer status with detail until
// Recover is called. An empty detail sends an empty error body.
func (s *Server) Fail(pattern string, status int, detail string) {
	s.mu.Lock()
	s.failures[pattern] = failure{status: status, detail: detail}
	s.mu.Unlock()
}

func (s *Server) Recover(pattern string) {
	s.mu.Lock()
	delete(s.failures, pattern)
	s.mu.Unlock()
}

// AddUser registers a user directly.
func (s *Server) AddUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword(truncate(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return errors.New("user already exists")
	}
	s.users[username] = hash
	return nil
}

// AddExpense stores an expense for owner and returns its id.
func (s *Server) AddExpense(owner string, e core.NewExpense) core.ExpenseID {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.insertLocked(owner, e.Amount, e.Category.String(), e.Description, e.Date)
	return core.ExpenseID(strconv.FormatInt(row.id, 10))
}

// Token issues a token for username as the login endpoint would.
func (s *Server) Token(username string) (string, error) {
	return s.issueToken(username, s.now().Add(s.ttl))
}

// ExpiredToken issues a correctly signed token that expired an hour ago.
func (s *Server) ExpiredToken(username string) (string, error) {
	return s.issueToken(username, s.now().Add(-time.Hour))
}

// Expenses returns how many expenses owner has.
func (s *Server) Expenses(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.expenses {
		if e.owner == owner {
			n++
		}
	}
	return n
}

func (s *Server) insertLocked(owner string, amount core.Money, category, description string, date core.Date) *expense {
	s.nextID++
	row := &expense{
		id:          s.nextID,
		owner:       owner,
		amount:      amount,
		category:    category,
		description: description,
		date:        date,
		createdAt:   s.now().UTC(),
	}
	s.expenses[row.id] = row
	return row
}

func (s *Server) issueToken(username string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	if detail == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, errs ...validationError) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": errs})
}

func toOut(e *expense) expenseOut {
	return expenseOut{
		ID:          e.id,
		Amount:      e.amount,
		Category:    e.category,
		Description: e.description,
		Date:        e.date,
		CreatedAt:   core.Timestamp{Time: e.createdAt},
	}
}

// sortedExpenses returns owner's expenses newest date first, ties broken by
// descending id.
func (s *Server) sortedExpensesLocked(owner string) []*expense {
	var out []*expense
	for _, e := range s.expenses {
		if e.owner == owner {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].date.Equal(out[j].date.Time) {
			return out[i].date.After(out[j].date.Time)
		}
		return out[i].id > out[j].id
	})
	return out
}
