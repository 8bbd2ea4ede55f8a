// Package api is a typed client for the expense tracker REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"expensedash/internal/core"
	"expensedash/internal/log"
)

const maxBodyBytes = 4 << 20

// Credentials supplies the bearer token for authenticated calls.
type Credentials interface {
	Token(ctx context.Context) (string, bool)
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. The configured timeout
// is not applied to a client supplied this way.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPI) }
}

// New builds a client for an absolute base URL such as
// http://localhost:8000/api. A zero timeout means requests never time out.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url %q must be absolute http(s)", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: log.New(log.DefaultConfig()).WithComponent(log.ComponentAPI),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ResolveBaseURL turns a relative base such as "/api" into an absolute URL
// against origin. Absolute bases are returned unchanged.
func ResolveBaseURL(base, origin string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "/api"
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if b.IsAbs() {
		return b.String(), nil
	}
	o, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || !o.IsAbs() {
		return "", fmt.Errorf("api origin %q must be an absolute url", origin)
	}
	return o.ResolveReference(b).String(), nil
}

// BaseURL returns the absolute API base.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) ListExpenses(ctx context.Context, token string) ([]core.Expense, error) {
	var out []core.Expense
	if err := c.do(ctx, request{method: http.MethodGet, path: "/expenses", token: token, authed: true}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Expense{}
	}
	return out, nil
}

func (c *Client) Summary(ctx context.Context, token string) (core.CategorySummary, error) {
	var out core.CategorySummary
	if err := c.do(ctx, request{method: http.MethodGet, path: "/summary", token: token, authed: true}, &out); err != nil {
		return core.CategorySummary{}, err
	}
	if out.ByCategory == nil {
		out.ByCategory = []core.CategorySummaryEntry{}
	}
	return out, nil
}

// MonthlySummary returns per-month totals in ascending month order. A year
// of 0 covers every year.
func (c *Client) MonthlySummary(ctx context.Context, token string, year int) ([]core.MonthlySummaryEntry, error) {
	var q url.Values
	if year > 0 {
		q = url.Values{"year": {strconv.Itoa(year)}}
	}
	var out []core.MonthlySummaryEntry
	if err := c.do(ctx, request{method: http.MethodGet, path: "/monthly-summary", query: q, token: token, authed: true}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.MonthlySummaryEntry{}
	}
	return out, nil
}

func (c *Client) CreateExpense(ctx context.Context, token string, e core.NewExpense) (core.Expense, error) {
	var out core.Expense
	if err := c.do(ctx, request{method: http.MethodPost, path: "/expenses", token: token, authed: true, body: e}, &out); err != nil {
		return core.Expense{}, err
	}
	return out, nil
}

func (c *Client) DeleteExpense(ctx context.Context, token string, id core.ExpenseID) error {
	if strings.TrimSpace(id.String()) == "" {
		return core.ErrInvalidID
	}
	return c.do(ctx, request{
		method:  http.MethodDelete,
		path:    "/expenses/" + id.String(),
		rawPath: "/expenses/" + url.PathEscape(id.String()),
		token:   token,
		authed:  true,
	}, nil)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges username and password for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/login", body: credentials{username, password}}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("api: login response carried no access_token")
	}
	return out.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/register", body: credentials{username, password}}, nil)
}

type request struct {
	method string
	path   string
	// rawPath is the escaped form of path, set when path holds a raw ID.
	rawPath string
	query   url.Values
	token   string
	// authed calls map 401 to ErrUnauthorized.
	authed bool
	body   any
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	method, path := r.method, r.path
	u := *c.base
	u.Path = c.base.Path + path
	if r.rawPath != "" {
		u.RawPath = c.base.EscapedPath() + r.rawPath
	}
	u.RawQuery = r.query.Encode()

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	c.logger.DebugContext(ctx, "API call",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized && r.authed {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Detail: parseDetail(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
