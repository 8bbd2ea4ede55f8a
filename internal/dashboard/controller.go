// Package dashboard holds the main screen's state: the three server views,
// the add-expense draft and the signed-in user, and keeps them in step with
// the session.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expensedash/internal/amqp"
	"expensedash/internal/api"
	"expensedash/internal/core"
	"expensedash/internal/log"
	"expensedash/internal/session"
)

const (
	ConfirmDeletePrompt  = "Delete this expense?"
	DeleteFailedFallback = "Delete failed"
	CreateFailedFallback = "Create failed"
)

// ErrNotLoggedIn is returned by mutations attempted without a session.
var ErrNotLoggedIn = errors.New("dashboard: not logged in")

// API is the subset of the REST client the controller drives.
type API interface {
	ListExpenses(ctx context.Context, token string) ([]core.Expense, error)
	Summary(ctx context.Context, token string) (core.CategorySummary, error)
	MonthlySummary(ctx context.Context, token string, year int) ([]core.MonthlySummaryEntry, error)
	CreateExpense(ctx context.Context, token string, e core.NewExpense) (core.Expense, error)
	DeleteExpense(ctx context.Context, token string, id core.ExpenseID) error
}

// SessionStore is what the controller needs from session.Store.
type SessionStore interface {
	Current(ctx context.Context) (core.Session, bool)
	Clear(ctx context.Context) error
	Subscribe(fn session.Handler) (unsubscribe func())
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type NotifyFunc func(ctx context.Context, msg string)

func (f NotifyFunc) Notify(ctx context.Context, msg string) { f(ctx, msg) }

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Answer is a Confirmer whose answer is already known, e.g. from a
// submitted confirmation form.
type Answer bool

func (a Answer) Confirm(context.Context, string) bool { return bool(a) }

type Config struct {
	// EnableCreate wires the add-expense form to POST /expenses. When false
	// submitting the form does nothing.
	EnableCreate bool
	Now          func() time.Time
	Logger       *log.Logger
	Events       amqp.Publisher
}

// View is a detached copy of the controller state for rendering.
type View struct {
	Username      string
	LoggedIn      bool
	Loaded        bool
	CreateEnabled bool
	Expenses      []core.Expense
	Summary       core.CategorySummary
	Monthly       []core.MonthlySummaryEntry
	Draft         core.FormDraft
}

type Controller struct {
	api      API
	store    SessionStore
	notifier Notifier
	events   amqp.Publisher
	logger   *log.Logger
	sl       *log.StructuredLogger
	now      func() time.Time
	create   bool

	mu         sync.Mutex
	signedIn   bool
	username   string
	expenses   []core.Expense
	summary    core.CategorySummary
	monthly    []core.MonthlySummaryEntry
	draft      core.FormDraft
	generation uint64
	loaded     bool

	unsubscribe func()
}

func New(client API, store SessionStore, notifier Notifier, cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if cfg.Events == nil {
		cfg.Events = amqp.NoopPublisher{}
	}
	if notifier == nil {
		notifier = NotifyFunc(func(context.Context, string) {})
	}
	logger := cfg.Logger.WithComponent(log.ComponentDashboard)
	c := &Controller{
		api:      client,
		store:    store,
		notifier: notifier,
		events:   cfg.Events,
		logger:   logger,
		sl:       log.NewStructuredLogger(logger),
		now:      cfg.Now,
		create:   cfg.EnableCreate,
		expenses: []core.Expense{},
		summary:  core.EmptyCategorySummary(),
		monthly:  []core.MonthlySummaryEntry{},
		draft:    core.NewFormDraft(cfg.Now()),
	}
	c.unsubscribe = store.Subscribe(c.onSession)
	return c
}

// Close detaches the controller from the session store.
func (c *Controller) Close() {
	c.unsubscribe()
}

func (c *Controller) onSession(ctx context.Context, e session.Event) {
	switch e.Type {
	case session.EventEstablished:
		c.mu.Lock()
		c.generation++
		c.resetViewsLocked()
		c.signedIn = true
		c.username = e.Session.Username
		c.mu.Unlock()
		c.publish(ctx, amqp.EventSessionEstablished, e.Session.Username, "")
		if err := c.LoadAll(ctx); err != nil {
			c.logger.DebugContext(ctx, "Load after login ended early", log.FieldError, err)
		}
	case session.EventCleared:
		c.mu.Lock()
		c.signOutLocked()
		c.mu.Unlock()
		c.publish(ctx, amqp.EventSessionCleared, e.Session.Username, "")
	}
}

func (c *Controller) signOutLocked() {
	c.generation++
	c.resetViewsLocked()
	c.signedIn = false
	c.username = ""
}

func (c *Controller) resetViewsLocked() {
	c.expenses = []core.Expense{}
	c.summary = core.EmptyCategorySummary()
	c.monthly = []core.MonthlySummaryEntry{}
	c.loaded = false
}

// Mount is called whenever the dashboard is shown. It loads the views once
// per session and drops stale state when the session has gone away.
func (c *Controller) Mount(ctx context.Context) error {
	sess, ok := c.store.Current(ctx)
	c.mu.Lock()
	if !ok {
		if c.signedIn || c.loaded {
			c.signOutLocked()
		}
		c.mu.Unlock()
		return nil
	}
	c.signedIn = true
	c.username = sess.Username
	loaded := c.loaded
	c.mu.Unlock()

	if loaded {
		return nil
	}
	return c.LoadAll(ctx)
}

// LoadAll fetches expenses, the category summary and the monthly summary
// concurrently. A 401 on any of them clears the session and cancels the
// other two; any other failure leaves that view as it was. Results are
// dropped if the session changed while the requests were in flight.
func (c *Controller) LoadAll(ctx context.Context) error {
	sess, ok := c.store.Current(ctx)
	if !ok {
		return nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	var (
		expenses             []core.Expense
		summary              core.CategorySummary
		monthly              []core.MonthlySummaryEntry
		gotExp, gotSum, gotM bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.api.ListExpenses(gctx, sess.Token)
		if err != nil {
			return c.readFailure(gctx, "expenses", err)
		}
		expenses, gotExp = v, true
		return nil
	})
	g.Go(func() error {
		v, err := c.api.Summary(gctx, sess.Token)
		if err != nil {
			return c.readFailure(gctx, "summary", err)
		}
		summary, gotSum = v, true
		return nil
	})
	g.Go(func() error {
		v, err := c.api.MonthlySummary(gctx, sess.Token, 0)
		if err != nil {
			return c.readFailure(gctx, "monthly_summary", err)
		}
		monthly, gotM = v, true
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			c.forceLogoutIfCurrent(ctx, gen)
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		c.logger.DebugContext(ctx, "Discarding stale load",
			log.FieldGeneration, gen)
		return nil
	}
	if gotExp {
		c.expenses = expenses
	}
	if gotSum {
		c.summary = summary
	}
	if gotM {
		c.monthly = monthly
	}
	c.loaded = true
	return nil
}

// readFailure decides what a failed read does to the rest of the cycle:
// unauthorized aborts it, anything else is only logged.
func (c *Controller) readFailure(ctx context.Context, view string, err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		return err
	}
	c.sl.LogViewLoadFailed(ctx, view, errorType(err), err)
	return nil
}

func errorType(err error) string {
	var apiErr *api.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return log.ErrorTypeNotFound
	case errors.As(err, &apiErr):
		return log.ErrorTypeInternal
	default:
		return log.ErrorTypeNetwork
	}
}

func (c *Controller) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// forceLogoutIfCurrent clears the session after a 401, unless the session
// has changed since the rejected request was issued.
func (c *Controller) forceLogoutIfCurrent(ctx context.Context, gen uint64) {
	if c.currentGeneration() != gen {
		c.logger.DebugContext(ctx, "Ignoring unauthorized response from a previous session",
			log.FieldGeneration, gen)
		return
	}
	c.logger.InfoContext(ctx, "Server rejected the session, logging out")
	if err := c.Logout(ctx); err != nil {
		c.logger.ErrorContext(ctx, "Failed to clear session", log.FieldError, err)
	}
}

// Logout clears the persisted session and resets every view to empty. The
// views are reset even if the session backend fails.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.store.Clear(ctx)
	c.mu.Lock()
	c.signOutLocked()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// UpdateDraft records what the user typed into the add-expense form.
func (c *Controller) UpdateDraft(d core.FormDraft) {
	c.mu.Lock()
	c.draft = d
	c.mu.Unlock()
}

// SubmitExpense submits the current draft. Unless creation is enabled it
// is a no-op: no request, no state change.
func (c *Controller) SubmitExpense(ctx context.Context) error {
	if !c.create {
		return nil
	}
	sess, ok := c.store.Current(ctx)
	if !ok {
		return ErrNotLoggedIn
	}

	c.mu.Lock()
	draft := c.draft
	c.mu.Unlock()

	req, err := draft.Parse()
	if err != nil {
		c.notifier.Notify(ctx, CreateFailedFallback+": "+err.Error())
		return err
	}

	gen := c.currentGeneration()
	created, err := c.api.CreateExpense(ctx, sess.Token, req)
	if errors.Is(err, api.ErrUnauthorized) {
		c.forceLogoutIfCurrent(ctx, gen)
		return err
	}
	if err != nil {
		c.notifier.Notify(ctx, api.DetailOr(err, CreateFailedFallback))
		return err
	}

	c.sl.LogExpenseCreated(ctx, created.ID.String(), req.Amount.Cents, req.Category.String(), sess.Username)
	c.publish(ctx, amqp.EventExpenseCreated, sess.Username, created.ID.String())

	c.mu.Lock()
	c.draft = core.NewFormDraft(c.now())
	c.mu.Unlock()
	return c.LoadAll(ctx)
}

// DeleteExpense asks for confirmation and deletes id. A successful delete
// is followed by exactly one LoadAll.
func (c *Controller) DeleteExpense(ctx context.Context, id core.ExpenseID, confirm Confirmer) error {
	if !confirm.Confirm(ctx, ConfirmDeletePrompt) {
		return nil
	}
	sess, ok := c.store.Current(ctx)
	if !ok {
		return ErrNotLoggedIn
	}

	gen := c.currentGeneration()
	err := c.api.DeleteExpense(ctx, sess.Token, id)
	if errors.Is(err, api.ErrUnauthorized) {
		c.forceLogoutIfCurrent(ctx, gen)
		return err
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Delete rejected",
			log.FieldExpenseID, id.String(),
			log.FieldError, err)
		c.notifier.Notify(ctx, api.DetailOr(err, DeleteFailedFallback))
		return err
	}

	c.sl.LogExpenseDeleted(ctx, id.String(), sess.Username)
	c.publish(ctx, amqp.EventExpenseDeleted, sess.Username, id.String())
	return c.LoadAll(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Username:      c.username,
		LoggedIn:      c.signedIn,
		Loaded:        c.loaded,
		CreateEnabled: c.create,
		Expenses:      append([]core.Expense{}, c.expenses...),
		Summary: core.CategorySummary{
			Total:      c.summary.Total,
			ByCategory: append([]core.CategorySummaryEntry{}, c.summary.ByCategory...),
		},
		Monthly: append([]core.MonthlySummaryEntry{}, c.monthly...),
		Draft:   c.draft,
	}
}

// PieChart shapes the category summary for the pie chart.
func (c *Controller) PieChart() core.Chart {
	return core.PieChart(c.Snapshot().Summary)
}

// BarChart shapes the monthly summary for the bar chart, with month labels
// in the viewer's locale.
func (c *Controller) BarChart(l core.Locale) core.Chart {
	return core.BarChart(c.Snapshot().Monthly, l)
}

func (c *Controller) publish(ctx context.Context, eventType, username, expenseID string) {
	if err := c.events.Publish(ctx, amqp.NewDashboardEvent(eventType, username, expenseID)); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish event",
			log.FieldEventType, eventType,
			log.FieldError, err)
	}
}
