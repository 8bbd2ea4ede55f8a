// Command expensectl is a terminal client for the expense tracker API. It
// shares the dashboard's session handling and view logic and keeps its
// session in a local SQLite file between invocations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"expensedash/internal/api"
	"expensedash/internal/authform"
	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/log"
	"expensedash/internal/session"
	"expensedash/internal/storage"
)

const usage = `Usage: expensectl [flags] <command> [args]

Commands:
  login      log in and remember the session
  register   create an account
  list       show expenses
  summary    show totals by category and month
  add        add an expense (needs display.enable_create)
  delete ID  delete an expense after confirmation
  logout     forget the session
  config     write the effective profile to the profile path

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built from the profile.
type app struct {
	profile     Profile
	profilePath string
	repo        *storage.SQLiteRepository
	store       *session.Store
	client      *api.Client
	logger      *log.Logger
	prompt      *prompter
	render      *renderer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("expensectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	defaultPath := os.Getenv("EXPENSECTL_CONFIG")
	if defaultPath == "" {
		defaultPath = filepath.Join(defaultConfigDir(), "config.toml")
	}
	profilePath := fs.String("config", defaultPath, "Path to the TOML profile")
	baseURL := fs.String("api", "", "API base URL, overrides api.base_url")
	sessionDB := fs.String("session-db", "", "Session database path, overrides session.db_path")
	verbose := fs.Bool("v", false, "Log API calls to stderr")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	profile, err := loadProfile(*profilePath)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		profile.API.BaseURL = *baseURL
	}
	if *sessionDB != "" {
		profile.Session.DBPath = *sessionDB
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{
		Level:     level,
		Component: log.ComponentCLI,
		Handler:   slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	})

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	if cmd == "config" {
		if err := profile.save(*profilePath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Profile written to %s\n", *profilePath)
		return nil
	}

	a, err := newApp(profile, *profilePath, logger, stdin, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	switch cmd {
	case "login":
		return a.auth(ctx, authform.ModeLogin, rest)
	case "register":
		return a.auth(ctx, authform.ModeRegister, rest)
	case "list":
		return a.list(ctx)
	case "summary":
		return a.summary(ctx)
	case "add":
		return a.add(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "logout":
		return a.logout(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newApp(p Profile, path string, logger *log.Logger, stdin io.Reader, stdout io.Writer) (*app, error) {
	timeout, err := p.timeout()
	if err != nil {
		return nil, err
	}
	client, err := api.New(p.API.BaseURL, timeout, api.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteRepository(p.Session.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	namespace := p.Session.Namespace
	if namespace == "" {
		namespace = "default"
	}
	return &app{
		profile:     p,
		profilePath: path,
		repo:        repo,
		store:       session.NewStore(repo.Backend("cli:"+namespace), session.WithLogger(logger)),
		client:      client,
		logger:      logger,
		prompt:      newPrompter(stdin, stdout),
		render:      newRenderer(stdout, p.locale()),
	}, nil
}

func (a *app) close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("Failed to close session database", log.FieldError, err)
	}
}

// Notify prints a message the dashboard would have shown in a dialog.
func (a *app) Notify(_ context.Context, msg string) {
	a.render.notice(msg)
}

func (a *app) controller() *dashboard.Controller {
	return dashboard.New(a.client, a.store, a, dashboard.Config{
		EnableCreate: a.profile.Display.EnableCreate,
		Logger:       a.logger,
	})
}

// mounted returns a controller with the views loaded, or ErrNotLoggedIn.
func (a *app) mounted(ctx context.Context) (*dashboard.Controller, error) {
	ctrl := a.controller()
	if err := ctrl.Mount(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	if !ctrl.Snapshot().LoggedIn {
		ctrl.Close()
		return nil, errors.New("not logged in, run: expensectl login")
	}
	return ctrl, nil
}

func (a *app) auth(ctx context.Context, mode authform.Mode, args []string) error {
	fs := flag.NewFlagSet(string(mode), flag.ContinueOnError)
	user := fs.String("user", "", "Username (prompted when omitted)")
	password := fs.String("password", "", "Password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *user == "" {
		if *user, err = a.prompt.line("Username: "); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
	}
	if *password == "" {
		if *password, err = a.prompt.password("Password: "); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	form := authform.New(a.client, a.store, a, a.logger)
	form.SetMode(mode)
	form.SetCredentials(strings.TrimSpace(*user), *password)
	res, err := form.Submit(ctx)
	if err != nil {
		// the detail has already been printed as a notice
		return fmt.Errorf("%s failed", mode)
	}
	if res == authform.ResultLoggedIn {
		fmt.Fprintf(a.render.out, "Logged in as %s\n", form.Username())
	}
	return nil
}

func (a *app) list(ctx context.Context) error {
	ctrl, err := a.mounted(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	a.render.expenses(ctrl.Snapshot())
	return nil
}

func (a *app) summary(ctx context.Context) error {
	ctrl, err := a.mounted(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	a.render.summary(ctrl.Snapshot())
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	if !a.profile.Display.EnableCreate {
		return errors.New("adding expenses is disabled, set display.enable_create in the profile")
	}
	ctrl := a.controller()
	defer ctrl.Close()

	draft := ctrl.Snapshot().Draft
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	amount := fs.String("amount", "", "Amount, e.g. 12.50")
	category := fs.String("category", draft.Category.String(), "One of "+categoryList())
	description := fs.String("description", "", "Description")
	date := fs.String("date", draft.Date, "Date as YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctrl.UpdateDraft(core.FormDraft{
		Amount:      *amount,
		Category:    core.Category(*category),
		Description: *description,
		Date:        *date,
	})
	if err := ctrl.SubmitExpense(ctx); err != nil {
		if errors.Is(err, dashboard.ErrNotLoggedIn) {
			return errors.New("not logged in, run: expensectl login")
		}
		return err
	}
	fmt.Fprintln(a.render.out, "Expense added")
	a.render.summary(ctrl.Snapshot())
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: expensectl delete [-yes] ID")
	}
	id := core.ExpenseID(strings.TrimSpace(fs.Arg(0)))

	ctrl, err := a.mounted(ctx)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	var confirm dashboard.Confirmer = a.prompt
	if *yes {
		confirm = dashboard.Answer(true)
	}
	before := len(ctrl.Snapshot().Expenses)
	if err := ctrl.DeleteExpense(ctx, id, confirm); err != nil {
		return err
	}
	if len(ctrl.Snapshot().Expenses) < before {
		fmt.Fprintf(a.render.out, "Deleted expense %s\n", id)
	} else {
		fmt.Fprintln(a.render.out, "Cancelled")
	}
	return nil
}

func (a *app) logout(ctx context.Context) error {
	ctrl := a.controller()
	defer ctrl.Close()
	if err := ctrl.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.render.out, "Logged out")
	return nil
}

func categoryList() string {
	cats := core.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
