// Package authform is the login/register form shown when nobody is
// signed in.
package authform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"expensedash/internal/api"
	"expensedash/internal/core"
	"expensedash/internal/log"
)

type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

const (
	AuthFailedFallback = "Auth failed"
	RegisteredMessage  = "Registered! Now log in."
)

// ParseMode maps form values to a Mode, defaulting to login.
func ParseMode(s string) Mode {
	if Mode(s) == ModeRegister {
		return ModeRegister
	}
	return ModeLogin
}

// Title is the heading and submit label for the mode.
func (m Mode) Title() string {
	if m == ModeRegister {
		return "Register"
	}
	return "Login"
}

// ToggleLabel is the label of the button that switches modes.
func (m Mode) ToggleLabel() string {
	if m == ModeRegister {
		return "Switch to login"
	}
	return "Switch to register"
}

type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
}

type SessionEstablisher interface {
	Establish(ctx context.Context, s core.Session) error
}

type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Result tells the caller what a successful submit did.
type Result int

const (
	ResultNone Result = iota
	ResultRegistered
	ResultLoggedIn
)

type Form struct {
	auth     Authenticator
	sessions SessionEstablisher
	notifier Notifier
	logger   *log.Logger

	mu       sync.Mutex
	mode     Mode
	username string
	password string
}

func New(auth Authenticator, sessions SessionEstablisher, notifier Notifier, logger *log.Logger) *Form {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Form{
		auth:     auth,
		sessions: sessions,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentAuth),
		mode:     ModeLogin,
	}
}

func (f *Form) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *Form) Username() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.username
}

// Password is kept so it survives a mode toggle, as typed.
func (f *Form) Password() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.password
}

// SetCredentials records the typed username and password verbatim.
func (f *Form) SetCredentials(username, password string) {
	f.mu.Lock()
	f.username, f.password = username, password
	f.mu.Unlock()
}

// SetMode forces a mode, e.g. the one a submitted form was rendered in.
func (f *Form) SetMode(m Mode) {
	f.mu.Lock()
	f.mode = m
	f.mu.Unlock()
}

// ToggleMode flips between login and register. Fields are kept.
func (f *Form) ToggleMode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeLogin {
		f.mode = ModeRegister
	} else {
		f.mode = ModeLogin
	}
	return f.mode
}

// Submit posts the credentials to the endpoint for the current mode.
//
// Register success notifies the user and switches to login without
// signing in. Login success persists the session, which refreshes every
// dashboard subscribed to the store. Failures notify with the server's
// detail or a generic message.
func (f *Form) Submit(ctx context.Context) (Result, error) {
	f.mu.Lock()
	mode, username, password := f.mode, f.username, f.password
	f.mu.Unlock()

	switch mode {
	case ModeRegister:
		if err := f.auth.Register(ctx, username, password); err != nil {
			return ResultNone, f.fail(ctx, log.OpRegister, username, err)
		}
		f.logger.InfoContext(ctx, "User registered", log.FieldUsername, username)
		f.notifier.Notify(ctx, RegisteredMessage)
		f.SetMode(ModeLogin)
		return ResultRegistered, nil

	default:
		token, err := f.auth.Login(ctx, username, password)
		if err != nil {
			return ResultNone, f.fail(ctx, log.OpLogin, username, err)
		}
		if err := f.sessions.Establish(ctx, core.Session{Token: token, Username: username}); err != nil {
			f.logger.ErrorContext(ctx, "Failed to persist session", log.FieldError, err)
			f.notifier.Notify(ctx, AuthFailedFallback)
			return ResultNone, fmt.Errorf("persist session: %w", err)
		}
		// the form is gone once signed in
		f.mu.Lock()
		f.password = ""
		f.mu.Unlock()
		return ResultLoggedIn, nil
	}
}

func (f *Form) fail(ctx context.Context, op, username string, err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		f.logger.WarnContext(ctx, "Auth request failed",
			log.FieldOperation, op,
			log.FieldUsername, username,
			log.FieldError, err)
	}
	f.notifier.Notify(ctx, api.DetailOr(err, AuthFailedFallback))
	return fmt.Errorf("%s: %w", op, err)
}
