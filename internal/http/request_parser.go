// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating form data
// posted by the dashboard pages.

package http

import (
	"net/http"
	"net/url"
	"strings"

	"expensedash/internal/authform"
	"expensedash/internal/core"
)

// Credentials holds a submitted login/register form.
type Credentials struct {
	Mode     authform.Mode
	Username string
	Password string
}

// ParseCredentials extracts the auth form. The password is taken verbatim;
// the username is trimmed of control characters only.
func ParseCredentials(form url.Values) Credentials {
	return Credentials{
		Mode:     authform.ParseMode(form.Get("mode")),
		Username: sanitizeInput(form.Get("username")),
		Password: form.Get("password"),
	}
}

// ParseDraft extracts the add-expense form. Missing fields fall back to
// the previous draft so a partial post does not wipe what was typed.
func ParseDraft(form url.Values, prev core.FormDraft) core.FormDraft {
	d := prev
	if v, ok := formValue(form, "amount"); ok {
		d.Amount = strings.TrimSpace(v)
	}
	if v, ok := formValue(form, "category"); ok {
		d.Category = core.Category(sanitizeInput(v))
	}
	if v, ok := formValue(form, "description"); ok {
		d.Description = sanitizeInput(v)
	}
	if v, ok := formValue(form, "date"); ok {
		d.Date = strings.TrimSpace(v)
	}
	return d
}

// ParseAnswer reads the confirmation form. Anything but an explicit yes
// is a decline.
func ParseAnswer(form url.Values) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get("answer"))) {
	case "yes", "ok", "true":
		return true
	default:
		return false
	}
}

func formValue(form url.Values, key string) (string, bool) {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// ParseFormOrFail parses the request form and answers 400 on failure.
// Returns false when the handler should stop.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return false
	}
	return true
}
