package http

import (
	"net/http"
	"sync/atomic"

	"expensedash/internal/authform"
	"expensedash/internal/log"
)

// handleLogin submits the login/register form in the mode it was rendered
// in. Every outcome answers with a reload of the dashboard: failures and
// the registration message show up as notices, a login shows the freshly
// loaded dashboard.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !ParseFormOrFail(w, r) {
		return
	}
	b := s.browserFor(w, r)
	creds := ParseCredentials(r.PostForm)

	b.form.SetMode(creds.Mode)
	b.form.SetCredentials(creds.Username, creds.Password)

	res, err := b.form.Submit(r.Context())
	if err != nil {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Auth attempt failed",
			log.FieldClientID, b.id,
			log.FieldOperation, string(creds.Mode),
			log.FieldUsername, creds.Username)
	}
	if res == authform.ResultLoggedIn {
		atomic.AddInt64(&s.appMetrics.logins, 1)
	}
	redirectHome(w, r)
}

func (s *Server) handleToggleAuthMode(w http.ResponseWriter, r *http.Request) {
	if !ParseFormOrFail(w, r) {
		return
	}
	b := s.browserFor(w, r)
	if u := r.PostForm.Get("username"); u != "" {
		b.form.SetCredentials(sanitizeInput(u), b.form.Password())
	}
	b.form.ToggleMode()
	redirectHome(w, r)
}
