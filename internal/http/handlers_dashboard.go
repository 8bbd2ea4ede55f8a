package http

import (
	"html/template"
	"net/http"

	"expensedash/internal/authform"
	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/log"
)

type dashboardPage struct {
	View         dashboard.View
	Locale       core.Locale
	Notices      []string
	AuthMode     authform.Mode
	AuthUsername string
	Categories   []core.Category
	Pie          core.Chart
	PieGradient  template.CSS
	Bar          core.Chart
}

// handleDashboard renders the main dashboard page, loading the three views
// the first time a session is seen.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	b := s.browserFor(w, r)
	ctx := r.Context()

	if err := b.ctrl.Mount(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Dashboard load failed",
			log.FieldClientID, b.id,
			log.FieldError, err)
	}

	view := b.ctrl.Snapshot()
	loc := s.locale(r)
	pie := b.ctrl.PieChart()
	page := dashboardPage{
		View:         view,
		Locale:       loc,
		Notices:      b.takeNotices(),
		AuthMode:     b.form.Mode(),
		AuthUsername: b.form.Username(),
		Categories:   core.Categories(),
		Pie:          pie,
		// generated from palette colours and numbers only
		PieGradient: template.CSS(pie.ConicGradient()),
		Bar:         b.ctrl.BarChart(loc),
	}
	s.render(w, r, "dashboard.html", page)
}

// handleRefresh re-runs the three reads.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b := s.browserFor(w, r)
	if err := b.ctrl.LoadAll(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Refresh failed",
			log.FieldClientID, b.id,
			log.FieldError, err)
	}
	redirectHome(w, r)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	b := s.browserFor(w, r)
	if err := b.ctrl.Logout(r.Context()); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Logout failed",
			log.FieldClientID, b.id,
			log.FieldError, err)
	}
	redirectHome(w, r)
}
