package http

import (
	"errors"
	"net/http"
	"strings"

	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/log"
	"expensedash/internal/plotters"
)

type confirmPage struct {
	Locale core.Locale
	Prompt string
	ID     core.ExpenseID
}

// handleCreateExpense binds the posted fields to the draft and submits it.
// With creation disabled the submit does nothing and the page comes back
// with the fields as typed.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	if !ParseFormOrFail(w, r) {
		return
	}
	b := s.browserFor(w, r)
	b.ctrl.UpdateDraft(ParseDraft(r.PostForm, b.ctrl.Snapshot().Draft))

	if err := b.ctrl.SubmitExpense(r.Context()); err != nil {
		if errors.Is(err, dashboard.ErrNotLoggedIn) {
			b.Notify(r.Context(), "Please login or register to add expenses")
		}
		log.FromContext(r.Context()).InfoContext(r.Context(), "Expense not created",
			log.FieldClientID, b.id,
			log.FieldError, err)
	}
	redirectHome(w, r)
}

// handleConfirmDelete asks the question the delete button needs answered.
func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	b := s.browserFor(w, r)
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || !b.ctrl.Snapshot().LoggedIn {
		redirectHome(w, r)
		return
	}
	s.render(w, r, "confirm.html", confirmPage{
		Locale: s.locale(r),
		Prompt: dashboard.ConfirmDeletePrompt,
		ID:     core.ExpenseID(id),
	})
}

// handleDeleteExpense applies the user's answer to the confirmation.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if !ParseFormOrFail(w, r) {
		return
	}
	b := s.browserFor(w, r)
	id := core.ExpenseID(strings.TrimSpace(r.PathValue("id")))
	answer := dashboard.Answer(ParseAnswer(r.PostForm))

	if err := b.ctrl.DeleteExpense(r.Context(), id, answer); err != nil {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Expense not deleted",
			log.FieldClientID, b.id,
			log.FieldExpenseID, id.String(),
			log.FieldError, err)
	}
	redirectHome(w, r)
}

// handleMonthlyChart renders the monthly totals as a PNG bar chart.
func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	b := s.browserFor(w, r)
	img, err := plotters.BarChartPNG(b.ctrl.BarChart(s.locale(r)))
	if errors.Is(err, plotters.ErrNoData) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart rendering failed", log.FieldError, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(img)
}
