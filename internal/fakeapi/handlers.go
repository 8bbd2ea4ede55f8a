package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"expensedash/internal/core"
)

type ctxKey struct{}

type userIn struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (u userIn) validate() []validationError {
	var errs []validationError
	if len(u.Username) < minUsername {
		errs = append(errs, validationError{
			Loc:  []string{"body", "username"},
			Msg:  "String should have at least 3 characters",
			Type: "string_too_short",
		})
	}
	if len(u.Password) < minPassword {
		errs = append(errs, validationError{
			Loc:  []string{"body", "password"},
			Msg:  "String should have at least 6 characters",
			Type: "string_too_short",
		})
	}
	return errs
}

func decodeUser(w http.ResponseWriter, r *http.Request) (userIn, bool) {
	var u userIn
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeValidation(w, validationError{Loc: []string{"body"}, Msg: "Invalid JSON body", Type: "json_invalid"})
		return u, false
	}
	if errs := u.validate(); len(errs) > 0 {
		writeValidation(w, errs...)
		return u, false
	}
	return u, true
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	u, ok := decodeUser(w, r)
	if !ok {
		return
	}
	hash, err := bcrypt.GenerateFromPassword(truncate(u.Password), s.cost)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	s.mu.Lock()
	_, exists := s.users[u.Username]
	if !exists {
		s.users[u.Username] = hash
	}
	s.mu.Unlock()

	if exists {
		writeDetail(w, http.StatusBadRequest, "User already exists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	u, ok := decodeUser(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	hash, known := s.users[u.Username]
	s.mu.Unlock()

	if !known || bcrypt.CompareHashAndPassword(hash, truncate(u.Password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := s.Token(u.Username)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

// authed resolves the bearer token to its user before calling h.
func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeDetail(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}
		scheme, token, _ := strings.Cut(header, " ")
		if !strings.EqualFold(scheme, "bearer") || token == "" {
			writeDetail(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}
		user, err := s.parseToken(token)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	}
}

func currentUser(r *http.Request) string {
	u, _ := r.Context().Value(ctxKey{}).(string)
	return u
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

func invalidInt(loc ...string) validationError {
	return validationError{Loc: loc, Msg: "Input should be a valid integer", Type: "int_parsing"}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", 100)
	if !ok {
		writeValidation(w, invalidInt("query", "limit"))
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		writeValidation(w, invalidInt("query", "offset"))
		return
	}

	s.mu.Lock()
	rows := s.sortedExpensesLocked(currentUser(r))
	s.mu.Unlock()

	out := []expenseOut{}
	for i, e := range rows {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, toOut(e))
	}
	writeJSON(w, http.StatusOK, out)
}

type expenseIn struct {
	Amount      *core.Money `json:"amount"`
	Category    string      `json:"category"`
	Description *string     `json:"description"`
	Date        *core.Date  `json:"date"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in expenseIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeValidation(w, validationError{Loc: []string{"body"}, Msg: "Invalid JSON body", Type: "json_invalid"})
		return
	}
	var errs []validationError
	switch {
	case in.Amount == nil:
		errs = append(errs, validationError{Loc: []string{"body", "amount"}, Msg: "Field required", Type: "missing"})
	case in.Amount.Cents <= 0:
		errs = append(errs, validationError{Loc: []string{"body", "amount"}, Msg: "Input should be greater than 0", Type: "greater_than"})
	}
	if in.Category == "" {
		errs = append(errs, validationError{Loc: []string{"body", "category"}, Msg: "String should have at least 1 character", Type: "string_too_short"})
	}
	if len(errs) > 0 {
		writeValidation(w, errs...)
		return
	}

	description := ""
	if in.Description != nil {
		description = *in.Description
	}
	now := s.now()
	date := core.NewDate(now.Year(), int(now.Month()), now.Day())
	if in.Date != nil && !in.Date.IsZero() {
		date = *in.Date
	}

	s.mu.Lock()
	row := s.insertLocked(currentUser(r), *in.Amount, in.Category, description, date)
	out := toOut(row)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeValidation(w, invalidInt("path", "expense_id"))
		return
	}

	s.mu.Lock()
	row, ok := s.expenses[id]
	switch {
	case !ok:
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Expense not found")
		return
	case row.owner != currentUser(r):
		s.mu.Unlock()
		writeDetail(w, http.StatusForbidden, "Not allowed")
		return
	}
	delete(s.expenses, id)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	totals := make(map[string]int64)
	var total int64
	for _, e := range s.expenses {
		if e.owner != currentUser(r) {
			continue
		}
		totals[e.category] += e.amount.Cents
		total += e.amount.Cents
	}
	s.mu.Unlock()

	byCategory := make([]core.CategorySummaryEntry, 0, len(totals))
	for c, cents := range totals {
		byCategory = append(byCategory, core.CategorySummaryEntry{Category: c, Total: core.Money{Cents: cents}})
	}
	sort.Slice(byCategory, func(i, j int) bool {
		if byCategory[i].Total.Cents != byCategory[j].Total.Cents {
			return byCategory[i].Total.Cents > byCategory[j].Total.Cents
		}
		return byCategory[i].Category < byCategory[j].Category
	})
	writeJSON(w, http.StatusOK, core.CategorySummary{Total: core.Money{Cents: total}, ByCategory: byCategory})
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	year, ok := queryInt(r, "year", 0)
	if !ok {
		writeValidation(w, invalidInt("query", "year"))
		return
	}

	s.mu.Lock()
	totals := make(map[core.Date]int64)
	for _, e := range s.expenses {
		if e.owner != currentUser(r) || (year != 0 && e.date.Year() != year) {
			continue
		}
		month := core.NewDate(e.date.Year(), int(e.date.Month()), 1)
		totals[month] += e.amount.Cents
	}
	s.mu.Unlock()

	out := make([]core.MonthlySummaryEntry, 0, len(totals))
	for m, cents := range totals {
		out = append(out, core.MonthlySummaryEntry{Month: m, Total: core.Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month.Time) })
	writeJSON(w, http.StatusOK, out)
}
