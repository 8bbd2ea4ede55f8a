package http

import (
	"bytes"
	"html/template"
	"net/http"

	"expensedash/internal/core"
	"expensedash/internal/log"
)

func (s *Server) locale(r *http.Request) core.Locale {
	return core.MatchLocale(r.Header.Get("Accept-Language"), s.defaultLocale)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// redirectHome answers a form post with a full reload of the dashboard.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"currency": core.FormatCurrency,
		"date":     core.FormatDate,
		"month":    core.MonthLabel,
		"orDash":   core.DescriptionOrDash,
	}
}
