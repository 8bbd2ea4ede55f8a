package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"expensedash/internal/core"
	"expensedash/internal/dashboard"
)

const barWidth = 30

type renderer struct {
	out    io.Writer
	lg     *lipgloss.Renderer
	locale core.Locale

	header lipgloss.Style
	muted  lipgloss.Style
	total  lipgloss.Style
	alert  lipgloss.Style
}

func newRenderer(out io.Writer, l core.Locale) *renderer {
	r := lipgloss.NewRenderer(out)
	return &renderer{
		out:    out,
		lg:     r,
		locale: l,
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		total:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		alert:  r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func (r *renderer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.muted).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := r.lg.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s
		})
}

func (r *renderer) notice(msg string) {
	fmt.Fprintln(r.out, r.alert.Render("! "+msg))
}

func (r *renderer) expenses(v dashboard.View) {
	if len(v.Expenses) == 0 {
		fmt.Fprintln(r.out, r.muted.Render("No expenses yet"))
		return
	}
	t := r.newTable("ID", "Date", "Description", "Category", "Amount")
	for _, e := range v.Expenses {
		t.Row(e.ID.String(), core.FormatDate(e.Date, r.locale), core.DescriptionOrDash(e.Description), e.Category.String(), core.FormatCurrency(e.Amount))
	}
	fmt.Fprintln(r.out, t.Render())
	fmt.Fprintln(r.out, r.muted.Render(fmt.Sprintf("%d items", len(v.Expenses))))
}

func (r *renderer) summary(v dashboard.View) {
	fmt.Fprintln(r.out, r.header.Render("Total spent")+" "+r.total.Render(core.FormatCurrency(v.Summary.Total)))

	if len(v.Summary.ByCategory) == 0 {
		fmt.Fprintln(r.out, r.muted.Render("No data yet"))
	} else {
		t := r.newTable("Category", "Total")
		for _, e := range v.Summary.ByCategory {
			t.Row(e.Category, core.FormatCurrency(e.Total))
		}
		t.Row("Total", core.FormatCurrency(v.Summary.SumByCategory()))
		fmt.Fprintln(r.out, t.Render())
	}

	bars := core.BarChart(v.Monthly, r.locale)
	if len(bars.Points) == 0 {
		return
	}
	fmt.Fprintln(r.out, r.header.Render(bars.Label))
	for _, p := range bars.Points {
		n := int(p.Percent * barWidth / 100)
		if n == 0 && p.Value > 0 {
			n = 1
		}
		bar := r.lg.NewStyle().Foreground(lipgloss.Color(p.Color)).Render(strings.Repeat("█", n))
		fmt.Fprintf(r.out, "%-10s %s %s\n", p.Label, bar, p.Display)
	}
}
