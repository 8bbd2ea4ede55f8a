package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Food         Category = "Food"
	Transport    Category = "Transport"
	Shopping     Category = "Shopping"
	Subscription Category = "Subscription"
	Health       Category = "Health"
	Other        Category = "Other"
)

const dateLayout = "2006-01-02"

type (
	// Category is one of the fixed expense categories. Values coming back
	// from the server are kept verbatim even when they are not in the set.
	Category string

	// ExpenseID is the server's opaque identifier for an expense.
	ExpenseID string

	Date struct {
		time.Time
	}

	// Timestamp is a server-assigned instant such as created_at.
	Timestamp struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          ExpenseID `json:"id"`
		Amount      Money     `json:"amount"`
		Category    Category  `json:"category"`
		Description string    `json:"description"`
		Date        Date      `json:"date"`
		CreatedAt   Timestamp `json:"created_at"`
	}

	CategorySummaryEntry struct {
		Category string `json:"category"`
		Total    Money  `json:"total"`
	}

	CategorySummary struct {
		Total      Money                  `json:"total"`
		ByCategory []CategorySummaryEntry `json:"by_category"`
	}

	MonthlySummaryEntry struct {
		Month Date  `json:"month"`
		Total Money `json:"total"`
	}

	Session struct {
		Token    string
		Username string
	}

	// FormDraft is the uncommitted input of the add-expense form.
	FormDraft struct {
		Amount      string
		Category    Category
		Description string
		Date        string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidID       = errors.New("invalid expense id")
)

// Categories returns the selectable categories in display order.
func Categories() []Category {
	return []Category{Food, Transport, Shopping, Subscription, Health, Other}
}

func (c Category) IsValid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

func (id ExpenseID) String() string {
	return string(id)
}

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *ExpenseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrInvalidID
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExpenseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidID, data)
	}
	*id = ExpenseID(n.String())
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD, tolerating a trailing time component.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*ts = Timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			*ts = Timestamp{Time: t}
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Format(time.RFC3339Nano))
}

// Valid reports whether the session carries a usable token.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.Token) != ""
}

// EmptyCategorySummary is the logged-out value of the category view.
func EmptyCategorySummary() CategorySummary {
	return CategorySummary{ByCategory: []CategorySummaryEntry{}}
}

// SumByCategory adds up the per-category totals.
func (s CategorySummary) SumByCategory() Money {
	var total int64
	for _, e := range s.ByCategory {
		total += e.Total.Cents
	}
	return Money{Cents: total}
}

// NewFormDraft returns the initial draft: Food, dated today.
func NewFormDraft(now time.Time) FormDraft {
	return FormDraft{
		Category: Food,
		Date:     now.Format(dateLayout),
	}
}

// NewExpense is the request body for creating an expense.
type NewExpense struct {
	Amount      Money    `json:"amount"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Date        Date     `json:"date"`
}

// Parse turns the draft into a create request.
func (f FormDraft) Parse() (NewExpense, error) {
	cents, err := ParseDecimalToCents(f.Amount)
	if err != nil {
		return NewExpense{}, err
	}
	if !f.Category.IsValid() {
		return NewExpense{}, fmt.Errorf("%w: %q", ErrInvalidCategory, f.Category)
	}
	d, err := ParseDate(f.Date)
	if err != nil {
		return NewExpense{}, err
	}
	return NewExpense{
		Amount:      Money{Cents: cents},
		Category:    f.Category,
		Description: strings.TrimSpace(f.Description),
		Date:        d,
	}, nil
}
