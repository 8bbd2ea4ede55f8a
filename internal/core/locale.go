package core

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Locale carries the viewer's date conventions. Currency rendering never
// depends on it.
type Locale struct {
	Tag    language.Tag
	order  dateOrder
	sep    string
	pad    bool
	months [12]string
}

type dateOrder int

const (
	monthDayYear dateOrder = iota
	dayMonthYear
)

var englishMonths = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var locales = []Locale{
	{Tag: language.English, order: monthDayYear, sep: "/", months: englishMonths},
	{Tag: language.BritishEnglish, order: dayMonthYear, sep: "/", pad: true, months: englishMonths},
	{Tag: language.MustParse("en-IN"), order: dayMonthYear, sep: "/", months: englishMonths},
	{Tag: language.Italian, order: dayMonthYear, sep: "/", months: [12]string{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"}},
	{Tag: language.German, order: dayMonthYear, sep: ".", months: [12]string{"Jan.", "Feb.", "März", "Apr.", "Mai", "Juni", "Juli", "Aug.", "Sept.", "Okt.", "Nov.", "Dez."}},
	{Tag: language.French, order: dayMonthYear, sep: "/", pad: true, months: [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}},
	{Tag: language.Spanish, order: dayMonthYear, sep: "/", months: [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}},
	{Tag: language.Hindi, order: dayMonthYear, sep: "/", months: [12]string{"जन॰", "फ़र॰", "मार्च", "अप्रैल", "मई", "जून", "जुल॰", "अग॰", "सित॰", "अक्तू॰", "नव॰", "दिस॰"}},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(locales))
	for i, l := range locales {
		tags[i] = l.Tag
	}
	return language.NewMatcher(tags)
}()

// DefaultLocale is US English.
func DefaultLocale() Locale {
	return locales[0]
}

// SupportedLocales lists the locale tags the formatters know about.
func SupportedLocales() []string {
	out := make([]string, len(locales))
	for i, l := range locales {
		out[i] = l.Tag.String()
	}
	return out
}

// LookupLocale resolves a single BCP 47 tag, falling back to the default
// when nothing supported is close enough.
func LookupLocale(tag string) Locale {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return DefaultLocale()
	}
	return match(DefaultLocale(), t)
}

// MatchLocale picks the best locale for an Accept-Language header value.
func MatchLocale(acceptLanguage string, fallback Locale) Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	return match(fallback, tags...)
}

func match(fallback Locale, tags ...language.Tag) Locale {
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(locales) {
		return fallback
	}
	return locales[idx]
}

func (l Locale) String() string {
	return l.Tag.String()
}

// FormatDate renders a short numeric date in the locale's order.
func FormatDate(d Date, l Locale) string {
	if d.IsZero() {
		return ""
	}
	if l.sep == "" {
		l = DefaultLocale()
	}
	day := numberPart(d.Day(), l.pad)
	month := numberPart(int(d.Month()), l.pad)
	year := strconv.Itoa(d.Year())
	if l.order == monthDayYear {
		return month + l.sep + day + l.sep + year
	}
	return day + l.sep + month + l.sep + year
}

// MonthLabel renders the abbreviated month and the year, e.g. "Jan 2024".
func MonthLabel(d Date, l Locale) string {
	if d.IsZero() {
		return ""
	}
	if l.months[0] == "" {
		l = DefaultLocale()
	}
	return l.months[d.Month()-1] + " " + strconv.Itoa(d.Year())
}

// DescriptionOrDash substitutes an em dash for an empty description.
func DescriptionOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

func numberPart(n int, pad bool) string {
	s := strconv.Itoa(n)
	if pad && n < 10 {
		return "0" + s
	}
	return s
}
