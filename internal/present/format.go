// Package present turns dashboard and form data into display strings for a
// French-speaking audience. Every function is total: missing input maps to
// a placeholder, never to an error.
package present

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MissingDate is shown for absent or unparseable dates.
const MissingDate = "Date non définie"

const currencySuffix = "\u00a0FCFA"

var printer = message.NewPrinter(language.French)

var longMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var shortMonths = [...]string{
	"janv.", "févr.", "mars", "avr.", "mai", "juin",
	"juil.", "août", "sept.", "oct.", "nov.", "déc.",
}

// Currency formats an amount in CFA francs with French digit grouping and
// no decimals, e.g. "25 000 FCFA".
func Currency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	return printer.Sprintf("%d", int64(math.Round(amount))) + currencySuffix
}

// CurrencyString parses a backend amount, treating garbage as zero.
func CurrencyString(s string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		f = 0
	}
	return Currency(f)
}

// Date formats t as "15 janvier 2025".
func Date(t time.Time) string {
	if t.IsZero() {
		return MissingDate
	}
	return fmt.Sprintf("%d %s %d", t.Day(), longMonths[t.Month()-1], t.Year())
}

// DateTime formats t as "15 janv., 14:30".
func DateTime(t time.Time) string {
	if t.IsZero() {
		return MissingDate
	}
	return fmt.Sprintf("%d %s, %02d:%02d", t.Day(), shortMonths[t.Month()-1], t.Hour(), t.Minute())
}

// Relative buckets the distance between t and now into days, weeks or
// months, counting any started day as a whole day.
func Relative(t, now time.Time) string {
	if t.IsZero() {
		return MissingDate
	}
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	days := int(math.Ceil(diff.Hours() / 24))

	switch {
	case days == 1:
		return "Hier"
	case days < 7:
		return fmt.Sprintf("Il y a %d jours", days)
	case days < 30:
		return fmt.Sprintf("Il y a %d semaines", days/7)
	default:
		return fmt.Sprintf("Il y a %d mois", days/30)
	}
}
