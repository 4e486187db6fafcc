package form

import (
	"strconv"

	"github.com/alanyoungcy/tontine/internal/validation"
)

// Payload is the trimmed content of every bound field at submit time.
type Payload map[string]validation.Value

func (p Payload) String(field string) string { return p[field].Text }

func (p Payload) Bool(field string) bool { return p[field].Checked }

// Float parses a numeric field, yielding 0 when it does not parse.
func (p Payload) Float(field string) float64 {
	f, err := strconv.ParseFloat(p[field].Text, 64)
	if err != nil {
		return 0
	}
	return f
}

// Int parses an integer field, yielding 0 when it does not parse.
func (p Payload) Int(field string) int {
	n, err := strconv.Atoi(p[field].Text)
	if err != nil {
		return 0
	}
	return n
}
