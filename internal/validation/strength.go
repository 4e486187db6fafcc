package validation

import (
	"unicode/utf8"
)

// Strength is the advisory classification of a password.
type Strength struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}

// strengthLevels is ascending; a score maps to the first level whose
// threshold it does not exceed.
var strengthLevels = []Strength{
	{0, "Faible"},
	{2, "Faible"},
	{3, "Moyen"},
	{4, "Fort"},
	{5, "Très fort"},
}

// PasswordStrength scores p from 0 to 5, one point each for length >= 8, a
// lowercase letter, an uppercase letter, a digit and any other character.
func PasswordStrength(p string) Strength {
	if p == "" {
		return strengthLevels[0]
	}

	var lower, upper, digit, other bool
	for _, r := range p {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}

	score := 0
	for _, hit := range []bool{utf8.RuneCountInString(p) >= 8, lower, upper, digit, other} {
		if hit {
			score++
		}
	}

	for _, level := range strengthLevels {
		if score <= level.Score {
			return Strength{Score: score, Label: level.Label}
		}
	}
	last := strengthLevels[len(strengthLevels)-1]
	return Strength{Score: score, Label: last.Label}
}
