package validation

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		want     Strength
	}{
		{"", Strength{0, "Faible"}},
		{"a", Strength{1, "Faible"}},
		{"aA", Strength{2, "Faible"}},
		{"aA1", Strength{3, "Moyen"}},
		{"aaaaaaaa", Strength{2, "Faible"}},
		{"aaaaAAAA", Strength{3, "Moyen"}},
		{"aaaaAAA1", Strength{4, "Fort"}},
		{"aaaAAA1!", Strength{5, "Très fort"}},
		{"é", Strength{1, "Faible"}},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, PasswordStrength(tt.password))
		})
	}
}

func TestPasswordStrengthProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("score stays within 0..5", prop.ForAll(
		func(p string) bool {
			s := PasswordStrength(p).Score
			return s >= 0 && s <= 5
		},
		gen.AnyString(),
	))

	properties.Property("appending never lowers the score", prop.ForAll(
		func(p, suffix string) bool {
			return PasswordStrength(p+suffix).Score >= PasswordStrength(p).Score
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("label follows score", prop.ForAll(
		func(p string) bool {
			s := PasswordStrength(p)
			switch {
			case s.Score <= 2:
				return s.Label == "Faible"
			case s.Score == 3:
				return s.Label == "Moyen"
			case s.Score == 4:
				return s.Label == "Fort"
			default:
				return s.Label == "Très fort"
			}
		},
		gen.AlphaString(),
	))

	properties.Property("password match is equality", prop.ForAll(
		func(a, b string) bool {
			return PasswordsMatch(a, b) == (a == b) && PasswordsMatch(a, a)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
