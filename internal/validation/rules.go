package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]{8,}$`)
)

// IsRequired reports whether s is non-empty after trimming.
func IsRequired(s string) bool {
	return strings.TrimSpace(s) != ""
}

// IsEmail matches a single @ followed by a dotted domain. It does not
// attempt RFC 5322 validation.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsPhone accepts digits, a leading +, dashes, parentheses and spaces, with
// at least 8 characters once whitespace is removed.
func IsPhone(s string) bool {
	return phonePattern.MatchString(StripSpaces(s))
}

// IsFullName requires at least two characters after trimming.
func IsFullName(s string) bool {
	return IsRequired(s) && utf8.RuneCountInString(strings.TrimSpace(s)) >= 2
}

// PasswordsMatch reports exact equality.
func PasswordsMatch(password, confirm string) bool {
	return password == confirm
}

// StripSpaces removes every whitespace character from s.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func predicate(name, message string, fn func(string) bool) Rule {
	return Rule{
		Name: name,
		Check: func(v Value, _ Snapshot) Result {
			if fn(v.Text) {
				return ok()
			}
			return fail(message)
		},
	}
}

// Required fails on empty text.
func Required(message string) Rule { return predicate("required", message, IsRequired) }

// Email fails on empty or malformed addresses.
func Email(message string) Rule { return predicate("email", message, IsEmail) }

// Phone fails on malformed phone numbers.
func Phone(message string) Rule { return predicate("phone", message, IsPhone) }

// FullName fails on names shorter than two characters.
func FullName(message string) Rule { return predicate("fullName", message, IsFullName) }

// MinLength fails when the text has fewer than n characters.
func MinLength(n int, message string) Rule {
	return predicate("minLength", message, func(s string) bool {
		return utf8.RuneCountInString(s) >= n
	})
}

// Matches fails unless the value equals the sibling field other.
func Matches(other, message string) Rule {
	return Rule{
		Name: "passwordMatch",
		Check: func(v Value, snap Snapshot) Result {
			if PasswordsMatch(snap.Get(other).Text, v.Text) {
				return ok()
			}
			return fail(message)
		},
	}
}

// Checked fails unless the checkbox is ticked.
func Checked(message string) Rule {
	return Rule{
		Name: "acceptTerms",
		Check: func(v Value, _ Snapshot) Result {
			if v.Checked {
				return ok()
			}
			return fail(message)
		},
	}
}

// PositiveNumber fails unless the text parses as a number greater than zero.
func PositiveNumber(message string) Rule {
	return predicate("positiveNumber", message, func(s string) bool {
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && f > 0
	})
}

// MinInt fails unless the text parses as an integer no smaller than least.
func MinInt(least int, message string) Rule {
	return predicate("minInt", message, func(s string) bool {
		n, err := strconv.Atoi(s)
		return err == nil && n >= least
	})
}

// OneOf fails unless the text is one of allowed.
func OneOf(message string, allowed ...string) Rule {
	return predicate("oneOf", message, func(s string) bool {
		for _, a := range allowed {
			if s == a {
				return true
			}
		}
		return false
	})
}
