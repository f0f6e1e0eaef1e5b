package app

import "unicode/utf8"

type PasswordVerdict string

const (
	PasswordNone   PasswordVerdict = ""
	PasswordWeak   PasswordVerdict = "Weak password"
	PasswordMedium PasswordVerdict = "Medium strength"
	PasswordStrong PasswordVerdict = "Strong password"
)

// PasswordStrength scores a password on length, digits, upper case and symbols.
func PasswordStrength(pw string) (int, PasswordVerdict) {
	if pw == "" {
		return 0, PasswordNone
	}
	var digit, upper, symbol bool
	for _, r := range pw {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case !(r >= 'a' && r <= 'z'):
			symbol = true
		}
	}
	score := 0
	for _, ok := range []bool{utf8.RuneCountInString(pw) >= 8, digit, upper, symbol} {
		if ok {
			score++
		}
	}
	switch {
	case score <= 1:
		return score, PasswordWeak
	case score == 2:
		return score, PasswordMedium
	}
	return score, PasswordStrong
}
