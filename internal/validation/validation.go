package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrCityEmpty is returned when the city is empty or whitespace-only.
var ErrCityEmpty = errors.New("city is required")

// ErrCityTooLong is returned when the city exceeds the maximum length.
var ErrCityTooLong = errors.New("city too long")

// ErrCityInvalidChars is returned when the city contains disallowed characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

// DefaultMaxLen is the rune limit applied when the caller passes 0.
const DefaultMaxLen = 100

// ValidateCity checks a requested city name and returns it unchanged. The caller's
// spelling is the cache and store key, so no trimming or case folding happens here.
// Allowed: Unicode letters and digits, space, comma, hyphen, period, apostrophe.
func ValidateCity(input string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if strings.TrimSpace(input) == "" {
		return "", ErrCityEmpty
	}
	r := []rune(input)
	if len(r) > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrCityInvalidChars
		}
	}
	return input, nil
}

// IsInvalidCity reports whether err came from ValidateCity.
func IsInvalidCity(err error) bool {
	return errors.Is(err, ErrCityEmpty) || errors.Is(err, ErrCityTooLong) || errors.Is(err, ErrCityInvalidChars)
}

func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}
