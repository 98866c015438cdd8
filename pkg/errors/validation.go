package errors

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// ValidateNonNegative rejects negative, NaN and infinite values for the named option.
func ValidateNonNegative(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidOption, "%s must be a finite number, got %v", name, v)
	}
	if v < 0 {
		return New(ErrCodeInvalidOption, "%s must be >= 0, got %v", name, v)
	}
	return nil
}

// ValidateDuration rejects negative durations for the named option.
func ValidateDuration(name string, d time.Duration) error {
	if d < 0 {
		return New(ErrCodeInvalidOption, "%s must be >= 0, got %s", name, d)
	}
	return nil
}

// ValidateOneOf checks that value is one of allowed.
func ValidateOneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return New(ErrCodeInvalidOption, "invalid %s: %q (must be one of: %s)", name, value, strings.Join(allowed, ", "))
}

// ValidateAttributePrefix validates the prefix used for data attributes on
// managed elements.
//
// The validation rules follow what an HTML attribute name may contain:
//   - Not empty
//   - Maximum length of 64 characters
//   - No whitespace, control characters, quotes, '>', '/' or '='
func ValidateAttributePrefix(prefix string) error {
	if prefix == "" {
		return New(ErrCodeInvalidOption, "attributePrefix cannot be empty")
	}
	if len(prefix) > 64 {
		return New(ErrCodeInvalidOption, "attributePrefix too long (max 64 characters)")
	}
	for _, r := range prefix {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return New(ErrCodeInvalidOption, "attributePrefix contains whitespace or control characters")
		}
		switch r {
		case '"', '\'', '>', '/', '=':
			return New(ErrCodeInvalidOption, "attributePrefix contains invalid character %q", r)
		}
	}
	return nil
}
