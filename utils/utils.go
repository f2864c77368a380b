// Package utils provides utility functions for the application.
package utils

import (
	"math"
	"strings"
)

func ToPtr[T any](v T) *T {
	return &v
}

// SafeDivide returns a / b, or 0 when b is zero
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DigitsOnly strips every non-digit rune from s
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhoneNumber converts a user-entered number into the bare international
// form expected by messaging providers. Numbers that look national (leading zero,
// or too short to carry a country code) get defaultCountryCode prepended.
func NormalizePhoneNumber(raw, defaultCountryCode string) string {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+") || strings.HasPrefix(trimmed, "00")
	digits := DigitsOnly(trimmed)
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "00") {
		digits = strings.TrimPrefix(digits, "00")
	}
	if hasPlus {
		return digits
	}
	cc := DigitsOnly(defaultCountryCode)
	if strings.HasPrefix(digits, "0") {
		return cc + strings.TrimLeft(digits, "0")
	}
	if len(digits) <= 10 && cc != "" && !strings.HasPrefix(digits, cc) {
		return cc + digits
	}
	return digits
}
