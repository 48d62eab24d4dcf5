// Package phone normalizes Kenyan MSISDNs into the 254XXXXXXXXX form the
// gateway requires.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalid marks input that cannot be normalized into a valid Safaricom
// subscriber number.
var ErrInvalid = errors.New("invalid phone number")

// Normalized numbers are twelve digits: country code 254 followed by a
// mobile prefix of 7 or 1 and eight subscriber digits.
var validPattern = regexp.MustCompile(`^254[17]\d{8}$`)

// Normalize strips formatting, converts local-format numbers (07..., 7...,
// 1...) to international form, and verifies the result. It is idempotent on
// already-normalized input. Validation happens here, server-side; the form's
// client-side check is advisory only.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "7"), strings.HasPrefix(cleaned, "1"):
		cleaned = "254" + cleaned
	}

	if !validPattern.MatchString(cleaned) {
		return "", ErrInvalid
	}

	return cleaned, nil
}
