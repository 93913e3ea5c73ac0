package request

import (
	"errors"
	"strings"
)

var errInvalidPhone = errors.New("phone number is invalid")

// NormalizePhone canonicalizes a phone number to international format using
// a per-deployment trunk-prefix/country-code table (Benin defaults: country
// code 229, 8-digit local numbers). Best-effort heuristic: ambiguous
// multi-country numbers are a known limitation.
//
// Steps: strip non-digits; a bare local number gets the country code
// prefixed; a number already carrying the country code is accepted; a
// 10-digit number with a leading trunk zero drops the zero; anything longer
// keeps its last local-length digits; anything shorter is rejected.
func NormalizePhone(raw, countryCode string, localDigits int) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	phone := digits.String()

	fullLen := len(countryCode) + localDigits

	switch {
	case len(phone) == localDigits:
		return countryCode + phone, nil
	case len(phone) == fullLen && strings.HasPrefix(phone, countryCode):
		return phone, nil
	case len(phone) == localDigits+2 && strings.HasPrefix(phone, "0"):
		trimmed := phone[1:]
		return countryCode + trimmed[len(trimmed)-localDigits:], nil
	case len(phone) >= localDigits:
		return countryCode + phone[len(phone)-localDigits:], nil
	default:
		return "", errInvalidPhone
	}
}
