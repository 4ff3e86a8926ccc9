package model

import (
	"fmt"
	"strings"
)

// NormalizeCurrency trims and upper-cases a currency code and checks it is three ASCII letters.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: currency code %q must have 3 letters", ErrValidation, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency code %q must contain only letters", ErrValidation, code)
		}
	}
	return code, nil
}
