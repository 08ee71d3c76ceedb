package utils

import (
	"fmt"
	"regexp"
)

var printableASCII = regexp.MustCompile(`^[\x20-\x7e]+$`)

// ValidateToken checks that value is 1..max printable ASCII characters
func ValidateToken(field, value string, max int) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(value) > max {
		return fmt.Errorf("%s exceeds %d characters", field, max)
	}
	if !printableASCII.MatchString(value) {
		return fmt.Errorf("%s must be printable ASCII: %q", field, value)
	}
	return nil
}

// ValidateTokens checks a list's length and each of its entries
func ValidateTokens(field string, values []string, maxEntries, maxLen int) error {
	if len(values) > maxEntries {
		return fmt.Errorf("%s has %d entries, at most %d allowed", field, len(values), maxEntries)
	}
	for i, v := range values {
		if err := ValidateToken(fmt.Sprintf("%s[%d]", field, i), v, maxLen); err != nil {
			return err
		}
	}
	return nil
}
