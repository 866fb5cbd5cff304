package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned when text holds no parseable amount.
var ErrInvalidAmount = errors.New("normalize: invalid amount")

// ParseAmount converts a locale formatted amount ("1.234,56 €") to a float.
// Unparseable input yields 0.
func ParseAmount(text string) float64 {
	value, err := Amount(text)
	if err != nil {
		return 0
	}
	return value
}

// ParseProviderAmount parses amounts shaped like "paid / pending"
// ("-631.04€ / 0€"). Only the part before the first slash is read and, when
// both separators appear, the period is the thousands separator.
func ParseProviderAmount(text string) float64 {
	if idx := strings.Index(text, "/"); idx >= 0 {
		text = text[:idx]
	}
	value, err := parseCleaned(clean(text), true)
	if err != nil {
		return 0
	}
	return value
}

// Amount is the strict form of ParseAmount.
func Amount(text string) (float64, error) {
	value, err := parseCleaned(clean(text), false)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, text)
	}
	return value, nil
}

// clean keeps digits, separators and a leading minus sign.
func clean(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseCleaned(cleaned string, dotThousands bool) (float64, error) {
	if cleaned == "" || cleaned == "-" {
		return 0, ErrInvalidAmount
	}
	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		if dotThousands || strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return value, nil
}
