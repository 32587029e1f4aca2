package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var dateToken = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}`)

// normalizeNumber swaps a decimal comma for a period when the result parses.
func normalizeNumber(tok string) (string, bool) {
	n := strings.ReplaceAll(tok, ",", ".")
	if _, err := strconv.ParseFloat(n, 64); err != nil {
		return tok, false
	}
	return n, true
}

// isLot accepts all-digit tokens and alphanumerics carrying at least one digit.
func isLot(tok string) bool {
	if tok == "" {
		return false
	}
	digit := false
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLetter(r):
		default:
			return false
		}
	}
	return digit
}

// isQualifier matches the name suffixes immunoassay reports print after a test
// code: a single digit or a version tag like v2 / V2.
func isQualifier(tok string) bool {
	if len(tok) == 1 && tok[0] >= '0' && tok[0] <= '9' {
		return true
	}
	if len(tok) > 1 && (tok[0] == 'v' || tok[0] == 'V') {
		return allDigits(tok[1:])
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func at(tokens []string, i int) string {
	if i < 0 || i >= len(tokens) {
		return ""
	}
	return tokens[i]
}
