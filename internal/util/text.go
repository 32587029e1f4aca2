package util

import "strings"

// SanitizeText drops NUL and other control characters that PDF decoders leak
// into glyph runs and that Postgres text rejects. Newlines and tabs survive;
// no-break spaces become plain spaces so token splitting sees them.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch == '\u00a0' || ch == '\u202f':
			b.WriteByte(' ')
		case ch < 0x20 || ch == 0x7f:
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
