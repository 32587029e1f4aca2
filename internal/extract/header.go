package extract

import (
	"slices"
	"strings"
)

// parseHeader reads the fixed header line of a page. A line without any of the
// page's markers yields an empty Header.
func (e *Engine) parseHeader(lines []string, first bool) Header {
	lineNo, markers := e.v.Layout.NextHeaderLine, e.v.NextHeaderMarkers
	if first {
		lineNo, markers = e.v.Layout.FirstHeaderLine, e.v.FirstHeaderMarkers
	}
	if lineNo-1 >= len(lines) {
		return Header{}
	}
	line := strings.TrimSpace(lines[lineNo-1])
	matched := ""
	for _, m := range markers {
		if strings.Contains(line, m) {
			matched = m
			break
		}
	}
	if matched == "" {
		return Header{}
	}
	tokens := strings.Fields(line)

	var h Header
	for _, t := range tokens {
		if d := dateToken.FindString(t); d != "" {
			h.Date = d
			break
		}
	}

	sampleForm := e.v.IDMode == IDModeBarcode &&
		e.v.SampleIDMarker != "" &&
		slices.Contains(markers, e.v.SampleIDMarker) &&
		strings.Contains(line, e.v.SampleIDMarker)
	if sampleForm {
		h.ID = sampleID(tokens)
		return h
	}
	h.ID = tokenAfterMarker(tokens, markers)
	return h
}

// tokenAfterMarker returns the token right after the first marker-bearing token.
func tokenAfterMarker(tokens, markers []string) string {
	for i, t := range tokens {
		for _, m := range markers {
			if strings.Contains(t, m) {
				return at(tokens, i+1)
			}
		}
	}
	return ""
}

// sampleID joins the tokens between a literal "ID :" pair and the first date.
func sampleID(tokens []string) string {
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] != "ID" || tokens[i+1] != ":" {
			continue
		}
		parts := make([]string, 0, 4)
		for _, t := range tokens[i+2:] {
			if dateToken.MatchString(t) {
				break
			}
			parts = append(parts, t)
		}
		return strings.Join(parts, " ")
	}
	return ""
}
