// Package extract turns analyzer report pages into result records.
//
// One Engine is built per Variant. Pages must be fed in document order: the
// sequence counter threads from each page into the next.
package extract

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

type Engine struct {
	v         Variant
	candidate *regexp.Regexp
}

func New(v Variant) (*Engine, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	var re *regexp.Regexp
	if v.CandidatePattern != "" {
		var err error
		re, err = regexp.Compile(v.CandidatePattern)
		if err != nil {
			return nil, fmt.Errorf("compile candidate pattern for %s: %w", v.Name, err)
		}
	}
	return &Engine{v: v.clone(), candidate: re}, nil
}

func (e *Engine) Variant() Variant {
	return e.v.clone()
}

// PageResult is everything one page contributes to a document.
type PageResult struct {
	Page    int      `json:"page"`
	Header  Header   `json:"header"`
	Records []Record `json:"records"`
}

// ProcessPage extracts the records of one page. first selects the page-1
// header line and body window. seq is the counter after the previous page;
// the returned Sequence must be passed to the next page.
func (e *Engine) ProcessPage(p Page, first bool, seq Sequence) (PageResult, Sequence) {
	out := PageResult{Page: p.Number, Header: e.parseHeader(p.Lines, first)}

	start := e.v.Layout.NextBodyStart - 1
	if first {
		start = e.v.Layout.FirstBodyStart - 1
	}
	end := e.v.Layout.BodyEnd
	if end > len(p.Lines) {
		end = len(p.Lines)
	}

	for i := start; i < end; {
		line := strings.TrimSpace(p.Lines[i])
		tokens := strings.Fields(line)
		if len(tokens) == 0 || slices.Contains(e.v.SkipMarkers, tokens[0]) {
			i++
			continue
		}
		if !e.isCandidate(line) {
			i++
			continue
		}
		rec := e.parseCandidate(tokens, strings.HasPrefix(line, "+"))
		if !e.parseUnitLine(p.Lines, i+1, &rec) {
			// The rejected unit line is consumed with its candidate.
			i += 2
			continue
		}
		if e.v.Reactivity && rec.Unit == e.v.ReactivityUnit {
			rec.Reactivity = reactivityAt(p.Lines, i+2)
		}
		rec.Page = p.Number
		rec.Line = i + 1

		seq = seq.Next()
		out.Records = append(out.Records, e.assemble(rec, out.Header, seq))
		i += 2
	}
	return out, seq
}

func (e *Engine) isCandidate(line string) bool {
	if e.candidate != nil && e.candidate.MatchString(line) {
		return true
	}
	for _, p := range e.v.CandidatePrefixes {
		if p != "" && strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// parseCandidate fills name, result, alarm and rerun from a result line. The
// rerun "+" is printed as its own token. Lines too short for the rule leave
// name and result empty.
func (e *Engine) parseCandidate(tokens []string, rerun bool) Record {
	rec := Record{Rerun: rerun}
	off := 0
	if rerun {
		off = 1
	}
	switch e.v.NameRule {
	case NameQualified:
		idx := off
		if idx < len(tokens) {
			name := []string{tokens[idx]}
			idx++
			for idx < len(tokens) && isQualifier(tokens[idx]) {
				name = append(name, tokens[idx])
				idx++
			}
			rec.TestName = strings.Join(name, " ")
		}
		for ; idx < len(tokens); idx++ {
			if n, ok := normalizeNumber(tokens[idx]); ok {
				rec.Result = n
				rec.DataAlarm = idx+1 < len(tokens)
				break
			}
		}
	default:
		ise := e.v.ISEMarker != "" &&
			(tokens[0] == e.v.ISEMarker || (rerun && at(tokens, 1) == e.v.ISEMarker))
		if ise {
			if len(tokens) >= off+3 {
				rec.TestName = tokens[off] + " " + tokens[off+1]
				rec.Result, _ = normalizeNumber(tokens[off+2])
				rec.DataAlarm = len(tokens) > off+3
			}
		} else if len(tokens) >= off+2 {
			rec.TestName = tokens[off]
			rec.Result, _ = normalizeNumber(tokens[off+1])
			rec.DataAlarm = len(tokens) > off+2
		}
	}
	return rec
}

// parseUnitLine reads unit, channel and lot from line i into rec and reports
// whether line i qualifies as a unit line.
func (e *Engine) parseUnitLine(lines []string, i int, rec *Record) bool {
	if i >= len(lines) {
		return false
	}
	line := strings.TrimSpace(lines[i])
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return false
	}
	if e.v.UnitRule == UnitWhitelist {
		if len(tokens) < 2 || !containsAny(line, e.v.Units) {
			return false
		}
	}
	rec.Unit = tokens[0]

	var shift bool
	switch e.v.ChannelRule {
	case ChannelHyphen:
		shift = len(tokens) > 1 && slices.Contains(e.v.ShiftTokens, tokens[1])
		pos := 1
		if shift {
			pos = 2
		}
		rec.Channel = hyphenChannel(tokens, pos)
	default:
		shift = len(tokens) > 2 && slices.Contains(e.v.ShiftTokens, tokens[1])
		if shift {
			rec.Channel = tokens[2]
		} else {
			rec.Channel = at(tokens, 1)
		}
	}

	lot := ""
	if shift {
		if len(tokens) >= 6 {
			lot = tokens[4]
		}
	} else if len(tokens) >= 5 {
		lot = tokens[3]
	}
	if isLot(lot) {
		rec.ReagentLot = lot
	}
	return true
}

// hyphenChannel prefers the positional token when it is hyphenated, then the
// first hyphenated token after the unit, then the positional token as is.
func hyphenChannel(tokens []string, pos int) string {
	positional := at(tokens, pos)
	if strings.Contains(positional, "-") {
		return positional
	}
	for _, t := range tokens[1:] {
		if strings.Contains(t, "-") {
			return t
		}
	}
	return positional
}

func reactivityAt(lines []string, i int) Reactivity {
	if i >= len(lines) {
		return ReactivityNone
	}
	switch l := lines[i]; {
	case strings.Contains(l, "NonReac"):
		return ReactivityNonReactive
	case strings.Contains(l, "Reac"):
		return ReactivityReactive
	}
	return ReactivityNone
}

// assemble merges page-scope fields into a line-scope record.
func (e *Engine) assemble(rec Record, h Header, seq Sequence) Record {
	rec.Date = h.Date
	if e.v.IDMode == IDModeBarcode {
		rec.Identifier = h.ID
	} else {
		rec.Identifier = DeriveID(h.ID, seq.Count)
	}
	return rec
}

func containsAny(s string, subs []string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}
