package extract

import (
	"fmt"
	"strings"
)

// PageSummary records what a page contributed, for logs and artifacts.
type PageSummary struct {
	Page    int    `json:"page"`
	Header  Header `json:"header"`
	Lines   int    `json:"lines"`
	Records int    `json:"records"`
}

type Document struct {
	Variant  string        `json:"variant"`
	Columns  []string      `json:"columns"`
	Pages    []Page        `json:"-"`
	Summary  []PageSummary `json:"pages"`
	Records  []Record      `json:"records"`
	Sequence Sequence      `json:"sequence"`
	Log      []string      `json:"log"`
}

// ExtractDocument runs every page through the engine in order, threading the
// sequence counter, and concatenates the records. A document with no pages
// returns ErrNoPages; one without a single record returns the populated
// Document together with ErrNoRecords.
func (e *Engine) ExtractDocument(pages []Page) (Document, error) {
	doc := Document{Variant: e.v.Name, Columns: e.v.Columns(), Pages: pages}
	if len(pages) == 0 {
		doc.logf("document has no pages")
		return doc, ErrNoPages
	}
	doc.logf("variant=%s pages=%d", e.v.Name, len(pages))

	seq := Sequence{}
	for i, p := range pages {
		if p.Number == 0 {
			p.Number = i + 1
		}
		if !hasText(p.Lines) {
			doc.logf("page %d: no extractable text", p.Number)
			doc.Summary = append(doc.Summary, PageSummary{Page: p.Number, Lines: len(p.Lines)})
			continue
		}
		var res PageResult
		res, seq = e.ProcessPage(p, i == 0, seq)
		doc.Records = append(doc.Records, res.Records...)
		doc.Summary = append(doc.Summary, PageSummary{
			Page:    p.Number,
			Header:  res.Header,
			Lines:   len(p.Lines),
			Records: len(res.Records),
		})
		doc.logf("page %d: records=%d id=%q date=%q", p.Number, len(res.Records), res.Header.ID, res.Header.Date)
	}
	doc.Sequence = seq
	doc.logf("total records=%d", len(doc.Records))
	if len(doc.Records) == 0 {
		return doc, ErrNoRecords
	}
	return doc, nil
}

// RawLine is one printed line of the source, blank lines included.
type RawLine struct {
	Page    int    `json:"page"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// Raw lists every page line with its 1-based position, for auditing what the
// engine was given.
func (d Document) Raw() []RawLine {
	var out []RawLine
	for i, p := range d.Pages {
		n := p.Number
		if n == 0 {
			n = i + 1
		}
		for j, l := range p.Lines {
			out = append(out, RawLine{Page: n, Line: j + 1, Content: l})
		}
	}
	return out
}

func (d *Document) logf(format string, args ...any) {
	d.Log = append(d.Log, fmt.Sprintf(format, args...))
}

func hasText(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
