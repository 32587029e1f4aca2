// Package pdftext turns report PDFs into per-page text rows.
package pdftext

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/ledongthuc/pdf"

	"labxtract/internal/extract"
	"labxtract/internal/util"
)

var (
	ErrNotPDF  = errors.New("file is not a pdf")
	ErrNoPages = errors.New("pdf has no pages")
)

// headerBytes is how much of a file the type matchers need.
const headerBytes = 261

// Options control how glyphs are grouped back into printed rows.
type Options struct {
	// RowTolerance is the Y distance, in points, within which glyphs share a row.
	RowTolerance float64
	// WordSpaceMultiplier times the font size is the gap that starts a new word.
	WordSpaceMultiplier float64
}

func DefaultOptions() Options {
	return Options{RowTolerance: 3.0, WordSpaceMultiplier: 0.3}
}

// Validate sniffs the leading bytes of r.
func Validate(r io.Reader) error {
	head := make([]byte, headerBytes)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read header: %w", err)
	}
	if !filetype.Is(head[:n], "pdf") {
		return ErrNotPDF
	}
	return nil
}

func ValidateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return Validate(f)
}

// ReadFile returns every page of the PDF at path, in order. Pages the decoder
// cannot read come back with no lines so numbering stays aligned.
func ReadFile(path string, opt Options) ([]extract.Page, error) {
	if err := ValidateFile(path); err != nil {
		return nil, err
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return nil, ErrNoPages
	}
	pages := make([]extract.Page, 0, total)
	for i := 1; i <= total; i++ {
		pages = append(pages, extract.Page{Number: i, Lines: pageLines(r.Page(i), opt)})
	}
	return pages, nil
}

func pageLines(p pdf.Page, opt Options) (lines []string) {
	if p.V.IsNull() {
		return nil
	}
	defer func() {
		// Malformed content streams panic inside the decoder.
		if recover() != nil {
			lines = nil
		}
	}()
	lines = Rows(p.Content().Text, opt)
	if len(lines) > 0 {
		return lines
	}
	plain, err := p.GetPlainText(nil)
	if err != nil {
		return nil
	}
	return splitLines(plain)
}

// Rows groups positioned glyphs into text rows, top of page first.
func Rows(texts []pdf.Text, opt Options) []string {
	if opt.RowTolerance <= 0 {
		opt = DefaultOptions()
	}
	type bucket struct {
		yMin, yMax float64
		texts      []pdf.Text
	}
	var buckets []bucket
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" && t.S != " " {
			continue
		}
		placed := false
		for i := range buckets {
			b := &buckets[i]
			if t.Y >= b.yMin-opt.RowTolerance && t.Y <= b.yMax+opt.RowTolerance {
				b.texts = append(b.texts, t)
				b.yMin = math.Min(b.yMin, t.Y)
				b.yMax = math.Max(b.yMax, t.Y)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{yMin: t.Y, yMax: t.Y, texts: []pdf.Text{t}})
		}
	}
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].yMax > buckets[j].yMax })

	out := make([]string, 0, len(buckets))
	for _, b := range buckets {
		if line := joinRow(b.texts, opt); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func joinRow(row []pdf.Text, opt Options) string {
	sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
	var sb strings.Builder
	end := 0.0
	for i, t := range row {
		if i > 0 {
			threshold := opt.WordSpaceMultiplier * t.FontSize
			if t.FontSize == 0 {
				threshold = 3.0
			}
			if t.X-end > threshold && !strings.HasSuffix(sb.String(), " ") && t.S != " " {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.S)
		end = t.X + t.W
	}
	return strings.Join(strings.Fields(util.SanitizeText(sb.String())), " ")
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(util.SanitizeText(s), "\r\n", "\n")
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
