package pdftext

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/require"
)

func glyphs(y float64, x float64, s string) []pdf.Text {
	out := make([]pdf.Text, 0, len(s))
	for _, r := range s {
		out = append(out, pdf.Text{X: x, Y: y, W: 5, FontSize: 10, S: string(r)})
		x += 5
	}
	return out
}

func TestRowsGroupsByBaseline(t *testing.T) {
	var texts []pdf.Text
	texts = append(texts, glyphs(700, 100, "mg/dL")...)
	texts = append(texts, glyphs(701.5, 150, "1")...)
	texts = append(texts, glyphs(720, 40, "GLU")...)
	texts = append(texts, glyphs(719, 100, "95.2")...)

	rows := Rows(texts, DefaultOptions())
	require.Equal(t, []string{"GLU 95.2", "mg/dL 1"}, rows)
}

func TestRowsKeepsTightGlyphsTogether(t *testing.T) {
	texts := glyphs(500, 10, "Ser/PI")
	texts = append(texts, pdf.Text{X: 40, Y: 500, W: 3, FontSize: 10, S: " "})
	texts = append(texts, glyphs(500, 43, "100000")...)

	require.Equal(t, []string{"Ser/PI 100000"}, Rows(texts, Options{}))
}

func TestRowsDropsControlGlyphs(t *testing.T) {
	texts := glyphs(300, 10, "TP")
	texts = append(texts, pdf.Text{X: 20, Y: 300, W: 0, FontSize: 10, S: "\x00"})
	require.Equal(t, []string{"TP"}, Rows(texts, DefaultOptions()))
	require.Empty(t, Rows(nil, DefaultOptions()))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(bytes.NewReader([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"))))
	require.ErrorIs(t, Validate(bytes.NewReader([]byte("PK\x03\x04 not a pdf"))), ErrNotPDF)
	require.ErrorIs(t, Validate(bytes.NewReader(nil)), ErrNotPDF)
}

func TestReadFileRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("Ser/PI 100000\nGLU 95.2\n"), 0o644))

	_, err := ReadFile(path, DefaultOptions())
	require.ErrorIs(t, err, ErrNotPDF)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.pdf"), DefaultOptions())
	require.Error(t, err)
}

func TestReadFileFixture(t *testing.T) {
	pages, err := ReadFile(filepath.Join("testdata", "report.pdf"), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, pages, 2)

	require.Equal(t, 1, pages[0].Number)
	require.Equal(t, []string{
		"Ser/PI 100000 Test 2023/12/08 19:23:06",
		"GLU 95.2",
		"mg/dL 1 5",
		"ALT 31 H",
		"U/L 2",
	}, pages[0].Lines)

	require.Equal(t, 2, pages[1].Number)
	require.Equal(t, []string{"Ser/PI 100000 Test 2023/12/08", "TP 7,1", "g/dL 5"}, pages[1].Lines)
}

func TestSplitLines(t *testing.T) {
	require.Equal(t, []string{"a b", "c"}, splitLines("a b\r\n\n  c  \n"))
}
