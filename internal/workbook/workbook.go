// Package workbook renders extracted documents as xlsx review sheets.
package workbook

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"labxtract/internal/extract"
)

const (
	RawSheet     = "Raw Text"
	LogSheet     = "Processing Log"
	defaultSheet = "Results"

	maxCellChars = 32000
	maxSheetName = 31
)

type Options struct {
	// Source is the PDF filename; its stem names the results sheet.
	Source     string
	IncludeRaw bool
	IncludeLog bool
}

// Save writes the workbook to path.
func Save(path string, doc extract.Document, opts Options) error {
	f, err := build(doc, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func Write(w io.Writer, doc extract.Document, opts Options) error {
	f, err := build(doc, opts)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type styles struct {
	header int
	alarm  int
	rerun  int
}

func build(doc extract.Document, opts Options) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	sheet := SheetName(opts.Source)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name results sheet: %w", err)
	}
	if err := writeResults(f, sheet, doc, st); err != nil {
		f.Close()
		return nil, err
	}
	if opts.IncludeRaw {
		if err := writeRaw(f, doc, st); err != nil {
			f.Close()
			return nil, err
		}
	}
	if opts.IncludeLog && len(doc.Log) > 0 {
		if err := writeLog(f, doc.Log, st); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return st, fmt.Errorf("create header style: %w", err)
	}
	if st.alarm, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: "FF0000"}}); err != nil {
		return st, fmt.Errorf("create alarm style: %w", err)
	}
	st.rerun, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFFF99"}, Pattern: 1},
	})
	if err != nil {
		return st, fmt.Errorf("create rerun style: %w", err)
	}
	return st, nil
}

func writeResults(f *excelize.File, sheet string, doc extract.Document, st styles) error {
	cols := doc.Columns
	if len(cols) == 0 {
		cols = []string{"Seq No.", "Test Name", "Result", "Unit", "AU", "R.P Lot", "Data Alarm", "Rerun", "Date"}
	}
	if err := writeHeader(f, sheet, cols, st.header); err != nil {
		return err
	}
	for i, r := range doc.Records {
		row := i + 2
		values := []any{
			r.Identifier, r.TestName, ResultValue(r.Result), r.Unit, r.Channel,
			r.ReagentLot, extract.YN(r.DataAlarm), extract.YN(r.Rerun), r.Date,
		}
		if len(cols) > len(values) {
			values = append(values, string(r.Reactivity))
		}
		if err := f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
			return fmt.Errorf("write result row %d: %w", row, err)
		}
		resultCell := cell(3, row)
		switch {
		case r.Rerun:
			if err := f.SetCellStyle(sheet, resultCell, resultCell, st.rerun); err != nil {
				return fmt.Errorf("style rerun result: %w", err)
			}
		case r.DataAlarm:
			if err := f.SetCellStyle(sheet, resultCell, resultCell, st.alarm); err != nil {
				return fmt.Errorf("style alarm result: %w", err)
			}
		}
		if r.DataAlarm {
			alarmCell := cell(7, row)
			if err := f.SetCellStyle(sheet, alarmCell, alarmCell, st.alarm); err != nil {
				return fmt.Errorf("style alarm flag: %w", err)
			}
		}
	}
	if len(doc.Records) == 0 {
		return nil
	}
	ref := "A1:" + cell(len(cols), len(doc.Records)+1)
	if err := f.AutoFilter(sheet, ref, nil); err != nil {
		return fmt.Errorf("set autofilter: %w", err)
	}
	return nil
}

func writeRaw(f *excelize.File, doc extract.Document, st styles) error {
	if _, err := f.NewSheet(RawSheet); err != nil {
		return fmt.Errorf("create raw sheet: %w", err)
	}
	if err := writeHeader(f, RawSheet, []string{"Page", "Line", "Content"}, st.header); err != nil {
		return err
	}
	for i, l := range doc.Raw() {
		row := []any{l.Page, l.Line, CellText(l.Content)}
		if err := f.SetSheetRow(RawSheet, cell(1, i+2), &row); err != nil {
			return fmt.Errorf("write raw row: %w", err)
		}
	}
	if err := f.SetColWidth(RawSheet, "A", "B", 10); err != nil {
		return fmt.Errorf("size raw sheet: %w", err)
	}
	return f.SetColWidth(RawSheet, "C", "C", 100)
}

func writeLog(f *excelize.File, lines []string, st styles) error {
	if _, err := f.NewSheet(LogSheet); err != nil {
		return fmt.Errorf("create log sheet: %w", err)
	}
	if err := writeHeader(f, LogSheet, []string{LogSheet}, st.header); err != nil {
		return err
	}
	for i, l := range lines {
		if err := f.SetCellValue(LogSheet, cell(1, i+2), CellText(l)); err != nil {
			return fmt.Errorf("write log row: %w", err)
		}
	}
	return f.SetColWidth(LogSheet, "A", "A", 100)
}

func writeHeader(f *excelize.File, sheet string, cols []string, style int) error {
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", cell(len(cols), 1), style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// ResultValue returns the number a result cell should hold, or the raw text
// when it does not parse. Integral values become ints; others are rounded by
// magnitude: 2 places from 1 up, 3 from 0.1, 4 below.
func ResultValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return int64(v)
	}
	places := 4.0
	switch {
	case v >= 1:
		places = 2
	case v >= 0.1:
		places = 3
	}
	p := math.Pow(10, places)
	return math.Round(v*p) / p
}

// CellText strips characters spreadsheets reject and caps the length.
func CellText(s string) string {
	s = strings.NewReplacer("\x00", "", "\r", "").Replace(s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxCellChars {
		s = string(r[:maxCellChars])
	}
	return s
}

// SheetName derives the results sheet name from a source filename.
func SheetName(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	stem = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, stem)
	stem = strings.Trim(strings.TrimSpace(stem), "'")
	if r := []rune(stem); len(r) > maxSheetName {
		stem = string(r[:maxSheetName])
	}
	if stem == "" || stem == "." || stem == RawSheet || stem == LogSheet {
		return defaultSheet
	}
	return stem
}
