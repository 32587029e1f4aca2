package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"labxtract/internal/config"
	"labxtract/internal/extract"
	"labxtract/internal/pdftext"
	"labxtract/internal/util"
	"labxtract/internal/workbook"
)

type convertOptions struct {
	Variant    string
	OutDir     string
	IncludeRaw bool
	IncludeLog bool
	Jobs       int
}

type outcome struct {
	Source   string
	Workbook string
	Pages    int
	Records  int
	Empty    bool
	Err      error
	Elapsed  time.Duration
}

func newConvertCmd(cfg config.Config, profiles *string) *cobra.Command {
	opts := convertOptions{
		Variant:    cfg.DefaultVariant,
		IncludeRaw: cfg.IncludeRawSheet,
		IncludeLog: cfg.IncludeLogSheet,
		Jobs:       cfg.BatchMaxChildren,
	}
	cmd := &cobra.Command{
		Use:   "convert <pdf|dir>...",
		Short: "Convert report PDFs to xlsx workbooks",
		Long: `Convert each report PDF to a workbook named after the PDF.

Directories are expanded to the .pdf files they contain. Workbooks are written
next to each PDF unless --out is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := extract.LoadRegistry(*profiles)
			if err != nil {
				return err
			}
			if _, err := reg.Lookup(opts.Variant); err != nil {
				return err
			}
			inputs, err := expandInputs(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no pdf files found")
			}
			if opts.OutDir != "" {
				if err := util.EnsureDir(opts.OutDir); err != nil {
					return err
				}
			}
			results := convertAll(reg, inputs, opts)
			return report(cmd.OutOrStdout(), results)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.Variant, "variant", "v", opts.Variant, "report layout: cc-seq, cc-id, im-seq, im-id or a profile name")
	f.StringVarP(&opts.OutDir, "out", "o", "", "output directory")
	f.BoolVar(&opts.IncludeRaw, "raw", opts.IncludeRaw, "add the Raw Text sheet")
	f.BoolVar(&opts.IncludeLog, "log", opts.IncludeLog, "add the Processing Log sheet")
	f.IntVarP(&opts.Jobs, "jobs", "j", opts.Jobs, "files converted in parallel")
	return cmd
}

// expandInputs replaces directories with their PDFs and keeps files as given.
func expandInputs(args []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, a := range args {
		fi, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		files := []string{a}
		if fi.IsDir() {
			files, err = util.ListFiles(a, ".pdf")
			if err != nil {
				return nil, err
			}
		}
		for _, f := range files {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func outputPath(outDir, src string) string {
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	return filepath.Join(dir, util.Stem(src)+".xlsx")
}

// claimOutputs maps each input to its workbook path. An input whose workbook
// path is already taken by an earlier input gets an error instead.
func claimOutputs(outDir string, inputs []string) []error {
	errs := make([]error, len(inputs))
	owner := make(map[string]string, len(inputs))
	for i, src := range inputs {
		dst := filepath.Clean(outputPath(outDir, src))
		if prev, ok := owner[dst]; ok {
			errs[i] = fmt.Errorf("workbook %s is already written for %s", dst, prev)
			continue
		}
		owner[dst] = src
	}
	return errs
}

func convertAll(reg *extract.Registry, inputs []string, opts convertOptions) []outcome {
	results := make([]outcome, len(inputs))
	claims := claimOutputs(opts.OutDir, inputs)
	var g errgroup.Group
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, src := range inputs {
		if claims[i] != nil {
			results[i] = outcome{Source: src, Err: claims[i]}
			continue
		}
		g.Go(func() error {
			results[i] = convertOne(reg, src, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// convertOne converts a single PDF. A document without records is reported
// as empty and gets no workbook.
func convertOne(reg *extract.Registry, src string, opts convertOptions) (res outcome) {
	start := time.Now()
	res.Source = src
	defer func() { res.Elapsed = time.Since(start) }()

	eng, err := reg.Engine(opts.Variant)
	if err != nil {
		res.Err = err
		return res
	}
	pages, err := pdftext.ReadFile(src, pdftext.DefaultOptions())
	if err != nil {
		res.Err = err
		return res
	}
	res.Pages = len(pages)
	doc, err := eng.ExtractDocument(pages)
	if errors.Is(err, extract.ErrNoRecords) || errors.Is(err, extract.ErrNoPages) {
		res.Empty = true
		return res
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.Records = len(doc.Records)

	dst := outputPath(opts.OutDir, src)
	wbOpts := workbook.Options{
		Source:     filepath.Base(src),
		IncludeRaw: opts.IncludeRaw,
		IncludeLog: opts.IncludeLog,
	}
	if err := util.WriteFileAtomic(dst, func(w io.Writer) error {
		return workbook.Write(w, doc, wbOpts)
	}); err != nil {
		res.Err = err
		return res
	}
	res.Workbook = dst
	return res
}

func report(w io.Writer, results []outcome) error {
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			colorRed.Fprintf(w, "FAIL  %s: %v\n", r.Source, r.Err)
		case r.Empty:
			colorYellow.Fprintf(w, "EMPTY %s: no result records on %d page(s)\n", r.Source, r.Pages)
		default:
			colorGreen.Fprintf(w, "OK    %s", r.Source)
			fmt.Fprintf(w, " -> %s (%d records, %d pages, %s)\n", r.Workbook, r.Records, r.Pages, r.Elapsed.Round(time.Millisecond))
		}
	}
	colorCyan.Fprintf(w, "%s\n", summaryLine(results))
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
	}
	return nil
}

func summaryLine(results []outcome) string {
	var ok, empty, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Empty:
			empty++
		default:
			ok++
		}
	}
	parts := []string{fmt.Sprintf("converted=%d", ok), fmt.Sprintf("empty=%d", empty), fmt.Sprintf("failed=%d", failed)}
	return strings.Join(parts, " ")
}
