package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"labxtract/internal/extract"
	"labxtract/internal/pdftext"
	"labxtract/internal/util"
)

func newDumpCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dump <pdf>",
		Short: "Print the numbered text lines of each page",
		Long: `Print the text lines the extractor sees, numbered from 1 per page.

Use it to check the header and body line numbers of a new report layout
before writing a profile.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := pdftext.ReadFile(args[0], pdftext.DefaultOptions())
			if err != nil {
				return err
			}
			text := dumpText(pages)
			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), text)
				return err
			}
			if err := util.WriteTextAtomic(out, text); err != nil {
				return err
			}
			colorGreen.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to a file instead of stdout")
	return cmd
}

func dumpText(pages []extract.Page) string {
	var b strings.Builder
	for i, p := range pages {
		n := p.Number
		if n == 0 {
			n = i + 1
		}
		fmt.Fprintf(&b, "--- page %d (%d lines) ---\n", n, len(p.Lines))
		for j, l := range p.Lines {
			if strings.TrimSpace(l) == "" {
				continue
			}
			fmt.Fprintf(&b, "%3d: %s\n", j+1, l)
		}
	}
	return b.String()
}

func newVariantsCmd(profiles *string) *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the report layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := extract.LoadRegistry(*profiles)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, v := range reg.All() {
				colorCyan.Fprintf(w, "%-10s", v.Name)
				fmt.Fprintf(w, " %-12s %-9s %s\n", v.Analyzer, v.IDMode, v.Description)
				fmt.Fprintf(w, "           columns: %s\n", strings.Join(v.Columns(), ", "))
			}
			return nil
		},
	}
}
