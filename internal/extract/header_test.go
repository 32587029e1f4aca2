package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	cases := []struct {
		name    string
		variant string
		first   bool
		line    string
		want    Header
	}{
		{
			name:    "sequence first page",
			variant: "cc-seq",
			first:   true,
			line:    "Ser/PI 100000 Test 2023/12/08 19:23:06",
			want:    Header{ID: "100000", Date: "2023/12/08"},
		},
		{
			name:    "date with trailing text",
			variant: "cc-seq",
			first:   true,
			line:    "Ser/PI 5 Test 2023/12/08-19:23",
			want:    Header{ID: "5", Date: "2023/12/08"},
		},
		{
			name:    "barcode sample form",
			variant: "cc-id",
			first:   true,
			line:    "SerumPlasma ID : AB 123 2023/12/08 10:00",
			want:    Header{ID: "AB 123", Date: "2023/12/08"},
		},
		{
			name:    "barcode token form",
			variant: "cc-id",
			first:   true,
			line:    "Ser/PI 55555 Test 2023/12/08",
			want:    Header{ID: "55555", Date: "2023/12/08"},
		},
		{
			name:    "chemistry continuation ignores SerumPlasma",
			variant: "cc-id",
			first:   false,
			line:    "SerumPlasma ID : AB 123 2023/12/08",
			want:    Header{},
		},
		{
			name:    "immunoassay continuation accepts SerumPlasma",
			variant: "im-id",
			first:   false,
			line:    "SerumPlasma ID : X9 2023/12/08",
			want:    Header{ID: "X9", Date: "2023/12/08"},
		},
		{
			name:    "no marker",
			variant: "cc-seq",
			first:   true,
			line:    "Routine 100000 2023/12/08",
			want:    Header{},
		},
		{
			name:    "marker without date",
			variant: "cc-seq",
			first:   true,
			line:    "Ser/PI 100000",
			want:    Header{ID: "100000"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := mustEngine(t, tc.variant)
			lineNo := e.v.Layout.NextHeaderLine
			if tc.first {
				lineNo = e.v.Layout.FirstHeaderLine
			}
			p := reportPage(1, map[int]string{lineNo: tc.line})
			require.Equal(t, tc.want, e.parseHeader(p.Lines, tc.first))
		})
	}
}
