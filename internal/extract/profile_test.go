package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuiltinVariants(t *testing.T) {
	names := []string{}
	for _, v := range Variants() {
		require.NoError(t, v.Validate())
		names = append(names, v.Name)
	}
	require.Equal(t, []string{"cc-id", "cc-seq", "im-id", "im-seq"}, names)

	_, err := NewRegistry().Lookup("xx")
	require.ErrorIs(t, err, ErrUnknownVariant)

	v, err := NewRegistry().Lookup(" IM-ID ")
	require.NoError(t, err)
	require.Equal(t, "Sample ID", v.Columns()[0])
	require.Equal(t, "R/NR", v.Columns()[9])
}

func TestLookupReturnsCopy(t *testing.T) {
	r := NewRegistry()
	v, err := r.Lookup("cc-seq")
	require.NoError(t, err)
	v.Units[0] = "changed"

	again, err := r.Lookup("cc-seq")
	require.NoError(t, err)
	require.Equal(t, "mg/dL", again.Units[0])
}

func TestRegistryMerge(t *testing.T) {
	r := NewRegistry()
	err := r.Merge([]byte(`
variants:
  - name: cc-seq-wide
    base: cc-seq
    description: c503 with a longer body
    layout:
      body_end: 34
  - name: im-seq
    shift_tokens: [NACL, Dil, Conc]
`))
	require.NoError(t, err)

	wide, err := r.Lookup("cc-seq-wide")
	require.NoError(t, err)
	require.Equal(t, 34, wide.Layout.BodyEnd)
	require.Equal(t, 13, wide.Layout.FirstBodyStart)
	require.Equal(t, AnalyzerChemistry, wide.Analyzer)
	require.Equal(t, "c503 with a longer body", wide.Description)

	im, err := r.Lookup("im-seq")
	require.NoError(t, err)
	require.Equal(t, []string{"NACL", "Dil", "Conc"}, im.ShiftTokens)

	builtinIM, err := NewRegistry().Lookup("im-seq")
	require.NoError(t, err)
	require.Equal(t, []string{"NACL", "Dil"}, builtinIM.ShiftTokens)

	require.Len(t, r.All(), 5)

	e, err := r.Engine("cc-seq-wide")
	require.NoError(t, err)
	p := reportPage(1, map[int]string{8: "Ser/PI 1 Test 2023/12/08"})
	p.Lines = append(p.Lines, "GLU 95.2", "mg/dL 1")
	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 1)
	require.Equal(t, 31, res.Records[0].Line)
}

func TestRegistryMergeErrors(t *testing.T) {
	cases := map[string]string{
		"missing name": "variants:\n  - base: cc-seq\n",
		"unknown base": "variants:\n  - name: x\n    base: nope\n",
		"bad rule":     "variants:\n  - name: cc-seq\n    name_rule: guess\n",
		"bad yaml":     "variants: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, NewRegistry().Merge([]byte(doc)))
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry("")
	require.NoError(t, err)
	require.Len(t, r.All(), 4)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variants:\n  - name: lab2\n    base: cc-id\n"), 0o644))
	r, err = LoadRegistry(path)
	require.NoError(t, err)
	v, err := r.Lookup("lab2")
	require.NoError(t, err)
	require.Equal(t, IDModeBarcode, v.IDMode)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
