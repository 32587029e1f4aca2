package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// reportPage builds a 30-line page with the given 1-based lines filled in.
func reportPage(n int, lines map[int]string) Page {
	out := make([]string, 30)
	for no, text := range lines {
		out[no-1] = text
	}
	return Page{Number: n, Lines: out}
}

func mustEngine(t *testing.T, name string) *Engine {
	t.Helper()
	e, err := NewRegistry().Engine(name)
	require.NoError(t, err)
	return e
}

func TestChemistrySequenceRecord(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08 19:23:06",
		13: "GLU 95.2",
		14: "mg/dL 1 5",
	})

	res, seq := e.ProcessPage(p, true, Sequence{})
	require.Equal(t, 1, seq.Count)
	require.Len(t, res.Records, 1)
	require.Equal(t, Record{
		Identifier: "100000",
		TestName:   "GLU",
		Result:     "95.2",
		Unit:       "mg/dL",
		Channel:    "1",
		Date:       "2023/12/08",
		Page:       1,
		Line:       13,
	}, res.Records[0])
}

func TestDataAlarmComesFromCandidateLine(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08 19:23:06",
		13: "GLU 95.2 H",
		14: "mg/dL 1",
		15: "CREA 0.9",
		16: "mg/dL 2 7 8",
	})

	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 2)
	require.True(t, res.Records[0].DataAlarm)
	require.False(t, res.Records[1].DataAlarm)
}

func TestISERerun(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08 19:23:06",
		13: "+ ISE K 4.5",
		14: "mmol/L 2",
	})

	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	require.Equal(t, "ISE K", r.TestName)
	require.Equal(t, "4.5", r.Result)
	require.True(t, r.Rerun)
	require.Equal(t, "2", r.Channel)
	require.False(t, r.DataAlarm)
	require.Equal(t, "Y", YN(r.Rerun))
	require.Equal(t, "N", YN(r.DataAlarm))
}

func TestImmunoassayReactivity(t *testing.T) {
	e := mustEngine(t, "im-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 7 Test 2024/01/02 08:00:00",
		13: "HBSAG 0.05",
		14: "COI 1-2",
		15: "Reac",
		16: "HCV 0.10",
		17: "COI 3-1",
		18: "NonReac",
	})

	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 2)
	require.Equal(t, "COI", res.Records[0].Unit)
	require.Equal(t, "1-2", res.Records[0].Channel)
	require.Equal(t, ReactivityReactive, res.Records[0].Reactivity)
	require.Equal(t, ReactivityNonReactive, res.Records[1].Reactivity)
	require.Equal(t, "000007", res.Records[0].Identifier)
	require.Equal(t, "000008", res.Records[1].Identifier)
}

func TestSkipMarkerLine(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08 19:23:06",
		13: "R2 GLU 95.2",
		14: "mg/dL 1",
	})

	res, seq := e.ProcessPage(p, true, Sequence{})
	require.Empty(t, res.Records)
	require.Equal(t, 0, seq.Count)
}

func TestUnitLineColumns(t *testing.T) {
	cases := []struct {
		name    string
		unit    string
		channel string
		lot     string
	}{
		{name: "plain", unit: "U/L 4 a 98765 b", channel: "4", lot: "98765"},
		{name: "alnum lot", unit: "U/L 4 a 12AB34 b", channel: "4", lot: "12AB34"},
		{name: "letters only lot", unit: "U/L 4 a LOT b", channel: "4"},
		{name: "short line", unit: "U/L 4 a", channel: "4"},
		{name: "nacl shift", unit: "U/L NACL 3 x 12345 z", channel: "3", lot: "12345"},
		{name: "nacl shift short", unit: "U/L NACL 3 x 12345", channel: "3"},
	}
	e := mustEngine(t, "cc-seq")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := reportPage(1, map[int]string{
				8:  "Ser/PI 1 Test 2023/12/08",
				13: "ALT 31",
				14: tc.unit,
			})
			res, _ := e.ProcessPage(p, true, Sequence{})
			require.Len(t, res.Records, 1)
			require.Equal(t, "U/L", res.Records[0].Unit)
			require.Equal(t, tc.channel, res.Records[0].Channel)
			require.Equal(t, tc.lot, res.Records[0].ReagentLot)
		})
	}
}

func TestRejectedUnitLineIsConsumed(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08",
		13: "GLU 95.2",
		14: "ALB 4.1",
		15: "g/dL 2",
	})

	// ALB 4.1 is GLU's rejected unit line, so scanning resumes at g/dL 2.
	res, seq := e.ProcessPage(p, true, Sequence{})
	require.Empty(t, res.Records)
	require.Equal(t, 0, seq.Count)
}

func TestResultPassesThroughWhenNotNumeric(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08",
		13: "+ GLU ---",
		14: "mg/dL 1",
		15: "ALB 4.1.2",
		16: "g/dL 2",
	})

	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 2)
	require.Equal(t, "GLU", res.Records[0].TestName)
	require.Equal(t, "---", res.Records[0].Result)
	require.True(t, res.Records[0].Rerun)
	require.Equal(t, "4.1.2", res.Records[1].Result)
}

func TestChemistryDecimalComma(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08",
		13: "GLU 4,12",
		14: "mg/dL 1",
	})

	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 1)
	require.Equal(t, "4.12", res.Records[0].Result)
	require.False(t, res.Records[0].DataAlarm)
}

func TestISEWithoutRerun(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 100000 Test 2023/12/08",
		13: "ISE NA 140",
		14: "mmol/L 3",
	})

	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	require.Equal(t, "ISE NA", r.TestName)
	require.Equal(t, "140", r.Result)
	require.False(t, r.Rerun)
	require.False(t, r.DataAlarm)
	require.Equal(t, "3", r.Channel)
}

func TestImmunoassayChannel(t *testing.T) {
	cases := []struct {
		name    string
		unit    string
		wantU   string
		channel string
		lot     string
	}{
		{name: "no hyphen falls back to second token", unit: "COI 5 x 12345 z", wantU: "COI", channel: "5", lot: "12345"},
		{name: "hyphen later on the line", unit: "COI 5 2-1", wantU: "COI", channel: "2-1"},
		{name: "dil shift without hyphen", unit: "COI Dil 6 x 12345 z", wantU: "COI", channel: "6", lot: "12345"},
		{name: "unit hyphen is not a channel", unit: "BILD2-D 3 x 12345 z", wantU: "BILD2-D", channel: "3", lot: "12345"},
		{name: "hyphenated unit with dash channel", unit: "BILD2-D - 1 12345 z", wantU: "BILD2-D", channel: "-", lot: "12345"},
	}
	e := mustEngine(t, "im-seq")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := reportPage(1, map[int]string{
				8:  "Ser/PI 1 Test 2024/01/02",
				13: "HBSAG 0.05",
				14: tc.unit,
			})
			res, _ := e.ProcessPage(p, true, Sequence{})
			require.Len(t, res.Records, 1)
			require.Equal(t, tc.wantU, res.Records[0].Unit)
			require.Equal(t, tc.channel, res.Records[0].Channel)
			require.Equal(t, tc.lot, res.Records[0].ReagentLot)
		})
	}
}

func TestSequenceIdentifierForms(t *testing.T) {
	e := mustEngine(t, "cc-seq")

	t.Run("alphanumeric base", func(t *testing.T) {
		p := reportPage(1, map[int]string{
			8:  "Ser/PI AB12 Test 2023/12/08",
			13: "GLU 95.2",
			14: "mg/dL 1",
			15: "ALB 4.1",
			16: "g/dL 2",
		})
		res, seq := e.ProcessPage(p, true, Sequence{})
		require.Equal(t, 2, seq.Count)
		require.Equal(t, "AB12-1", res.Records[0].Identifier)
		require.Equal(t, "AB12-2", res.Records[1].Identifier)
	})

	t.Run("no header", func(t *testing.T) {
		p := reportPage(1, map[int]string{
			13: "GLU 95.2",
			14: "mg/dL 1",
		})
		res, _ := e.ProcessPage(p, true, Sequence{Count: 2})
		require.Empty(t, res.Header.ID)
		require.Equal(t, "000003", res.Records[0].Identifier)
	})
}

func TestImmunoassayQualifiedNames(t *testing.T) {
	e := mustEngine(t, "im-seq")
	p := reportPage(1, map[int]string{
		8:  "Ser/PI 1 Test 2024/01/02",
		13: "HIV 2 v2 12,5 H",
		14: "S/CO 9 4-1",
		15: "+ TSH 3 1,20",
		16: "mIU/L Dil 7 x 12345 z",
	})

	res, _ := e.ProcessPage(p, true, Sequence{})
	require.Len(t, res.Records, 2)

	hiv := res.Records[0]
	require.Equal(t, "HIV 2 v2", hiv.TestName)
	require.Equal(t, "12.5", hiv.Result)
	require.True(t, hiv.DataAlarm)
	require.Equal(t, "4-1", hiv.Channel)
	require.Empty(t, hiv.Reactivity)

	tsh := res.Records[1]
	require.Equal(t, "TSH 3", tsh.TestName)
	require.Equal(t, "1.20", tsh.Result)
	require.True(t, tsh.Rerun)
	require.False(t, tsh.DataAlarm)
	require.Equal(t, "7", tsh.Channel)
	require.Equal(t, "12345", tsh.ReagentLot)
}

func TestContinuationPageWindow(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	p := reportPage(2, map[int]string{
		5:  "Ser/PI 200 Test 2023/12/09",
		10: "TP 7.1",
		11: "g/dL 5",
	})

	res, seq := e.ProcessPage(p, false, Sequence{Count: 4})
	require.Equal(t, 5, seq.Count)
	require.Len(t, res.Records, 1)
	require.Equal(t, "000204", res.Records[0].Identifier)
	require.Equal(t, 2, res.Records[0].Page)
	require.Equal(t, "2023/12/09", res.Records[0].Date)
}

func TestShortPages(t *testing.T) {
	e := mustEngine(t, "cc-seq")

	res, seq := e.ProcessPage(Page{Number: 1, Lines: []string{"only", "two"}}, true, Sequence{})
	require.Empty(t, res.Records)
	require.Empty(t, res.Header)
	require.Equal(t, 0, seq.Count)

	lines := make([]string, 13)
	lines[7] = "Ser/PI 100000 Test 2023/12/08"
	lines[12] = "GLU 95.2"
	res, _ = e.ProcessPage(Page{Number: 1, Lines: lines}, true, Sequence{})
	require.Empty(t, res.Records)
}

func TestLinesPastBodyEndIgnored(t *testing.T) {
	e := mustEngine(t, "cc-seq")
	lines := make([]string, 40)
	lines[7] = "Ser/PI 100000 Test 2023/12/08"
	lines[30] = "GLU 95.2"
	lines[31] = "mg/dL 1"

	res, _ := e.ProcessPage(Page{Number: 1, Lines: lines}, true, Sequence{})
	require.Empty(t, res.Records)
}

func TestProcessPageIsRepeatable(t *testing.T) {
	e := mustEngine(t, "im-id")
	p := reportPage(1, map[int]string{
		8:  "SerumPlasma ID : AB 123 2024/01/02 08:00",
		13: "HBSAG 0.05",
		14: "COI 1-2",
		15: "Reac",
	})

	a, seqA := e.ProcessPage(p, true, Sequence{})
	b, seqB := e.ProcessPage(p, true, Sequence{})
	require.Equal(t, a, b)
	require.Equal(t, seqA, seqB)
	require.Equal(t, "AB 123", a.Records[0].Identifier)
}

func TestNewRejectsBadPattern(t *testing.T) {
	v, err := NewRegistry().Lookup("cc-seq")
	require.NoError(t, err)
	v.CandidatePattern = "("
	_, err = New(v)
	require.Error(t, err)
}
