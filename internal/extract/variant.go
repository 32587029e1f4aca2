package extract

import (
	"fmt"
	"sort"
	"strings"
)

type Analyzer string

const (
	AnalyzerChemistry   Analyzer = "chemistry"
	AnalyzerImmunoassay Analyzer = "immunoassay"
)

// IDMode selects how a record's identifier is derived.
type IDMode string

const (
	IDModeSequence IDMode = "sequence"
	IDModeBarcode  IDMode = "barcode"
)

// NameRule selects how the test name and result are pulled from a candidate line.
type NameRule string

const (
	// NameFixed takes one token (two for the ISE marker) and the token after it.
	NameFixed NameRule = "fixed"
	// NameQualified takes the leading token plus single-digit or v<n> qualifiers,
	// then the first token that parses as a number.
	NameQualified NameRule = "qualified"
)

// UnitRule decides whether the line after a candidate is its unit line.
type UnitRule string

const (
	UnitWhitelist UnitRule = "whitelist"
	UnitAny       UnitRule = "any"
)

// ChannelRule selects how the AU channel is picked from the unit line.
type ChannelRule string

const (
	ChannelPositional ChannelRule = "positional"
	ChannelHyphen     ChannelRule = "hyphen"
)

// Layout holds 1-based line numbers as printed by the analyzer.
type Layout struct {
	FirstHeaderLine int `yaml:"first_header_line" json:"first_header_line"`
	NextHeaderLine  int `yaml:"next_header_line" json:"next_header_line"`
	FirstBodyStart  int `yaml:"first_body_start" json:"first_body_start"`
	NextBodyStart   int `yaml:"next_body_start" json:"next_body_start"`
	BodyEnd         int `yaml:"body_end" json:"body_end"`
}

// Variant is the full set of layout and field-composition rules for one
// analyzer/identifier-mode combination.
type Variant struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Analyzer    Analyzer `yaml:"analyzer" json:"analyzer"`
	IDMode      IDMode   `yaml:"id_mode" json:"id_mode"`
	Layout      Layout   `yaml:"layout" json:"layout"`

	FirstHeaderMarkers []string `yaml:"first_header_markers" json:"first_header_markers"`
	NextHeaderMarkers  []string `yaml:"next_header_markers" json:"next_header_markers"`
	// SampleIDMarker switches barcode-mode headers to the "ID : <tokens> <date>" form.
	SampleIDMarker string `yaml:"sample_id_marker" json:"sample_id_marker"`

	SkipMarkers       []string `yaml:"skip_markers" json:"skip_markers"`
	CandidatePattern  string   `yaml:"candidate_pattern" json:"candidate_pattern"`
	CandidatePrefixes []string `yaml:"candidate_prefixes" json:"candidate_prefixes"`
	ISEMarker         string   `yaml:"ise_marker" json:"ise_marker"`

	NameRule    NameRule    `yaml:"name_rule" json:"name_rule"`
	UnitRule    UnitRule    `yaml:"unit_rule" json:"unit_rule"`
	Units       []string    `yaml:"units" json:"units"`
	ChannelRule ChannelRule `yaml:"channel_rule" json:"channel_rule"`
	// ShiftTokens push channel and lot one column right when they appear second on the unit line.
	ShiftTokens []string `yaml:"shift_tokens" json:"shift_tokens"`

	Reactivity     bool   `yaml:"reactivity" json:"reactivity"`
	ReactivityUnit string `yaml:"reactivity_unit" json:"reactivity_unit"`
}

const (
	chemistryCandidate   = `^[+]?[A-Z][A-Z0-9\-]*\s+[\d.]+`
	immunoassayCandidate = `^[+]?[A-Z][A-Z0-9\-]+`
)

var defaultLayout = Layout{
	FirstHeaderLine: 8,
	NextHeaderLine:  5,
	FirstBodyStart:  13,
	NextBodyStart:   10,
	BodyEnd:         30,
}

func chemistry(name string, mode IDMode) Variant {
	return Variant{
		Name:               name,
		Description:        "cobas pro CC (c503, c703), " + string(mode) + " mode",
		Analyzer:           AnalyzerChemistry,
		IDMode:             mode,
		Layout:             defaultLayout,
		FirstHeaderMarkers: []string{"Ser/PI", "SerumPlasma"},
		NextHeaderMarkers:  []string{"Ser/PI"},
		SampleIDMarker:     "SerumPlasma",
		SkipMarkers:        []string{"R2", "R3"},
		CandidatePattern:   chemistryCandidate,
		CandidatePrefixes:  []string{"+", "ISE"},
		ISEMarker:          "ISE",
		NameRule:           NameFixed,
		UnitRule:           UnitWhitelist,
		Units:              []string{"mg/dL", "g/dL", "mmol/L", "U/L", "%"},
		ChannelRule:        ChannelPositional,
		ShiftTokens:        []string{"NACL"},
	}
}

func immunoassay(name string, mode IDMode) Variant {
	return Variant{
		Name:               name,
		Description:        "cobas pro IM (e801), " + string(mode) + " mode",
		Analyzer:           AnalyzerImmunoassay,
		IDMode:             mode,
		Layout:             defaultLayout,
		FirstHeaderMarkers: []string{"Ser/PI", "SerumPlasma"},
		NextHeaderMarkers:  []string{"Ser/PI", "SerumPlasma"},
		SampleIDMarker:     "SerumPlasma",
		SkipMarkers:        []string{"R2", "R3"},
		CandidatePattern:   immunoassayCandidate,
		CandidatePrefixes:  []string{"+"},
		NameRule:           NameQualified,
		UnitRule:           UnitAny,
		ChannelRule:        ChannelHyphen,
		ShiftTokens:        []string{"NACL", "Dil"},
		Reactivity:         true,
		ReactivityUnit:     "COI",
	}
}

var builtin = map[string]Variant{
	"cc-seq": chemistry("cc-seq", IDModeSequence),
	"cc-id":  chemistry("cc-id", IDModeBarcode),
	"im-seq": immunoassay("im-seq", IDModeSequence),
	"im-id":  immunoassay("im-id", IDModeBarcode),
}

// Variants returns the built-in variants sorted by name.
func Variants() []Variant {
	out := make([]Variant, 0, len(builtin))
	for _, v := range builtin {
		out = append(out, v.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (v Variant) clone() Variant {
	v.FirstHeaderMarkers = append([]string(nil), v.FirstHeaderMarkers...)
	v.NextHeaderMarkers = append([]string(nil), v.NextHeaderMarkers...)
	v.SkipMarkers = append([]string(nil), v.SkipMarkers...)
	v.CandidatePrefixes = append([]string(nil), v.CandidatePrefixes...)
	v.Units = append([]string(nil), v.Units...)
	v.ShiftTokens = append([]string(nil), v.ShiftTokens...)
	return v
}

// Columns is the spreadsheet column order for records of this variant.
func (v Variant) Columns() []string {
	first := "Seq No."
	if v.IDMode == IDModeBarcode {
		first = "Sample ID"
	}
	cols := []string{first, "Test Name", "Result", "Unit", "AU", "R.P Lot", "Data Alarm", "Rerun", "Date"}
	if v.Reactivity {
		cols = append(cols, "R/NR")
	}
	return cols
}

// Validate reports the first inconsistency in the variant's rules.
func (v Variant) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("variant name is required")
	}
	switch v.IDMode {
	case IDModeSequence, IDModeBarcode:
	default:
		return fmt.Errorf("variant %s: unsupported id_mode %q", v.Name, v.IDMode)
	}
	switch v.NameRule {
	case NameFixed, NameQualified:
	default:
		return fmt.Errorf("variant %s: unsupported name_rule %q", v.Name, v.NameRule)
	}
	switch v.UnitRule {
	case UnitAny:
	case UnitWhitelist:
		if len(v.Units) == 0 {
			return fmt.Errorf("variant %s: whitelist unit rule needs units", v.Name)
		}
	default:
		return fmt.Errorf("variant %s: unsupported unit_rule %q", v.Name, v.UnitRule)
	}
	switch v.ChannelRule {
	case ChannelPositional, ChannelHyphen:
	default:
		return fmt.Errorf("variant %s: unsupported channel_rule %q", v.Name, v.ChannelRule)
	}
	l := v.Layout
	if l.FirstHeaderLine < 1 || l.NextHeaderLine < 1 || l.FirstBodyStart < 1 || l.NextBodyStart < 1 {
		return fmt.Errorf("variant %s: layout line numbers start at 1", v.Name)
	}
	if l.BodyEnd < l.FirstBodyStart || l.BodyEnd < l.NextBodyStart {
		return fmt.Errorf("variant %s: body_end %d precedes body start", v.Name, l.BodyEnd)
	}
	if v.Reactivity && v.ReactivityUnit == "" {
		return fmt.Errorf("variant %s: reactivity needs reactivity_unit", v.Name)
	}
	return nil
}
