package extract

// Page is one physical report page as text rows, top to bottom.
type Page struct {
	Number int      `json:"page"`
	Lines  []string `json:"lines"`
}

// Header holds the per-page identifier and date; empty fields mean absent.
type Header struct {
	ID   string `json:"id,omitempty"`
	Date string `json:"date,omitempty"`
}

type Reactivity string

const (
	ReactivityNone        Reactivity = ""
	ReactivityReactive    Reactivity = "Reactive"
	ReactivityNonReactive Reactivity = "NonReactive"
)

// Record is one extracted result row. Records are never mutated after the
// engine emits them.
type Record struct {
	Identifier string     `json:"identifier"`
	TestName   string     `json:"test_name"`
	Result     string     `json:"result"`
	Unit       string     `json:"unit"`
	Channel    string     `json:"channel"`
	ReagentLot string     `json:"reagent_lot,omitempty"`
	DataAlarm  bool       `json:"data_alarm"`
	Rerun      bool       `json:"rerun"`
	Date       string     `json:"date,omitempty"`
	Reactivity Reactivity `json:"reactivity,omitempty"`
	Page       int        `json:"page"`
	Line       int        `json:"line"`
}

// YN renders a flag the way the analyzer review sheets expect.
func YN(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
