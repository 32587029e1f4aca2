package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// Sequence is the document-wide record counter. It is passed by value into
// each page and returned updated, so the caller's loop owns it.
type Sequence struct {
	Count int `json:"count"`
}

func (s Sequence) Next() Sequence {
	return Sequence{Count: s.Count + 1}
}

// DeriveID builds the sequence-mode identifier for the n-th record (1-based)
// of a document whose page header carried base.
func DeriveID(base string, n int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return fmt.Sprintf("%06d", n)
	}
	num, err := strconv.Atoi(base)
	if err != nil {
		return fmt.Sprintf("%s-%d", base, n)
	}
	return fmt.Sprintf("%06d", num+n-1)
}
