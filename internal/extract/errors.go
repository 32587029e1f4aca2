package extract

import "errors"

var (
	ErrUnknownVariant = errors.New("unknown variant")
	ErrNoPages        = errors.New("document has no pages")
	ErrNoRecords      = errors.New("no result records found in document")
)
