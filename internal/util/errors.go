package util

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
)
