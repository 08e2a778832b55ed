// Package errors provides sentinel errors for book query operations.
package errors

import "errors"

var ErrInvalidPageSize = errors.New("page size must be at least 1")
var ErrInvalidFilter = errors.New("invalid book filter")
