package table

import "errors"

var (
	// ErrControlNotFound means no "add step" control is on the page.
	ErrControlNotFound = errors.New("add control not found")
	// ErrInvalidInput means the caller passed unusable input, such as no records.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientColumns means a row has fewer cells than the located columns need.
	ErrInsufficientColumns = errors.New("row has too few columns")
	// ErrFieldFillFailed means no editable control accepted the value.
	ErrFieldFillFailed = errors.New("field fill failed")
	// ErrRowCountMismatch means the target row count was not reached.
	ErrRowCountMismatch = errors.New("row count did not reach target")
	// ErrRowsInsufficient means a record has no row to go into.
	ErrRowsInsufficient = errors.New("not enough table rows")
)
