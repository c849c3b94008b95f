package layout

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrDuplicateType          = errors.New("duplicate struct type")
	ErrUnknownType            = errors.New("unknown type")
	ErrOversizedNesting       = errors.New("nested struct is not smaller than its container")
	ErrDuplicateOffset        = errors.New("duplicate field offset")
	ErrMalformedDeclaration   = errors.New("malformed declaration")
	ErrMissingSheet           = errors.New("no declaration sheet")
	ErrRegistryFrozen         = errors.New("registry is frozen")
	ErrInvalidRootDeclaration = errors.New("invalid root declaration")
)

// Diagnostic is a problem found while building a schema.
type Diagnostic struct {
	Struct string
	// Row is the 1-based data row within the struct's sheet, 0 if the
	// diagnostic is not tied to a row.
	Row int
	// Offset is the field offset of the row, empty if it was not parsed.
	Offset string
	Err    error
	// Fatal diagnostics abort the declaration or population of Struct.
	Fatal bool
}

func (d Diagnostic) Error() string {
	if d.Row > 0 {
		return fmt.Sprintf("%s row %d: %v", d.Struct, d.Row, d.Err)
	}
	return fmt.Sprintf("%s: %v", d.Struct, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Diagnostics is the ordered list of problems found while building a schema.
type Diagnostics []Diagnostic

// Fatal reports whether any struct failed to build.
func (ds Diagnostics) Fatal() bool {
	for _, d := range ds {
		if d.Fatal {
			return true
		}
	}
	return false
}

// Count returns the number of diagnostics matching target.
func (ds Diagnostics) Count(target error) int {
	var n int
	for _, d := range ds {
		if errors.Is(d.Err, target) {
			n++
		}
	}
	return n
}

// Err folds the diagnostics into a single error, nil if there are none.
func (ds Diagnostics) Err() error {
	var result *multierror.Error
	for _, d := range ds {
		result = multierror.Append(result, d)
	}
	return result.ErrorOrNil()
}

var diagnosticKinds = []struct {
	err  error
	kind string
}{
	{ErrDuplicateType, "duplicate_type"},
	{ErrUnknownType, "unknown_type"},
	{ErrOversizedNesting, "oversized_nesting"},
	{ErrDuplicateOffset, "duplicate_offset"},
	{ErrMalformedDeclaration, "malformed_declaration"},
	{ErrMissingSheet, "missing_sheet"},
}

// Kind is a short snake_case label for the class of d, "other" if it matches
// none of the known errors.
func (d Diagnostic) Kind() string {
	for _, k := range diagnosticKinds {
		if errors.Is(d.Err, k.err) {
			return k.kind
		}
	}
	return "other"
}
