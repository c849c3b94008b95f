package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumber parses an unsigned cell value. A 0x prefix or an h suffix
// selects hexadecimal, otherwise defaultBase applies. Decimal cells may carry
// a zero fraction, as spreadsheets render integers stored as floats ("4.0").
func ParseNumber(s string, defaultBase int) (uint64, error) {
	s = strings.TrimSpace(s)
	base := defaultBase
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	case len(s) > 1 && (s[len(s)-1] == 'h' || s[len(s)-1] == 'H'):
		s, base = s[:len(s)-1], 16
	}
	if base == 10 {
		if i := strings.IndexByte(s, '.'); i >= 0 {
			if strings.Trim(s[i+1:], "0") != "" {
				return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformedDeclaration, s)
			}
			s = s[:i]
		}
	}
	if s == "" {
		return 0, fmt.Errorf("%w: empty number", ErrMalformedDeclaration)
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedDeclaration, err)
	}
	return v, nil
}

// ParseAddress parses an address typed by an operator: hexadecimal unless
// it is written with a 0d prefix.
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0d") || strings.HasPrefix(s, "0D") {
		return ParseNumber(s[2:], 10)
	}
	return ParseNumber(s, 16)
}
