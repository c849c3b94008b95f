package layout

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// MemoryKind is the primitive kind of a leaf Unit.
type MemoryKind uint8

const (
	Unresolved MemoryKind = iota
	Unknown
	Padding
	Integer
	TextBuffer
	Code
	Other
)

var kindNames = [...]string{
	Unresolved: "Unresolved",
	Unknown:    "Unknown",
	Padding:    "Padding",
	Integer:    "Integer",
	TextBuffer: "TextBuffer",
	Code:       "Code",
	Other:      "Other",
}

// Older workbooks use these names.
var kindAliases = map[string]MemoryKind{
	"NoRecord": Unresolved,
	"CharSet":  TextBuffer,
	"Function": Code,
}

func (k MemoryKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "MemoryKind(" + strconv.Itoa(int(k)) + ")"
}

// Kinds returns all memory kinds in declaration order.
func Kinds() []MemoryKind {
	return []MemoryKind{Unresolved, Unknown, Padding, Integer, TextBuffer, Code, Other}
}

// ParseKind maps a type column value onto a primitive kind. Snake case and
// lower case spellings are accepted, as are the legacy aliases.
func ParseKind(s string) (MemoryKind, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	name := strcase.ToCamel(s)
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return MemoryKind(k), true
		}
	}
	for alias, k := range kindAliases {
		if strings.EqualFold(alias, name) {
			return k, true
		}
	}
	return 0, false
}
