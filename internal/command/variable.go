package command

import (
	"strings"

	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// Variable value kinds.
const (
	VarNumber = "number"
	VarString = "string"
)

// VarValue is one screen match bound to a variable: the OCR text it came
// from, its parsed numeric value (for number variables), the classified
// text color when known, and the on-screen box.
type VarValue struct {
	Match string
	Value float64
	Text  string
	Color string
	BBox  geometry.Rect
	Score float64
}

// Variable is a named binding captured from the screen by the SET action.
// Re-issuing SET replaces the values; click and condition handlers read
// them. Boxes are screen-absolute, so they survive capture region changes.
type Variable struct {
	Name   string
	Type   string
	Desc   string
	Values []VarValue
}

// IsNumeric reports whether the variable captures numeric matches.
func (v *Variable) IsNumeric() bool {
	return v.Type == VarNumber || v.Type == "num"
}

// ParseVariableSpec splits the pipe-delimited "name|type|desc" form used
// by the SET action. Missing parts come back empty.
func ParseVariableSpec(s string) Variable {
	parts := strings.SplitN(s, "|", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return Variable{
		Name: strings.TrimSpace(parts[0]),
		Type: strings.TrimSpace(parts[1]),
		Desc: strings.TrimSpace(parts[2]),
	}
}
