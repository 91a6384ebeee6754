package command

import "strings"

// Kind identifies the family of a resolved intent. The dispatch table in
// the handlers package must cover every value; an unmatched kind is an
// internal inconsistency, not a user error.
type Kind int

const (
	KindUnknown Kind = iota
	KindMouseClick
	KindKeyboardWrite
	KindKeyboardPress
	KindTimerSleep
	KindScreenCapture
	KindConditionIf
	KindConditionEndIf
	KindVariableSet
	KindLoopStart
	KindLoopStop
	KindToggleGPT
	KindWaitForText
	KindWaitForImage
	KindSequenceStart
	KindSequenceSave
	KindSequencePlay
	KindSequenceReset
	KindSequenceClearPrev
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindMouseClick:        "mouse_click",
	KindKeyboardWrite:     "keyboard_write",
	KindKeyboardPress:     "keyboard_press",
	KindTimerSleep:        "timer_sleep",
	KindScreenCapture:     "screen_capture",
	KindConditionIf:       "condition_if",
	KindConditionEndIf:    "condition_end_if",
	KindVariableSet:       "variable_set",
	KindLoopStart:         "loop_start",
	KindLoopStop:          "loop_stop",
	KindToggleGPT:         "toggle_gpt",
	KindWaitForText:       "wait_for_text",
	KindWaitForImage:      "wait_for_image",
	KindSequenceStart:     "sequence_start",
	KindSequenceSave:      "sequence_save",
	KindSequencePlay:      "sequence_play",
	KindSequenceReset:     "sequence_reset",
	KindSequenceClearPrev: "sequence_clear_prev",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsControl reports whether the kind is a sequence, loop, or condition
// control event. Control events manage the recording stack themselves and
// are never appended to it as steps.
func (k Kind) IsControl() bool {
	switch k {
	case KindConditionIf, KindConditionEndIf,
		KindLoopStart, KindLoopStop,
		KindSequenceStart, KindSequenceSave, KindSequencePlay,
		KindSequenceReset, KindSequenceClearPrev:
		return true
	}
	return false
}

// MouseButton is a bitset of click modifiers. The low bits select the
// physical button and click kind; the high bits select the target
// resolution strategy. Orthogonal modifiers combine, e.g.
// BtnRight|BtnSpatialLeft is "right click left of <target>".
type MouseButton uint16

const (
	BtnLeft MouseButton = 1 << iota
	BtnRight
	BtnMiddle
	BtnDouble
	BtnImage
	BtnShiftLeft
	BtnShiftRight
	BtnVarAll
	BtnVarTop
	BtnSpatialLeft
	BtnSpatialRight
	BtnSpatialAbove
	BtnSpatialBelow
)

// BtnSpatialAny masks all spatial-relation modifiers.
const BtnSpatialAny = BtnSpatialLeft | BtnSpatialRight | BtnSpatialAbove | BtnSpatialBelow

// BtnShiftAny masks the shift-held click modifiers.
const BtnShiftAny = BtnShiftLeft | BtnShiftRight

// Has reports whether all bits of f are set.
func (b MouseButton) Has(f MouseButton) bool { return b&f == f }

// HasAny reports whether any bit of f is set.
func (b MouseButton) HasAny(f MouseButton) bool { return b&f != 0 }

// Physical returns the physical button to press once modifiers are
// stripped. Shift variants and image clicks press their underlying button.
func (b MouseButton) Physical() MouseButton {
	switch {
	case b.HasAny(BtnRight | BtnShiftRight):
		return BtnRight
	case b.Has(BtnMiddle):
		return BtnMiddle
	default:
		return BtnLeft
	}
}

func (b MouseButton) String() string {
	names := []struct {
		f MouseButton
		s string
	}{
		{BtnLeft, "left"}, {BtnRight, "right"}, {BtnMiddle, "middle"},
		{BtnDouble, "double"}, {BtnImage, "image"},
		{BtnShiftLeft, "shift_left"}, {BtnShiftRight, "shift_right"},
		{BtnVarAll, "var_all"}, {BtnVarTop, "var_top"},
		{BtnSpatialLeft, "spatial_left"}, {BtnSpatialRight, "spatial_right"},
		{BtnSpatialAbove, "spatial_above"}, {BtnSpatialBelow, "spatial_below"},
	}
	var parts []string
	for _, n := range names {
		if b.Has(n.f) {
			parts = append(parts, n.s)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Intent is the resolved command category. Kind selects the handler
// family; Buttons carries click modifiers and is meaningful only for
// KindMouseClick.
type Intent struct {
	Kind    Kind
	Buttons MouseButton
}

func (i Intent) String() string {
	if i.Kind == KindMouseClick {
		return i.Kind.String() + "(" + i.Buttons.String() + ")"
	}
	return i.Kind.String()
}
