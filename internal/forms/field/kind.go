// Package field holds the closed set of form field kinds and the descriptor
// each page passes to the renderer.
package field

// Kind identifies which control a field renders as. The set is closed; the
// renderer dispatches on it with one switch.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInput
	KindTextarea
	KindPhoneInput
	KindCheckbox
	KindDatePicker
	KindSelect
	KindSkeleton
)

var kindNames = map[Kind]string{
	KindInput:      "input",
	KindTextarea:   "textarea",
	KindPhoneInput: "phoneInput",
	KindCheckbox:   "checkbox",
	KindDatePicker: "datePicker",
	KindSelect:     "select",
	KindSkeleton:   "skeleton",
}

// Kinds returns every renderable kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindInput,
		KindTextarea,
		KindPhoneInput,
		KindCheckbox,
		KindDatePicker,
		KindSelect,
		KindSkeleton,
	}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k is one of the renderable kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}
