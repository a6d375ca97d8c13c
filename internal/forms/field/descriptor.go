package field

// Default display hints.
const (
	DefaultDateFormat   = "MM/dd/yyyy"
	DefaultPhoneCountry = "IN"
)

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
	Image string
}

// SlotFunc renders the markup of a custom slot for the field's current value.
type SlotFunc func(name, value string) (string, error)

// Descriptor describes one field of a form. It is immutable once a page has
// built it and is never mutated by the renderer.
type Descriptor struct {
	Kind        Kind
	Name        string
	Label       string
	Placeholder string
	IconSrc     string
	IconAlt     string
	Disabled    bool

	// DateFormat and ShowTimeSelect apply to KindDatePicker.
	DateFormat     string
	ShowTimeSelect bool

	// Options applies to KindSelect.
	Options []Option

	// Slot applies to KindSkeleton.
	Slot SlotFunc
}

// Format returns the configured date format or the default one.
func (d Descriptor) Format() string {
	if d.DateFormat != "" {
		return d.DateFormat
	}
	return DefaultDateFormat
}

// HasOption reports whether value is one of the select options.
func (d Descriptor) HasOption(value string) bool {
	for _, o := range d.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
