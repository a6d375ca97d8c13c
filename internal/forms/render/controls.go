package render

import (
	"strings"
	"time"

	"carepulse/internal/forms/field"
	"carepulse/internal/forms/formstate"

	"github.com/flosch/pongo2/v6"
	"github.com/nyaruka/phonenumbers"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04"
)

func first(raw []string) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	return strings.TrimSpace(raw[0]), true
}

func baseContext(d field.Descriptor) pongo2.Context {
	return pongo2.Context{
		"name":        d.Name,
		"label":       d.Label,
		"placeholder": d.Placeholder,
		"disabled":    d.Disabled,
	}
}

// textControl serves both single line inputs and textareas.
type textControl struct {
	desc    field.Descriptor
	binding formstate.Binding[string]
	tpl     string
}

func newTextControl(d field.Descriptor, s *formstate.State, tpl string) *textControl {
	return &textControl{desc: d, binding: formstate.Bind[string](s, d.Name), tpl: tpl}
}

func (c *textControl) template() string { return c.tpl }

func (c *textControl) context() (pongo2.Context, error) {
	ctx := baseContext(c.desc)
	ctx["value"] = c.binding.Value()
	ctx["iconSrc"] = c.desc.IconSrc
	ctx["iconAlt"] = c.desc.IconAlt
	return ctx, nil
}

func (c *textControl) decode(raw []string) error {
	if v, ok := first(raw); ok {
		c.binding.Set(v)
	}
	return nil
}

type phoneControl struct {
	desc    field.Descriptor
	binding formstate.Binding[string]
	region  string
}

func (c *phoneControl) template() string { return "phone.tpl" }

func (c *phoneControl) context() (pongo2.Context, error) {
	ctx := baseContext(c.desc)
	ctx["value"] = c.binding.Value()
	ctx["country"] = c.region
	return ctx, nil
}

// decode stores the number in E.164. Input that is not a valid number is
// stored as typed so validation can report it against the field.
func (c *phoneControl) decode(raw []string) error {
	v, ok := first(raw)
	if !ok {
		return nil
	}
	c.binding.Set(normalizePhone(v, c.region))
	return nil
}

func normalizePhone(v, region string) string {
	if v == "" {
		return ""
	}
	num, err := phonenumbers.Parse(v, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return v
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

type checkboxControl struct {
	desc    field.Descriptor
	binding formstate.Binding[bool]
}

func (c *checkboxControl) template() string { return "checkbox.tpl" }

func (c *checkboxControl) context() (pongo2.Context, error) {
	ctx := baseContext(c.desc)
	ctx["checked"] = c.binding.Value()
	return ctx, nil
}

// decode treats an absent value as unchecked, matching how browsers submit checkboxes.
func (c *checkboxControl) decode(raw []string) error {
	v, _ := first(raw)
	switch strings.ToLower(v) {
	case "true", "on", "1", "yes":
		c.binding.Set(true)
	default:
		c.binding.Set(false)
	}
	return nil
}

type dateControl struct {
	desc     field.Descriptor
	binding  formstate.Binding[time.Time]
	location *time.Location
}

func (c *dateControl) template() string { return "datepicker.tpl" }

func (c *dateControl) layout() string {
	if c.desc.ShowTimeSelect {
		return dateTimeLayout
	}
	return dateLayout
}

func (c *dateControl) context() (pongo2.Context, error) {
	ctx := baseContext(c.desc)
	inputType := "date"
	if c.desc.ShowTimeSelect {
		inputType = "datetime-local"
	}
	value := ""
	if t := c.binding.Value(); !t.IsZero() {
		value = t.In(c.location).Format(c.layout())
	}
	ctx["inputType"] = inputType
	ctx["value"] = value
	ctx["format"] = c.desc.Format()
	return ctx, nil
}

func (c *dateControl) decode(raw []string) error {
	v, ok := first(raw)
	if !ok {
		return nil
	}
	if v == "" {
		c.binding.Set(time.Time{})
		return nil
	}
	for _, layout := range []string{c.layout(), dateTimeLayout, dateLayout} {
		if t, err := time.ParseInLocation(layout, v, c.location); err == nil {
			c.binding.Set(t)
			return nil
		}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		c.binding.Set(t)
		return nil
	}
	c.binding.Set(time.Time{})
	return &FieldError{Field: c.desc.Name, Message: "Enter a valid date"}
}

type selectControl struct {
	desc    field.Descriptor
	binding formstate.Binding[string]
}

func (c *selectControl) template() string { return "select.tpl" }

func (c *selectControl) context() (pongo2.Context, error) {
	ctx := baseContext(c.desc)
	ctx["value"] = c.binding.Value()
	ctx["options"] = c.desc.Options
	return ctx, nil
}

func (c *selectControl) decode(raw []string) error {
	v, ok := first(raw)
	if !ok {
		return nil
	}
	c.binding.Set(v)
	if v != "" && len(c.desc.Options) > 0 && !c.desc.HasOption(v) {
		return &FieldError{Field: c.desc.Name, Message: "Select one of the listed options"}
	}
	return nil
}

// slotControl hosts caller supplied markup for the field's value.
type slotControl struct {
	desc    field.Descriptor
	binding formstate.Binding[string]
}

func (c *slotControl) template() string { return "skeleton.tpl" }

func (c *slotControl) context() (pongo2.Context, error) {
	ctx := baseContext(c.desc)
	markup := ""
	if c.desc.Slot != nil {
		raw, err := c.desc.Slot(c.desc.Name, c.binding.Value())
		if err != nil {
			return nil, err
		}
		markup = sanitizeSlotMarkup(raw)
	}
	ctx["markup"] = markup
	return ctx, nil
}

func (c *slotControl) decode(raw []string) error {
	if v, ok := first(raw); ok {
		c.binding.Set(v)
	}
	return nil
}
