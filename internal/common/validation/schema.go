package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names, one per embedded file under schemas/.
const (
	SchemaUser                = "user"
	SchemaPatient             = "patient"
	SchemaAppointmentCreate   = "appointment.create"
	SchemaAppointmentSchedule = "appointment.schedule"
	SchemaAppointmentCancel   = "appointment.cancel"
)

// AppointmentSchema picks the schema for an appointment form purpose.
// Anything other than schedule or cancel validates as a new appointment.
func AppointmentSchema(purpose string) string {
	switch purpose {
	case "schedule":
		return SchemaAppointmentSchedule
	case "cancel":
		return SchemaAppointmentCancel
	default:
		return SchemaAppointmentCreate
	}
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// compiledSchema pairs a loaded schema with the per-property messages declared
// under each property's "errorMessages" keyword.
type compiledSchema struct {
	schema   *gojsonschema.Schema
	messages map[string]map[string]string
}

type schemaDocument struct {
	Properties map[string]struct {
		ErrorMessages map[string]string `json:"errorMessages"`
	} `json:"properties"`
}

// Validator validates form values against the embedded schemas.
type Validator struct {
	schemas map[string]*compiledSchema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// Default returns a process-wide Validator compiled on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = NewValidator()
	})
	return defaultValidator, defaultErr
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	v := &Validator{schemas: make(map[string]*compiledSchema, len(entries))}
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}

		var doc schemaDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry.Name(), err)
		}
		messages := make(map[string]map[string]string, len(doc.Properties))
		for prop, def := range doc.Properties {
			if len(def.ErrorMessages) > 0 {
				messages[prop] = def.ErrorMessages
			}
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		v.schemas[name] = &compiledSchema{schema: schema, messages: messages}
	}
	return v, nil
}

// Has reports whether a schema with the given name is loaded.
func (v *Validator) Has(name string) bool {
	_, ok := v.schemas[name]
	return ok
}

// Validate checks values against the named schema. Empty strings and zero
// times count as absent, so a blank required field reports as required.
func (v *Validator) Validate(name string, values map[string]interface{}) (*ValidationResult, error) {
	compiled, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	result, err := compiled.schema.Validate(gojsonschema.NewGoLoader(Document(values)))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: compiled.message(field, desc),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool {
		return out.Errors[i].Field < out.Errors[j].Field
	})
	return out, nil
}

func (c *compiledSchema) message(field string, desc gojsonschema.ResultError) string {
	if msgs, ok := c.messages[field]; ok {
		if msg, ok := msgs[desc.Type()]; ok {
			return msg
		}
	}
	return desc.Description()
}

// Document converts bound form values into the JSON shape the schemas
// describe. Blank strings and zero times are dropped, other times become
// RFC 3339 strings.
func Document(values map[string]interface{}) map[string]interface{} {
	doc := make(map[string]interface{}, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) == "" {
				continue
			}
			doc[k] = val
		case time.Time:
			if val.IsZero() {
				continue
			}
			doc[k] = val.UTC().Format(time.RFC3339)
		default:
			doc[k] = val
		}
	}
	return doc
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// ByField groups messages by field, keeping schema order within a field.
func (vr *ValidationResult) ByField() map[string][]string {
	out := make(map[string][]string)
	for _, err := range vr.Errors {
		out[err.Field] = append(out[err.Field], err.Message)
	}
	return out
}
