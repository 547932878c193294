package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FieldType is the closed set of input kinds a template field can have.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
)

const dateLayout = "2006-01-02"

// ParseFieldType validates a field type coming from outside the process.
func ParseFieldType(s string) (FieldType, error) {
	switch ft := FieldType(strings.ToLower(strings.TrimSpace(s))); ft {
	case FieldText, FieldTextarea, FieldNumber, FieldDate, FieldSelect, FieldCheckbox:
		return ft, nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}

// Field is one input of a form template. Options is comma separated and only
// meaningful for select fields.
type Field struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  string    `json:"options,omitempty"`
}

// OptionList splits Options into trimmed, non-empty choices.
func (f Field) OptionList() []string {
	var out []string
	for _, opt := range strings.Split(f.Options, ",") {
		if opt = strings.TrimSpace(opt); opt != "" {
			out = append(out, opt)
		}
	}
	return out
}

// Normalize coerces a submitted value to the representation stored for the
// field type: numbers as float64, checkboxes as bool, everything else as string.
func (f Field) Normalize(value any) (any, error) {
	switch f.Type {
	case FieldText, FieldTextarea:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		return s, nil
	case FieldNumber:
		var n float64
		switch v := value.(type) {
		case float64:
			n = v
		case int:
			n = float64(v)
		case int64:
			n = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("must be a number")
			}
			n = parsed
		default:
			return nil, fmt.Errorf("must be a number")
		}
		// NaN and Inf parse but cannot be stored as JSON
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("must be a number")
		}
		return n, nil
	case FieldDate:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("must be a date string")
		}
		s = strings.TrimSpace(s)
		if _, err := time.Parse(dateLayout, s); err != nil {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				return nil, fmt.Errorf("must be a date in YYYY-MM-DD format")
			}
		}
		return s, nil
	case FieldSelect:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("must be one of the listed options")
		}
		options := f.OptionList()
		if len(options) == 0 {
			return s, nil
		}
		for _, opt := range options {
			if opt == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("must be one of: %s", strings.Join(options, ", "))
	case FieldCheckbox:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("must be true or false")
			}
			return b, nil
		default:
			return nil, fmt.Errorf("must be true or false")
		}
	default:
		return nil, fmt.Errorf("unsupported field type %q", f.Type)
	}
}

func (f Field) isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		// a required checkbox must be ticked
		return f.Type == FieldCheckbox && !v
	default:
		return false
	}
}

// FormTemplate is a named, ordered set of typed fields.
type FormTemplate struct {
	ID        string
	Name      string
	Fields    []Field
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FieldIssue describes why one submitted value was rejected.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// NormalizeFormData checks required fields and value types against the
// template. Keys that match no field are kept as submitted.
func (t *FormTemplate) NormalizeFormData(data FormData) (FormData, []FieldIssue) {
	out := make(FormData, len(data))
	for k, v := range data {
		out[k] = v
	}
	var issues []FieldIssue
	for _, field := range t.Fields {
		value, present := data[field.Name]
		if !present || field.isBlank(value) {
			if field.Required {
				issues = append(issues, FieldIssue{Field: field.Name, Reason: "is required"})
			}
			continue
		}
		normalized, err := field.Normalize(value)
		if err != nil {
			issues = append(issues, FieldIssue{Field: field.Name, Reason: err.Error()})
			continue
		}
		out[field.Name] = normalized
	}
	return out, issues
}

// ValidateDefinition checks the template itself before it is stored.
func (t *FormTemplate) ValidateDefinition() []FieldIssue {
	var issues []FieldIssue
	if strings.TrimSpace(t.Name) == "" {
		issues = append(issues, FieldIssue{Field: "name", Reason: "is required"})
	}
	if len(t.Fields) == 0 {
		issues = append(issues, FieldIssue{Field: "fields", Reason: "at least one field is required"})
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for i, field := range t.Fields {
		label := fmt.Sprintf("fields[%d]", i)
		if strings.TrimSpace(field.Name) == "" {
			issues = append(issues, FieldIssue{Field: label, Reason: "name is required"})
			continue
		}
		if _, dup := seen[field.Name]; dup {
			issues = append(issues, FieldIssue{Field: label, Reason: fmt.Sprintf("duplicate field name %q", field.Name)})
		}
		seen[field.Name] = struct{}{}
		if _, err := ParseFieldType(string(field.Type)); err != nil {
			issues = append(issues, FieldIssue{Field: label, Reason: err.Error()})
			continue
		}
		if field.Type == FieldSelect && len(field.OptionList()) == 0 {
			issues = append(issues, FieldIssue{Field: label, Reason: "select fields need at least one option"})
		}
	}
	return issues
}
