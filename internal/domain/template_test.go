package domain

import (
	"math"
	"testing"
)

func laptopTemplate() *FormTemplate {
	return &FormTemplate{
		ID:   "tpl-1",
		Name: "Laptop",
		Fields: []Field{
			{Name: "title", Type: FieldText, Required: true},
			{Name: "units", Type: FieldNumber},
			{Name: "os", Type: FieldSelect, Options: "linux, mac ,windows"},
			{Name: "urgent", Type: FieldCheckbox},
			{Name: "needed_by", Type: FieldDate},
		},
	}
}

func TestNormalizeFormDataCoercesValues(t *testing.T) {
	tpl := laptopTemplate()
	out, issues := tpl.NormalizeFormData(FormData{
		"title":     "New laptop",
		"units":     "2",
		"os":        "mac",
		"urgent":    "true",
		"needed_by": "2024-03-05",
		"extra":     "kept",
	})
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if out["units"] != float64(2) {
		t.Fatalf("units not coerced: %#v", out["units"])
	}
	if out["urgent"] != true {
		t.Fatalf("checkbox not coerced: %#v", out["urgent"])
	}
	if out["extra"] != "kept" {
		t.Fatalf("unknown keys must be kept, got %#v", out)
	}
}

func TestNormalizeFormDataReportsEveryIssue(t *testing.T) {
	tpl := laptopTemplate()
	_, issues := tpl.NormalizeFormData(FormData{
		"title":     "   ",
		"units":     "many",
		"os":        "beos",
		"needed_by": "05/03/2024",
	})
	got := map[string]bool{}
	for _, issue := range issues {
		got[issue.Field] = true
	}
	for _, field := range []string{"title", "units", "os", "needed_by"} {
		if !got[field] {
			t.Fatalf("expected an issue for %s, got %+v", field, issues)
		}
	}
}

func TestNumberFieldRejectsNonFiniteValues(t *testing.T) {
	tpl := laptopTemplate()
	for _, units := range []any{"NaN", "Inf", "+Inf", "-inf", "1e999", math.NaN(), math.Inf(1)} {
		_, issues := tpl.NormalizeFormData(FormData{"title": "New laptop", "units": units})
		if len(issues) != 1 || issues[0].Field != "units" || issues[0].Reason != "must be a number" {
			t.Fatalf("units=%v: expected one units issue, got %+v", units, issues)
		}
	}
}

func TestRequiredCheckboxMustBeTicked(t *testing.T) {
	tpl := &FormTemplate{Name: "Consent", Fields: []Field{{Name: "agree", Type: FieldCheckbox, Required: true}}}
	if _, issues := tpl.NormalizeFormData(FormData{"agree": false}); len(issues) != 1 {
		t.Fatalf("expected unticked checkbox to fail, got %+v", issues)
	}
	if _, issues := tpl.NormalizeFormData(FormData{"agree": true}); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestValidateDefinition(t *testing.T) {
	tpl := &FormTemplate{
		Name: "",
		Fields: []Field{
			{Name: "a", Type: FieldText},
			{Name: "a", Type: FieldText},
			{Name: "b", Type: "slider"},
			{Name: "c", Type: FieldSelect},
			{Name: "", Type: FieldText},
		},
	}
	issues := tpl.ValidateDefinition()
	if len(issues) != 5 {
		t.Fatalf("expected 5 issues, got %d: %+v", len(issues), issues)
	}
	if issues := laptopTemplate().ValidateDefinition(); len(issues) != 0 {
		t.Fatalf("valid template rejected: %+v", issues)
	}
}

func TestFormDataEncodeIsStable(t *testing.T) {
	a, err := FormData{"b": 1.0, "a": "x"}.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, _ := FormData{"a": "x", "b": 1.0}.Encode()
	if a != b {
		t.Fatalf("encoding depends on insertion order: %s vs %s", a, b)
	}
	decoded, err := DecodeFormData(a)
	if err != nil || decoded["a"] != "x" {
		t.Fatalf("decode: %v %#v", err, decoded)
	}
	empty, err := DecodeFormData("")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty text should decode to an empty map: %v %#v", err, empty)
	}
}
