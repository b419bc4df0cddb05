package probe

import "testing"

func TestFieldPresent(t *testing.T) {
	tests := []struct {
		name string
		body string
		path string
		want bool
	}{
		{"empty path always present", `{}`, "", true},
		{"empty path on non-json", `not json`, "", true},
		{"top-level present", `{"id": 7}`, "id", true},
		{"top-level null still present", `{"id": null}`, "id", true},
		{"top-level absent", `{"name": "x"}`, "id", false},
		{"nested present", `{"data": {"id": 7}}`, "data.id", true},
		{"nested absent leaf", `{"data": {"name": "x"}}`, "data.id", false},
		{"nested absent branch", `{"meta": {}}`, "data.id", false},
		{"descent through scalar", `{"data": 3}`, "data.id", false},
		{"descent through array", `{"data": [{"id": 7}]}`, "data.id", false},
		{"deep nesting", `{"a": {"b": {"c": true}}}`, "a.b.c", true},
		{"non-json body", `<html></html>`, "id", false},
		{"empty body", ``, "id", false},
		{"json array body", `[{"id": 1}]`, "id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldPresent([]byte(tt.body), tt.path); got != tt.want {
				t.Errorf("FieldPresent(%q, %q) = %v, want %v", tt.body, tt.path, got, tt.want)
			}
		})
	}
}
