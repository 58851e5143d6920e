package scenario

import (
	"strings"
	"testing"
)

func TestExpand(t *testing.T) {
	t.Setenv("STORYCHECK_TEST_TOKEN", "from-env")
	vars := map[string]string{"story_id": "abc-123"}
	params := map[string]string{"missing_story_id": "358"}

	tests := []struct {
		in      string
		want    string
		wantErr string
	}{
		{"/api/Story/Edit/{{story_id}}", "/api/Story/Edit/abc-123", ""},
		{"/api/Story/Delete/{{ config.missing_story_id }}", "/api/Story/Delete/358", ""},
		{"Bearer {{env.STORYCHECK_TEST_TOKEN}}", "Bearer from-env", ""},
		{"{{story_id}}/{{story_id}}", "abc-123/abc-123", ""},
		{"no templates", "no templates", ""},
		{"{{unknown}}", "", "unresolved"},
		{"{{config.nope}}", "", "unknown config key"},
		{"{{story_id", "", "unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Expand(tt.in, vars, params)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expand(%q) error = %v, want containing %q", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expand(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandDoesNotRescanValues(t *testing.T) {
	got, err := Expand("{{a}}", map[string]string{"a": "{{a}}"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "{{a}}" {
		t.Errorf("expected substituted value kept verbatim, got %q", got)
	}
}
