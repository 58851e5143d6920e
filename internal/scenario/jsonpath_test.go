package scenario

import (
	"testing"
)

func TestLookup(t *testing.T) {
	doc, err := decodeBody([]byte(`{
		"msg": "Successfully created!",
		"storyId": "abc",
		"stories": [{"id": "s1", "title": "first"}, {"id": "s2", "title": "second"}],
		"meta": {"page": {"size": 2}}
	}`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"$.msg", "Successfully created!", true},
		{"$.storyId", "abc", true},
		{"$.stories[1].title", "second", true},
		{"$.meta.page.size", float64(2), true},
		{"$.missing", nil, false},
		{"$.stories[5]", nil, false},
		{"$.msg.nested", nil, false},
		{"$.stories.id", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok, err := lookup(doc, tt.path)
			if err != nil {
				t.Fatalf("lookup(%q) error: %v", tt.path, err)
			}
			if ok != tt.wantOK {
				t.Fatalf("lookup(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("lookup(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLookupRootArray(t *testing.T) {
	doc, _ := decodeBody([]byte(`[{"id":"a"},{"id":"b"}]`))

	got, ok, err := lookup(doc, "$[1].id")
	if err != nil || !ok || got != "b" {
		t.Errorf("lookup($[1].id) = %v, %v, %v", got, ok, err)
	}

	root, ok, _ := lookup(doc, "$")
	if !ok {
		t.Fatal("expected $ to resolve")
	}
	if arr, isArr := root.([]any); !isArr || len(arr) != 2 {
		t.Errorf("expected root array of 2, got %v", root)
	}
}

func TestLookupMalformedPath(t *testing.T) {
	for _, path := range []string{"msg", "$..msg", "$.a[", "$.a[x]", "$a"} {
		if _, _, err := lookup(map[string]any{}, path); err == nil {
			t.Errorf("expected error for %q", path)
		}
	}
}

func TestExtract(t *testing.T) {
	v, err := Extract([]byte(`{"storyId":"abc"}`), "$.storyId")
	if err != nil || v != "abc" {
		t.Errorf("Extract = %v, %v", v, err)
	}
	if _, err := Extract([]byte(`{}`), "$.storyId"); err == nil {
		t.Error("expected error for missing path")
	}
	if _, err := Extract([]byte(`<html>`), "$.storyId"); err == nil {
		t.Error("expected error for non-JSON body")
	}
}
