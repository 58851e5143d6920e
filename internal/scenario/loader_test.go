package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalScenario = `{
  "name": "%s",
  "steps": [{"name": "list", "request": {"method": "GET", "path": "/api/Story/All"}}]
}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crud.json", `{
  "name": "crud",
  "setup": {"reset": true, "state_file": "seed/state.json"},
  "variables": {"title": "t"},
  "steps": [
    {"name": "create", "request": {"method": "POST", "path": "/api/Story/Create", "body": {"title": "{{title}}"}},
     "capture": {"id": "$.storyId"}, "assert": {"status": 201}}
  ]
}`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "crud" || len(s.Steps) != 1 {
		t.Fatalf("unexpected scenario: %+v", s)
	}
	if s.Steps[0].Capture["id"] != "$.storyId" {
		t.Errorf("capture not parsed: %v", s.Steps[0].Capture)
	}
	if s.Steps[0].Assert == nil || s.Steps[0].Assert.Status != 201 {
		t.Errorf("assert not parsed: %+v", s.Steps[0].Assert)
	}
	want := filepath.Join(dir, "seed", "state.json")
	if s.Setup.StateFile != want {
		t.Errorf("StateFile = %q, want %q", s.Setup.StateFile, want)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"yaml extension", "s.yaml", "name: x", "only .json"},
		{"bad json", "bad.json", "{", "parsing scenario"},
		{"no name", "noname.json", `{"steps":[{"name":"a","request":{"method":"GET","path":"/"}}]}`, "name is required"},
		{"no steps", "nosteps.json", `{"name":"x"}`, "at least one step"},
		{"no method", "nomethod.json", `{"name":"x","steps":[{"name":"a","request":{"path":"/"}}]}`, "method and path are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, dir, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadPathDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", strings.Replace(minimalScenario, "%s", "second", 1))
	writeFile(t, dir, "a.json", strings.Replace(minimalScenario, "%s", "first", 1))
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	scenarios, err := LoadPath(dir)
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
	if scenarios[0].Name != "first" || scenarios[1].Name != "second" {
		t.Errorf("expected name order, got %s, %s", scenarios[0].Name, scenarios[1].Name)
	}
}

func TestLoadPathSingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "one.json", strings.Replace(minimalScenario, "%s", "one", 1))
	scenarios, err := LoadPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "one" {
		t.Errorf("unexpected result: %+v", scenarios)
	}
}

func TestLoadPathMissing(t *testing.T) {
	if _, err := LoadPath(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestLoadBundledScenarios(t *testing.T) {
	scenarios, err := LoadPath(filepath.Join("..", "..", "scenarios"))
	if err != nil {
		t.Fatalf("LoadPath: %v", err)
	}
	if len(scenarios) == 0 {
		t.Fatal("expected bundled scenarios")
	}
}
