package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Load parses a JSON scenario file.
func Load(path string) (*Scenario, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return nil, fmt.Errorf("scenario %s: only .json files are supported, got %q", path, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}

	if s.Setup != nil && s.Setup.StateFile != "" && !filepath.IsAbs(s.Setup.StateFile) {
		s.Setup.StateFile = filepath.Join(filepath.Dir(path), s.Setup.StateFile)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, st := range s.Steps {
		if st.Request.Method == "" || st.Request.Path == "" {
			return fmt.Errorf("step %d (%s): request method and path are required", i+1, st.Name)
		}
	}
	return nil
}

// LoadPath loads a single file, or every .json file of a directory in
// name order.
func LoadPath(path string) ([]*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scenario path %s: %w", path, err)
	}
	if !info.IsDir() {
		s, err := Load(path)
		if err != nil {
			return nil, err
		}
		return []*Scenario{s}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := Load(filepath.Join(path, name))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
