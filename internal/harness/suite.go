package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FindScenarios returns the .yaml and .yml files under dir, in walk
// order. A non-empty filter is a glob matched against the file name
// without its extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns the golden file for a scenario file: a "golden"
// directory next to it, named after the scenario file.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// CompareGolden reports whether the trace matches the golden file at
// path. A missing golden file returns os.ErrNotExist.
func CompareGolden(path string, scenario *Scenario, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	got, err := MarshalTrace(scenario, result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal trace: %w", err)
	}
	return bytes.Equal(want, got), nil
}

// UpdateGolden writes the trace to the golden file at path.
func UpdateGolden(path string, scenario *Scenario, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	data, err := MarshalTrace(scenario, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
