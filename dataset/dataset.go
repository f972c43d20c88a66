// Package dataset loads and saves planning problem instances.
//
// Files are JSON (or YAML) objects keyed by example id. The field names are
// a fixed external contract shared with the plan generator and the golden
// data: constraints, dist_matrix, golden_plan, pred_5shot_pro,
// num_people/num_cities, cities, durations and the prompts.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// decodeFile reads a keyed object of examples. The format is detected by
// extension. YAML is normalised through JSON so both formats share the
// JSON field contract.
func decodeFile[T any](path string) (map[string]T, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("dataset file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".json":
	case ".yaml", ".yml":
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("failed to parse YAML dataset: %w", err)
		}
		if data, err = json.Marshal(generic); err != nil {
			return nil, fmt.Errorf("failed to normalise YAML dataset: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s (supported: .json, .yaml, .yml)", ext)
	}

	var out map[string]T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return out, nil
}

// encodeFile writes examples keyed by id, choosing the format by extension.
func encodeFile[T any](path string, examples map[string]T) error {
	data, err := json.MarshalIndent(examples, "", " ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".json":
	case ".yaml", ".yml":
		var generic map[string]any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to encode dataset: %w", err)
		}
		if data, err = yaml.Marshal(generic); err != nil {
			return fmt.Errorf("failed to encode YAML dataset: %w", err)
		}
	default:
		return fmt.Errorf("unsupported dataset format: %s (supported: .json, .yaml, .yml)", ext)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
