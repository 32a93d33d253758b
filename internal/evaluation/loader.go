package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadGoldenCases reads and parses a golden set from a JSON file.
func LoadGoldenCases(path string) ([]GoldenCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden set: %w", err)
	}

	var cases []GoldenCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("failed to parse golden set: %w", err)
	}

	return cases, nil
}

// ValidateGoldenCases checks that all golden cases have required fields and valid values.
func ValidateGoldenCases(cases []GoldenCase) error {
	seen := make(map[string]struct{}, len(cases))

	for i, c := range cases {
		if c.ID == "" {
			return fmt.Errorf("case at index %d: missing id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("case at index %d: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = struct{}{}

		if c.Insurer == "" {
			return fmt.Errorf("case %q: missing insurer", c.ID)
		}
		if c.CoverageName == "" {
			return fmt.Errorf("case %q: missing coverage name", c.ID)
		}
		if !c.Difficulty.IsValid() {
			return fmt.Errorf("case %q: invalid difficulty %q (must be easy/medium/hard)", c.ID, c.Difficulty)
		}
	}

	return nil
}
