package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTable reads a rule table from a YAML file:
//
//	- category: Communications
//	  keywords: [nbn, telstra, "mobile plan"]
//	- category: Utilities
//	  keywords: [electricity, water]
//
// An empty path returns the built-in default table.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return table, nil
}
