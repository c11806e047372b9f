package keyword

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_keywords.yaml
var defaultTable []byte

// Category is one weighted keyword family.
type Category struct {
	Name     string   `yaml:"name"`
	Label    string   `yaml:"label"`
	Weight   float64  `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

// Table is the ordered set of categories the scanner evaluates.
type Table struct {
	Categories []Category `yaml:"categories"`
}

// DefaultTable returns the table compiled into the binary.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultTable)
}

// LoadTable reads a table from a YAML file; an empty path returns the default table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword table %s: %w", path, err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML keyword table.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse keyword table: %w", err)
	}
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("keyword table has no categories")
	}

	seen := make(map[string]bool)
	for i, c := range t.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("keyword category %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate keyword category %q", name)
		}
		seen[name] = true
		if c.Weight < 0 {
			return nil, fmt.Errorf("keyword category %q has negative weight", name)
		}
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("keyword category %q has no keywords", name)
		}
		t.Categories[i].Name = name
		if t.Categories[i].Label == "" {
			t.Categories[i].Label = name
		}
	}
	return &t, nil
}
