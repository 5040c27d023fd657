package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overridesFile is the on-disk shape accepted by LoadOverrides: a flat list
// of mappings using the same field names as Mapping, lowerCamel in YAML.
type overridesFile struct {
	Mappings []struct {
		Category     string `yaml:"category"`
		Operation    string `yaml:"operation"`
		UpstreamName string `yaml:"upstreamName"`
		UpstreamTool string `yaml:"upstreamTool"`
		Cacheable    bool   `yaml:"cacheable"`
		Description  string `yaml:"description"`
	} `yaml:"mappings"`
}

// LoadOverrides reads a YAML file of additional or replacing mappings and
// layers them on top of base. An override sharing a (category, operation)
// key with a base entry replaces it entirely; all other base entries are
// kept as-is. The registry remains immutable once New is called on the
// result; LoadOverrides only affects how the table is assembled at startup.
func LoadOverrides(path string, base []Mapping) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry overrides: %w", err)
	}

	var parsed overridesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("registry overrides: parse %s: %w", path, err)
	}

	merged := append([]Mapping(nil), base...)
	index := make(map[string]int, len(merged))
	for i, m := range merged {
		index[key(m.Category, m.Operation)] = i
	}
	for _, m := range parsed.Mappings {
		mapping := Mapping{
			Category:     m.Category,
			Operation:    m.Operation,
			UpstreamName: m.UpstreamName,
			UpstreamTool: m.UpstreamTool,
			Cacheable:    m.Cacheable,
			Description:  m.Description,
		}
		k := key(mapping.Category, mapping.Operation)
		if i, ok := index[k]; ok {
			merged[i] = mapping
			continue
		}
		index[k] = len(merged)
		merged = append(merged, mapping)
	}

	if err := Validate(merged); err != nil {
		return nil, fmt.Errorf("registry overrides: %w", err)
	}
	return merged, nil
}
