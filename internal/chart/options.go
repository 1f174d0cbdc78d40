package chart

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultOptions returns the uPlot options attached to every served page.
func DefaultOptions() Options {
	return Options{
		"width":  900,
		"height": 300,
		"series": []any{
			map[string]any{},
			map[string]any{
				"show":     true,
				"spanGaps": false,
				"label":    "Value1",
				"stroke":   "red",
				"width":    1,
				"fill":     "rgba(255, 0, 0, 0.3)",
				"dash":     []any{10, 5},
			},
		},
	}
}

// LoadOptionsFile reads a YAML options profile. The file holds the same tree
// as the JSON options object, e.g.
//
//	height: 400
//	series:
//	  - {}
//	  - {label: Load, stroke: "#1f77b4", width: 2}
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chart options: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("chart options: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("chart options: %s is empty", path)
	}
	if s, ok := raw["series"]; ok {
		if _, isList := s.([]any); !isList {
			return nil, fmt.Errorf("chart options: series must be a list")
		}
	}
	return Options(cloneMap(raw)), nil
}
