package routing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule multiplies edge priority when its condition holds
type Rule struct {
	If         string  `json:"if" yaml:"if"`
	MultiplyBy float64 `json:"multiply_by" yaml:"multiply_by"`
}

// CustomModel biases path choice. Providers that cannot express it ignore it.
type CustomModel struct {
	Priority          []Rule   `json:"priority,omitempty" yaml:"priority"`
	DistanceInfluence *float64 `json:"distance_influence,omitempty" yaml:"distance_influence"`
}

// DefaultCustomModel prefers motorways, tunnels and link roads over
// surface streets while keeping a moderate pull towards shorter paths.
func DefaultCustomModel() *CustomModel {
	influence := 100.0
	return &CustomModel{
		Priority: []Rule{
			{If: "road_class == MOTORWAY", MultiplyBy: 0.7},
			{If: "road_environment == TUNNEL", MultiplyBy: 0.5},
			{If: "road_class_link", MultiplyBy: 0.8},
		},
		DistanceInfluence: &influence,
	}
}

// Validate checks every rule has a condition and a priority factor in [0, 1]
func (m *CustomModel) Validate() error {
	if m == nil {
		return nil
	}
	for i, rule := range m.Priority {
		if rule.If == "" {
			return fmt.Errorf("priority rule %d: condition is required", i)
		}
		if rule.MultiplyBy < 0 || rule.MultiplyBy > 1 {
			return fmt.Errorf("priority rule %d: multiply_by must be within [0, 1], got %v", i, rule.MultiplyBy)
		}
	}
	if m.DistanceInfluence != nil && *m.DistanceInfluence < 0 {
		return fmt.Errorf("distance_influence must not be negative")
	}
	return nil
}

// ParseCustomModel decodes a model from YAML or JSON
func ParseCustomModel(data []byte) (*CustomModel, error) {
	var model CustomModel
	if err := yaml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("parse custom model: %w", err)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &model, nil
}

// LoadCustomModel reads a YAML or JSON model file
func LoadCustomModel(path string) (*CustomModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read custom model: %w", err)
	}
	return ParseCustomModel(data)
}
