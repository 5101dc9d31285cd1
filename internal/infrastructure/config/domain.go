package config

import (
	"github.com/mes/backend/internal/domain/hierarchy"
	"github.com/mes/backend/internal/domain/partcode"
	"github.com/mes/backend/internal/domain/processgate"
)

// NewClassifier builds the part code classifier with the configured overrides.
func (c ClassifierConfig) NewClassifier() *partcode.Classifier {
	opts := []partcode.ClassifierOption{
		partcode.WithMotorPrefix(c.MotorPrefix),
		partcode.WithServoPrefix(c.ServoPrefix),
		partcode.WithRotaryServoPrefix(c.RotaryServoPrefix),
		partcode.WithPalmSKUs(c.LeftPalmSKU, c.RightPalmSKU),
	}
	if len(c.ProductLines) > 0 {
		opts = append(opts, partcode.WithProductLines(c.ProductLines...))
	}
	return partcode.NewClassifier(opts...)
}

// Schema returns the default hierarchy schema with configured table names.
func (h HierarchyConfig) Schema() hierarchy.Schema {
	return hierarchy.DefaultSchema().WithTables(h.Tables)
}

// Catalog returns the default stage catalog over schema with configured multipliers.
func (s StagesConfig) Catalog(schema hierarchy.Schema) (*processgate.Catalog, error) {
	catalog := processgate.DefaultCatalog(schema)
	if len(s.Multipliers) == 0 {
		return catalog, nil
	}
	return catalog.WithMultipliers(s.Multipliers)
}
