package batch

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SchemaField names one field the extractor is asked to populate. List fields
// come back as string arrays (features, offers); everything else is a scalar.
type SchemaField struct {
	Name        string `yaml:"name" json:"name" validate:"required"`
	Description string `yaml:"description" json:"description,omitempty"`
	List        bool   `yaml:"list" json:"list,omitempty"`
}

// ExtractionSchema is the fixed field set for one batch run, shared read-only
// across all items.
type ExtractionSchema struct {
	Name   string        `yaml:"name" json:"name,omitempty"`
	Fields []SchemaField `yaml:"fields" json:"fields" validate:"required,min=1,dive"`
}

var validate = validator.New()

// Validate rejects schemas the extractor cannot work with: no fields, unnamed
// fields, duplicate names.
func (s ExtractionSchema) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		name := strings.TrimSpace(strings.ToLower(f.Name))
		if name == "" {
			return fmt.Errorf("schema: field with empty name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// FieldNames returns the declared field names in order.
func (s ExtractionSchema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Field looks up a declared field by name, case-insensitively.
func (s ExtractionSchema) Field(name string) (SchemaField, bool) {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return SchemaField{}, false
}

// DefaultSchema is the built-in competitor product field set used when no
// schema document is supplied.
func DefaultSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "competitor_products",
		Fields: []SchemaField{
			{Name: "product_name", Description: "the product or plan name exactly as shown on the page"},
			{Name: "category", Description: "product category such as boiler cover, heating care or home emergency"},
			{Name: "price_monthly", Description: "monthly price as displayed, keeping the currency symbol"},
			{Name: "price_annual", Description: "annual price as displayed, keeping the currency symbol"},
			{Name: "excess", Description: "excess or deductible amount per claim or callout, if any"},
			{Name: "features", Description: "what the plan includes or covers", List: true},
			{Name: "special_offers", Description: "current discounts or promotional offers", List: true},
			{Name: "terms_conditions", Description: "notable terms, exclusions or contract conditions"},
		},
	}
}

// LoadSchemaFile reads an ExtractionSchema from a YAML document.
func LoadSchemaFile(path string) (ExtractionSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExtractionSchema{}, fmt.Errorf("read schema file: %w", err)
	}
	var s ExtractionSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return ExtractionSchema{}, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return ExtractionSchema{}, err
	}
	return s, nil
}
