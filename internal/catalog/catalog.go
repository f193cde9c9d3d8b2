// Package catalog holds the static report descriptors: the required-column
// contract and per-column coercions for each supported report type.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"report-dashboard/internal/models"
)

//go:embed schemas.yaml
var schemasYAML []byte

type document struct {
	Reports []models.Schema `yaml:"reports"`
}

type Catalog struct {
	schemas map[models.ReportType]models.Schema
}

// Parse decodes a catalog document and checks that it describes every
// report type exactly once.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{schemas: make(map[models.ReportType]models.Schema, len(doc.Reports))}
	for _, s := range doc.Reports {
		if err := check(s); err != nil {
			return nil, err
		}
		if _, dup := c.schemas[s.Type]; dup {
			return nil, fmt.Errorf("report %q declared twice", s.Type)
		}
		if s.RequiredColumns == nil {
			s.RequiredColumns = []string{}
		}
		c.schemas[s.Type] = s
	}

	for _, t := range models.ReportTypes {
		if _, ok := c.schemas[t]; !ok {
			return nil, fmt.Errorf("report %q missing from catalog", t)
		}
	}
	return c, nil
}

func check(s models.Schema) error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown report type %q", s.Type)
	}
	if s.Name == "" {
		return fmt.Errorf("report %q has no name", s.Type)
	}

	seen := make(map[string]struct{}, len(s.RequiredColumns))
	for _, col := range s.RequiredColumns {
		if _, dup := seen[col]; dup {
			return fmt.Errorf("report %q: column %q required twice", s.Type, col)
		}
		seen[col] = struct{}{}
	}

	for col, kind := range s.Fields {
		switch kind {
		case models.KindFloat, models.KindInteger, models.KindCurrency, models.KindDate, models.KindString:
		default:
			return fmt.Errorf("report %q: column %q has unknown coercion %q", s.Type, col, kind)
		}
	}
	return nil
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(schemasYAML)
})

// Default returns the embedded catalog, parsed on first use.
func Default() (*Catalog, error) {
	return loadDefault()
}

func (c *Catalog) Schema(t models.ReportType) (models.Schema, bool) {
	s, ok := c.schemas[t]
	return s, ok
}

// All returns the schemas in dashboard tab order.
func (c *Catalog) All() []models.Schema {
	out := make([]models.Schema, 0, len(models.ReportTypes))
	for _, t := range models.ReportTypes {
		out = append(out, c.schemas[t])
	}
	return out
}
