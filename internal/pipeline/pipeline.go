// Package pipeline turns parsed spreadsheet rows into typed rows: it checks
// the report's column contract, then coerces every cell to its declared kind.
package pipeline

import (
	"context"
	"fmt"

	"report-dashboard/internal/models"
)

// Process validates rows against schema and coerces them. A *SchemaError is
// returned when the contract is not met.
func Process(ctx context.Context, schema models.Schema, rows []models.RawRow) ([]models.CoercedRow, error) {
	v := Validate(schema, rows)
	if err := v.Err(schema.Type); err != nil {
		return nil, err
	}

	coerced, err := CoerceAll(ctx, schema, v.Rows)
	if err != nil {
		return nil, fmt.Errorf("coerce %s rows: %w", schema.Type, err)
	}
	return coerced, nil
}
