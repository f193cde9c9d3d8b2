package pipeline

import (
	"strings"

	"report-dashboard/internal/models"
)

const (
	MsgNoData         = "No data found in the file."
	msgMissingColumns = "The following columns are missing: "
)

// SchemaError reports an upload that does not satisfy its report contract.
type SchemaError struct {
	Report  models.ReportType
	Missing []string
	NoData  bool
}

func (e *SchemaError) Error() string {
	if e.NoData {
		return MsgNoData
	}
	return msgMissingColumns + strings.Join(e.Missing, ", ")
}

// Validation is the outcome of checking a row set against a schema. When
// Valid, Rows is the input unchanged; otherwise Missing lists the absent
// required columns in schema order.
type Validation struct {
	Valid   bool
	Rows    []models.RawRow
	Missing []string
	NoData  bool
}

func (v Validation) Err(report models.ReportType) error {
	if v.Valid {
		return nil
	}
	return &SchemaError{Report: report, Missing: v.Missing, NoData: v.NoData}
}

// Validate checks required columns against the first row only; exports are
// assumed to be homogeneous. Matching is exact and case-sensitive.
func Validate(schema models.Schema, rows []models.RawRow) Validation {
	if len(rows) == 0 {
		missing := make([]string, len(schema.RequiredColumns))
		copy(missing, schema.RequiredColumns)
		return Validation{Missing: missing, NoData: true}
	}

	first := rows[0]
	var missing []string
	for _, col := range schema.RequiredColumns {
		if _, ok := first[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Validation{Missing: missing}
	}
	return Validation{Valid: true, Rows: rows}
}
