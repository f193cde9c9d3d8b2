package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"report-dashboard/internal/models"
)

const utf8BOM = "\ufeff"

// ReadCSV reads a header row followed by records. Blank lines are skipped and
// ragged rows are tolerated; empty cells are treated as absent.
func ReadCSV(ctx context.Context, r io.Reader) (models.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return models.Table{}, nil
	}
	if err != nil {
		return models.Table{}, &ParseError{Format: FormatCSV, Err: err}
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	table := models.Table{Header: header}
	cells := make([]models.RawValue, 0, len(header))
	for n := 0; ; n++ {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return models.Table{}, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Table{}, &ParseError{Format: FormatCSV, Err: err}
		}

		cells = cells[:0]
		for _, field := range record {
			if field == "" {
				cells = append(cells, models.RawValue{})
				continue
			}
			cells = append(cells, models.TextCell(field))
		}
		table.Rows = append(table.Rows, rowFromCells(header, cells))
	}
	return table, nil
}
