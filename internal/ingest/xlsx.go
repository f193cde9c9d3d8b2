package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"report-dashboard/internal/models"
)

// ReadXLSX reads the first worksheet, taking its first row as the header.
// Cells are read unformatted so date cells keep their serial number; numeric
// cells become number values and text cells stay text, even when the text
// looks numeric. Blank rows are skipped.
func ReadXLSX(ctx context.Context, r io.Reader) (models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.Table{}, &ParseError{Format: FormatXLSX, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.Table{}, nil
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return models.Table{}, &ParseError{Format: FormatXLSX, Err: err}
	}
	defer rows.Close()

	var table models.Table
	rowNum := 0
	for rows.Next() {
		rowNum++
		if rowNum%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return models.Table{}, err
			}
		}

		values, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return models.Table{}, &ParseError{Format: FormatXLSX, Err: err}
		}

		if table.Header == nil {
			table.Header = append([]string{}, values...)
			continue
		}
		if blank(values) {
			continue
		}

		cells := make([]models.RawValue, len(values))
		for i, v := range values {
			cell, err := readCell(f, sheet, i+1, rowNum, v)
			if err != nil {
				return models.Table{}, &ParseError{Format: FormatXLSX, Err: err}
			}
			cells[i] = cell
		}
		table.Rows = append(table.Rows, rowFromCells(table.Header, cells))
	}
	if err := rows.Error(); err != nil {
		return models.Table{}, &ParseError{Format: FormatXLSX, Err: err}
	}
	return table, nil
}

func readCell(f *excelize.File, sheet string, col, row int, value string) (models.RawValue, error) {
	if value == "" {
		return models.RawValue{}, nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return models.TextCell(value), nil
	}

	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return models.RawValue{}, fmt.Errorf("cell name: %w", err)
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return models.RawValue{}, fmt.Errorf("cell %s type: %w", name, err)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return models.TextCell(value), nil
	default:
		return models.NumberCell(n), nil
	}
}

func blank(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}
