// Package ingest turns an uploaded CSV or XLSX file into header-keyed raw rows.
package ingest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"report-dashboard/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	ErrNoFile      = errors.New("Please select a file.")
	ErrUnsupported = errors.New("Unsupported file type. Please select a CSV or XLSX file.")
)

// ParseError wraps a reader failure with the message shown to the user.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Format == FormatXLSX {
		return "Error reading XLSX file: " + e.Err.Error()
	}
	return "Error parsing CSV: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// DetectFormat picks the reader from the file extension, case-insensitively.
func DetectFormat(filename string) (Format, error) {
	if strings.TrimSpace(filename) == "" {
		return "", ErrNoFile
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", ErrUnsupported
	}
}

// Read parses r according to the extension of filename.
func Read(ctx context.Context, filename string, r io.Reader) (models.Table, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return models.Table{}, err
	}

	switch format {
	case FormatXLSX:
		return ReadXLSX(ctx, r)
	default:
		return ReadCSV(ctx, r)
	}
}

// rowFromCells keys cells by header; short rows leave trailing columns absent.
func rowFromCells(header []string, cells []models.RawValue) models.RawRow {
	row := make(models.RawRow, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if i < len(cells) {
			row[h] = cells[i]
		} else {
			row[h] = models.RawValue{}
		}
	}
	return row
}
