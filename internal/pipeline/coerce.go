package pipeline

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"report-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
)

// Coerce maps a raw row onto the schema's typed fields. It never fails:
// each field falls back to its zero-equivalent independently. Columns the
// schema does not type pass through as text.
func Coerce(schema models.Schema, row models.RawRow) models.CoercedRow {
	out := make(models.CoercedRow, len(row)+len(schema.Fields))
	for col, raw := range row {
		out[col] = CoerceValue(schema.KindOf(col), raw)
	}
	for col, kind := range schema.Fields {
		if _, ok := out[col]; !ok {
			out[col] = CoerceValue(kind, models.RawValue{})
		}
	}
	return out
}

// CoerceAll coerces rows in parallel batches, preserving file order.
func CoerceAll(ctx context.Context, schema models.Schema, rows []models.RawRow) ([]models.CoercedRow, error) {
	out := make([]models.CoercedRow, len(rows))

	var g errgroup.Group
	g.SetLimit(maxWorkers)

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%1000 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				out[i] = Coerce(schema, rows[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func CoerceValue(kind models.CoercionKind, raw models.RawValue) models.Value {
	switch kind {
	case models.KindCurrency:
		return numberValue(kind, raw, parseCurrency)
	case models.KindFloat:
		return numberValue(kind, raw, parseFloat)
	case models.KindInteger:
		v := numberValue(kind, raw, parseInteger)
		v.Num = math.Trunc(v.Num)
		return v
	case models.KindDate:
		d := Normalize(raw)
		return models.Value{Kind: kind, Date: d, Text: d.String(), Degraded: !d.Valid()}
	default:
		return models.Value{Kind: models.KindString, Text: cellText(raw), Degraded: !raw.Present}
	}
}

func numberValue(kind models.CoercionKind, raw models.RawValue, parse func(string) (float64, bool)) models.Value {
	v := models.Value{Kind: kind, Text: cellText(raw)}
	switch {
	case !raw.Present:
		v.Degraded = true
	case raw.IsNumber:
		v.Num = raw.Number
		v.Degraded = math.IsNaN(raw.Number)
		if v.Degraded {
			v.Num = 0
		}
	default:
		n, ok := parse(raw.Text)
		v.Num, v.Degraded = n, !ok
	}
	return v
}

func cellText(raw models.RawValue) string {
	if raw.IsNumber {
		return strconv.FormatFloat(raw.Number, 'f', -1, 64)
	}
	return raw.Text
}

// parseCurrency drops everything except digits, '.' and '-' before parsing,
// so "$1,234.56" reads as 1234.56.
func parseCurrency(s string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	return parseFloat(cleaned)
}

// parseFloat reads the longest numeric prefix, so "45%" is 45 and "N/A" fails.
func parseFloat(s string) (float64, bool) {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseInteger(s string) (float64, bool) {
	m := leadingInt.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(m, 64)
		if ferr != nil {
			return 0, false
		}
		return f, true
	}
	return float64(n), true
}
