package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Number is a float64 whose JSON form keeps NaN and infinities visible as
// strings instead of failing to encode.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "NaN":
			*n = Number(math.NaN())
		case "Infinity":
			*n = Number(math.Inf(1))
		case "-Infinity":
			*n = Number(math.Inf(-1))
		default:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			*n = Number(f)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Display renders n the way KPI cards show it.
func (n Number) Display(decimals int) string {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

type ChartType string

const (
	ChartLine     ChartType = "line"
	ChartBar      ChartType = "bar"
	ChartPie      ChartType = "pie"
	ChartDoughnut ChartType = "doughnut"
)

type KPI struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Value    Number `json:"value"`
	Unit     string `json:"unit,omitempty"`
	Decimals int    `json:"decimals"`
}

type Series struct {
	Name   string   `json:"name"`
	Values []Number `json:"values"`
}

type Chart struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Type       ChartType `json:"type"`
	Labels     []string  `json:"labels"`
	Series     []Series  `json:"series"`
	Horizontal bool      `json:"horizontal,omitempty"`
}

// Bundle is everything the presentation layer needs for one report slot.
type Bundle struct {
	Report   ReportType   `json:"report"`
	Name     string       `json:"name"`
	FileName string       `json:"file_name,omitempty"`
	LoadedAt time.Time    `json:"loaded_at,omitzero"`
	RowCount int          `json:"row_count"`
	Error    string       `json:"error,omitempty"`
	KPIs     []KPI        `json:"kpis"`
	Charts   []Chart      `json:"charts"`
	Columns  []string     `json:"columns"`
	Rows     []CoercedRow `json:"rows"`
}

// KPIValue looks up a KPI by name.
func (b Bundle) KPIValue(name string) (Number, bool) {
	for _, k := range b.KPIs {
		if k.Name == name {
			return k.Value, true
		}
	}
	return 0, false
}

// Chart looks up a chart by id.
func (b Bundle) Chart(id string) (Chart, bool) {
	for _, c := range b.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return Chart{}, false
}
