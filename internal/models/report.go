package models

import "slices"

type ReportType string

const (
	ReportSales            ReportType = "sales"
	ReportOrders           ReportType = "orders"
	ReportBrandPerformance ReportType = "brand_performance"
	ReportReturns          ReportType = "returns"
	ReportOrderReport      ReportType = "order_report"
	ReportSalesAndTraffic  ReportType = "sales_and_traffic"
)

// ReportTypes lists every report slot in dashboard tab order.
var ReportTypes = []ReportType{
	ReportSales,
	ReportOrders,
	ReportBrandPerformance,
	ReportReturns,
	ReportOrderReport,
	ReportSalesAndTraffic,
}

func (t ReportType) Valid() bool {
	return slices.Contains(ReportTypes, t)
}

type CoercionKind string

const (
	KindFloat    CoercionKind = "float"
	KindInteger  CoercionKind = "integer"
	KindCurrency CoercionKind = "currency"
	KindDate     CoercionKind = "date"
	KindString   CoercionKind = "string"
)

func (k CoercionKind) Numeric() bool {
	return k == KindFloat || k == KindInteger || k == KindCurrency
}

// Schema describes one report type: the columns an upload must carry and how
// each typed column is coerced. Schemas are loaded once and never mutated.
type Schema struct {
	Type            ReportType              `json:"type" yaml:"type"`
	Name            string                  `json:"name" yaml:"name"`
	RequiredColumns []string                `json:"required_columns" yaml:"required_columns"`
	Fields          map[string]CoercionKind `json:"fields" yaml:"fields"`
}

// KindOf returns the declared coercion for column, defaulting to string.
func (s Schema) KindOf(column string) CoercionKind {
	if k, ok := s.Fields[column]; ok {
		return k
	}
	return KindString
}
