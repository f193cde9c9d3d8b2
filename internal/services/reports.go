package services

import (
	"time"

	"report-dashboard/internal/aggregate"
	"report-dashboard/internal/models"
)

// EmptyKey labels the group of rows whose key column is blank.
const EmptyKey = "(empty)"

type rowSet = []models.CoercedRow

// view computes the KPIs and charts of one report type.
type view func(rowSet) ([]models.KPI, []models.Chart)

var views = map[models.ReportType]view{
	models.ReportSales:            salesView,
	models.ReportOrders:           ordersView(hyphenOrderColumns),
	models.ReportBrandPerformance: brandView,
	models.ReportReturns:          returnsView,
	models.ReportOrderReport:      ordersView(underscoreOrderColumns),
	models.ReportSalesAndTraffic:  salesAndTrafficView,
}

func num(column string) func(models.CoercedRow) float64 {
	return func(r models.CoercedRow) float64 { return r.Float(column) }
}

func text(column string) func(models.CoercedRow) string {
	return func(r models.CoercedRow) string { return r.Text(column) }
}

func total(rs rowSet, column string) float64 {
	return aggregate.ReduceScalar(rs, num(column), aggregate.Sum)
}

func mean(rs rowSet, column string) float64 {
	return aggregate.ReduceScalar(rs, num(column), aggregate.Mean)
}

func nonEmpty(rs rowSet, column string) rowSet {
	out := make(rowSet, 0, len(rs))
	for _, r := range rs {
		if r.Text(column) != "" {
			out = append(out, r)
		}
	}
	return out
}

func kpi(name, label string, value float64, unit string, decimals int) models.KPI {
	if unit != "" {
		value = aggregate.Round2(value)
	}
	return models.KPI{Name: name, Label: label, Value: models.Number(value), Unit: unit, Decimals: decimals}
}

func numbers(values []float64) []models.Number {
	out := make([]models.Number, len(values))
	for i, v := range values {
		out[i] = models.Number(v)
	}
	return out
}

func fixedChart(id, title string, typ models.ChartType, labels []string, values []float64) models.Chart {
	return models.Chart{
		ID:     id,
		Title:  title,
		Type:   typ,
		Labels: labels,
		Series: []models.Series{{Name: title, Values: numbers(values)}},
	}
}

func entryChart(id, title string, typ models.ChartType, entries []aggregate.Entry) models.Chart {
	labels := make([]string, len(entries))
	values := make([]float64, len(entries))
	for i, e := range entries {
		labels[i] = e.Key
		if labels[i] == "" {
			labels[i] = EmptyKey
		}
		values[i] = e.Value
	}
	return fixedChart(id, title, typ, labels, values)
}

func binChart(id, title string, bins []aggregate.Bin) models.Chart {
	labels := make([]string, len(bins))
	values := make([]float64, len(bins))
	for i, b := range bins {
		labels[i] = b.Label
		values[i] = float64(b.Count)
	}
	return fixedChart(id, title, models.ChartBar, labels, values)
}

func horizontal(c models.Chart) models.Chart {
	c.Horizontal = true
	return c
}

func measures(rs rowSet, column string) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Measure(column)
	}
	return out
}

func monthKey(d models.Date) string {
	if !d.Valid() {
		return models.InvalidDate
	}
	return d.Time().Format("2006-01")
}

func monthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}

func salesView(rs rowSet) ([]models.KPI, []models.Chart) {
	kpis := []models.KPI{
		kpi("total_sales", "Total Sales", total(rs, "Ordered Product Sales"), "$", 2),
		kpi("total_sales_b2b", "Total Sales (B2B)", total(rs, "Ordered Product Sales - B2B"), "$", 2),
		kpi("total_units", "Total Units Ordered", total(rs, "Units Ordered"), "", 0),
		kpi("total_units_b2b", "Total Units Ordered (B2B)", total(rs, "Units Ordered - B2B"), "", 0),
		kpi("total_sessions", "Total Sessions", total(rs, "Sessions - Total"), "", 0),
		kpi("total_sessions_b2b", "Total Sessions (B2B)", total(rs, "Sessions - Total - B2B"), "", 0),
		kpi("avg_buy_box", "Avg. Buy Box %", mean(rs, "Featured Offer (Buy Box) Percentage"), "%", 2),
		kpi("parent_asins", "Parent ASINs", float64(aggregate.DistinctCount(rs, text("(Parent) ASIN"))), "", 0),
	}

	byMonth := aggregate.ByKey(aggregate.GroupFold(rs,
		func(r models.CoercedRow) string { return monthKey(r.Date("Date")) },
		num("Ordered Product Sales"), aggregate.Sum))
	for i := range byMonth {
		byMonth[i].Key = monthLabel(byMonth[i].Key)
	}

	deviceLabels := []string{"Mobile App", "Browser", "Mobile App - B2B", "Browser - B2B"}
	units := total(rs, "Units Ordered")

	charts := []models.Chart{
		entryChart("sales_over_time", "Sales Over Time", models.ChartLine, byMonth),
		fixedChart("sessions_by_type", "Sessions by Type", models.ChartDoughnut, deviceLabels, []float64{
			total(rs, "Sessions - Mobile App"),
			total(rs, "Sessions - Browser"),
			total(rs, "Sessions - Mobile APP - B2B"),
			total(rs, "Sessions - Browser - B2B"),
		}),
		horizontal(entryChart("top_products_by_units", "Top Performing Products (Units Ordered)", models.ChartBar,
			aggregate.TopK(aggregate.GroupFold(rs, text("Title"), num("Units Ordered"), aggregate.Sum), aggregate.DefaultK, aggregate.Descending))),
		fixedChart("page_views_by_type", "Page Views by Type", models.ChartDoughnut, deviceLabels, []float64{
			total(rs, "Page Views - Mobile App"),
			total(rs, "Page Views - Browser"),
			total(rs, "Page Views - Mobile APP - B2B"),
			total(rs, "Page Views - Browser - B2B"),
		}),
		fixedChart("conversion_by_session_type", "Conversion Rate by Session Type", models.ChartBar,
			[]string{"Mobile App", "Browser", "Total"}, []float64{
				aggregate.Ratio(units, total(rs, "Sessions - Mobile App")),
				aggregate.Ratio(units, total(rs, "Sessions - Browser")),
				aggregate.Ratio(units, total(rs, "Sessions - Total")),
			}),
	}
	return kpis, charts
}

type orderColumns struct {
	status, items, price, product, quantity, fulfillment, salesChannel string
}

var (
	hyphenOrderColumns = orderColumns{
		status:       "order-status",
		items:        "number-of-items",
		price:        "item-price",
		product:      "product-name",
		quantity:     "quantity",
		fulfillment:  "fulfillment-channel",
		salesChannel: "sales-channel",
	}
	underscoreOrderColumns = orderColumns{
		status:       "order_status",
		items:        "number_of_items",
		price:        "item_price",
		product:      "product_name",
		quantity:     "quantity",
		fulfillment:  "fulfillment_channel",
		salesChannel: "sales_channel",
	}
)

const (
	statusShipped  = "Shipped"
	statusCanceled = "Canceled"
)

func ordersView(c orderColumns) view {
	return func(rs rowSet) ([]models.KPI, []models.Chart) {
		shipped := aggregate.CountWhere(rs, func(r models.CoercedRow) bool { return r.Text(c.status) == statusShipped })
		canceled := aggregate.CountWhere(rs, func(r models.CoercedRow) bool { return r.Text(c.status) == statusCanceled })
		pending := len(rs) - shipped - canceled

		kpis := []models.KPI{
			kpi("total_orders", "Total Orders", float64(len(rs)), "", 0),
			kpi("total_items", "Total Items", total(rs, c.items), "", 0),
			kpi("total_revenue", "Total Revenue", total(rs, c.price), "$", 2),
			kpi("shipped_orders", "Shipped Orders", float64(shipped), "", 0),
			kpi("pending_orders", "Pending Orders", float64(pending), "", 0),
			kpi("canceled_orders", "Canceled Orders", float64(canceled), "", 0),
		}

		byProduct := func(value string) []aggregate.Entry {
			return aggregate.TopK(aggregate.GroupFold(rs, text(c.product), num(value), aggregate.Sum), aggregate.DefaultK, aggregate.Descending)
		}
		countBy := func(column string) []aggregate.Entry {
			return aggregate.TopK(aggregate.GroupFold(nonEmpty(rs, column), text(column), nil, aggregate.Count), 0, aggregate.Descending)
		}

		charts := []models.Chart{
			fixedChart("orders_by_status", "Orders by Status", models.ChartPie,
				[]string{statusShipped, "Pending", statusCanceled},
				[]float64{float64(shipped), float64(pending), float64(canceled)}),
			horizontal(entryChart("top_products_by_quantity", "Top Products by Quantity", models.ChartBar, byProduct(c.quantity))),
			entryChart("revenue_by_product", "Total Revenue by Product", models.ChartBar, byProduct(c.price)),
			entryChart("orders_by_fulfillment", "Orders by Fulfillment Channel", models.ChartPie, countBy(c.fulfillment)),
			entryChart("orders_by_sales_channel", "Orders by Sales Channel", models.ChartPie, countBy(c.salesChannel)),
		}
		return kpis, charts
	}
}

const (
	brandASIN        = "ASIN"
	brandRank        = "Sales Rank"
	brandBuyBox      = "Featured Offer (Buy Box) Percentage"
	brandBuyBoxB2B   = "Featured Offer (Buy Box) Percentage - B2B"
	brandAvgReview   = "Average Customer Review"
	brandReviewCount = "Number of Customer Reviews"
)

// BrandRankings returns the ten ASINs with the best (lowest) average sales
// rank and the ten with the highest average buy box percentage. Rows without
// an ASIN are ignored; unparseable metrics count as zero.
func BrandRankings(rs rowSet) (byRank, byBuyBox []aggregate.Entry) {
	withASIN := nonEmpty(rs, brandASIN)
	rank := aggregate.GroupFold(withASIN, text(brandASIN), num(brandRank), aggregate.Average)
	buyBox := aggregate.GroupFold(withASIN, text(brandASIN), num(brandBuyBox), aggregate.Average)
	return aggregate.TopK(rank, aggregate.DefaultK, aggregate.Ascending),
		aggregate.TopK(buyBox, aggregate.DefaultK, aggregate.Descending)
}

func brandView(rs rowSet) ([]models.KPI, []models.Chart) {
	kpis := []models.KPI{
		kpi("asins", "ASINs", float64(aggregate.DistinctCount(nonEmpty(rs, brandASIN), text(brandASIN))), "", 0),
		kpi("avg_sales_rank", "Avg. Sales Rank", aggregate.Round2(mean(rs, brandRank)), "", 2),
		kpi("avg_buy_box", "Avg. Buy Box %", mean(rs, brandBuyBox), "%", 2),
		kpi("avg_review", "Avg. Customer Review", aggregate.Round2(mean(rs, brandAvgReview)), "", 2),
	}

	dates := make([]string, len(rs))
	for i, r := range rs {
		dates[i] = r.Date("Date").String()
	}
	metrics := []string{brandRank, brandBuyBox, brandBuyBoxB2B, brandAvgReview, brandReviewCount}
	series := make([]models.Series, len(metrics))
	for i, m := range metrics {
		series[i] = models.Series{Name: m, Values: numbers(measures(rs, m))}
	}

	byRank, byBuyBox := BrandRankings(rs)
	charts := []models.Chart{
		{ID: "metrics_over_time", Title: "Brand Performance", Type: models.ChartLine, Labels: dates, Series: series},
		entryChart("top_sales_rank", "Top 10 ASINs by Average Sales Rank", models.ChartBar, byRank),
		entryChart("top_buy_box", "Top 10 ASINs by Average Featured Offer (Buy Box) Percentage", models.ChartBar, byBuyBox),
		binChart("review_distribution", "Distribution of Average Customer Review",
			aggregate.BinFixedWidth(measures(rs, brandAvgReview), 0.5)),
		binChart("review_count_distribution", "Distribution of Number of Customer Reviews",
			aggregate.BinRanges(measures(rs, brandReviewCount), aggregate.ReviewCountRanges)),
	}
	return kpis, charts
}

func returnsView(rs rowSet) ([]models.KPI, []models.Chart) {
	kpis := []models.KPI{
		kpi("total_returns", "Total Returns", float64(len(rs)), "", 0),
		kpi("total_returned_items", "Total Returned Items", total(rs, "quantity"), "", 0),
	}

	countBy := func(column string) aggregate.Grouped {
		return aggregate.GroupFold(nonEmpty(rs, column), text(column), nil, aggregate.Count)
	}

	dated := make(rowSet, 0, len(rs))
	for _, r := range rs {
		if r.Date("return-date").Valid() {
			dated = append(dated, r)
		}
	}
	overTime := aggregate.GroupFold(dated,
		func(r models.CoercedRow) string { return r.Date("return-date").String() }, nil, aggregate.Count)

	charts := []models.Chart{
		entryChart("returns_by_status", "Returns by Status", models.ChartPie, aggregate.ByKey(countBy("status"))),
		horizontal(entryChart("returns_by_reason", "Returns by Reason", models.ChartBar,
			aggregate.TopK(countBy("reason"), 0, aggregate.Descending))),
		entryChart("top_returned_products", "Top Returned Products by Quantity", models.ChartBar,
			aggregate.TopK(aggregate.GroupFold(rs, text("product-name"), num("quantity"), aggregate.Sum), aggregate.DefaultK, aggregate.Descending)),
		entryChart("returns_over_time", "Returns Over Time", models.ChartLine, aggregate.ByKey(overTime)),
	}
	return kpis, charts
}

func salesAndTrafficView(rs rowSet) ([]models.KPI, []models.Chart) {
	kpis := []models.KPI{
		kpi("total_sessions", "Total Sessions", total(rs, "sessions_total"), "", 0),
		kpi("total_sales", "Total Sales", total(rs, "ordered_product_sales"), "$", 2),
		kpi("total_order_items", "Total Order Items", total(rs, "total_order_items"), "", 0),
		kpi("conversion_rate", "Conversion Rate", mean(rs, "unit_session_pct"), "%", 2),
		kpi("avg_session_pct", "Avg. Session %", mean(rs, "session_pct_total"), "%", 2),
		kpi("avg_page_views_pct", "Avg. Page Views %", mean(rs, "page_views_pct_total"), "%", 2),
		kpi("total_units_b2b", "Total B2B Units Ordered", total(rs, "units_ordered_b2b"), "", 0),
	}

	deviceLabels := []string{"Mobile App", "Browser", "Mobile App B2B", "Browser B2B"}
	sessionsByDay := aggregate.GroupFold(rs,
		func(r models.CoercedRow) string { return r.Date("date").String() }, num("sessions_total"), aggregate.Sum)

	charts := []models.Chart{
		horizontal(entryChart("sales_by_asin", "Sales by ASIN", models.ChartBar,
			aggregate.TopK(aggregate.GroupFold(rs, text("child_asin"), num("ordered_product_sales"), aggregate.Sum), aggregate.DefaultK, aggregate.Descending))),
		entryChart("sessions_over_time", "Sessions Over Time", models.ChartLine, aggregate.ByKey(sessionsByDay)),
		fixedChart("sessions_by_type", "Sessions by Type", models.ChartPie, deviceLabels, []float64{
			total(rs, "sessions_mobile_app"),
			total(rs, "sessions_browser"),
			total(rs, "sessions_mobile_app_b2b"),
			total(rs, "sessions_browser_b2b"),
		}),
		fixedChart("page_views_by_type", "Page Views by Type", models.ChartPie, deviceLabels, []float64{
			total(rs, "page_views_mobile_app"),
			total(rs, "page_views_browser"),
			total(rs, "page_views_mobile_app_b2b"),
			total(rs, "page_views_browser_b2b"),
		}),
		fixedChart("units_by_type", "Units Ordered by Type", models.ChartPie, []string{"B2C", "B2B"}, []float64{
			total(rs, "units_ordered"),
			total(rs, "units_ordered_b2b"),
		}),
		fixedChart("sales_by_type", "Sales by Type", models.ChartPie, []string{"B2C", "B2B"}, []float64{
			aggregate.Round2(total(rs, "ordered_product_sales")),
			aggregate.Round2(total(rs, "ordered_product_sales_b2b")),
		}),
	}
	return kpis, charts
}
