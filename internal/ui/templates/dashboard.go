// Package templates renders the dashboard page and the fragments patched
// into it over server-sent events.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"report-dashboard/internal/models"
)

// MaxTableRows caps the raw data table; the JSON bundle carries every row.
const MaxTableRows = 100

// ID helpers keep element ids in one place for the page and the SSE patches.
func KPIsID(r models.ReportType) string   { return "kpis-" + string(r) }
func StatusID(r models.ReportType) string { return "status-" + string(r) }
func TableID(r models.ReportType) string  { return "table-" + string(r) }

type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) rawf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

// Dashboard renders the full page: one tab per report with its upload form,
// status line, KPI cards, chart canvases and raw data table.
func Dashboard(schemas []models.Schema, bundles []models.Bundle) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>Marketplace Report Dashboard</title>`)
		h.raw(`<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"></script>`)
		h.raw(`<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>`)
		h.raw(`<style>` + pageCSS + `</style></head>`)
		h.raw(`<body data-signals="{tab: 'sales', charts: {}}" data-init="@get('/sse/refresh-all')">`)
		h.raw(`<header><h1>Marketplace Report Dashboard</h1></header><nav class="tabs">`)
		for _, s := range schemas {
			h.rawf(`<button data-class:active="$tab == '%s'" data-on:click="$tab = '%s'">`, s.Type, s.Type)
			h.text(s.Name)
			h.raw(`</button>`)
		}
		h.raw(`</nav><main>`)

		byType := make(map[models.ReportType]models.Bundle, len(bundles))
		for _, b := range bundles {
			byType[b.Report] = b
		}
		for _, s := range schemas {
			if h.err != nil {
				break
			}
			b, ok := byType[s.Type]
			if !ok {
				b = models.Bundle{Report: s.Type, Name: s.Name}
			}
			h.err = panel(s, b).Render(ctx, w)
		}

		h.raw(`</main><script>` + chartJS + `</script></body></html>`)
		return h.err
	})
}

func panel(s models.Schema, b models.Bundle) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf(`<section class="panel" data-show="$tab == '%s'">`, s.Type)
		h.raw(`<h2>`)
		h.text(s.Name)
		h.raw(`</h2>`)

		h.rawf(`<form class="upload" enctype="multipart/form-data" data-on:submit__prevent="@post('/sse/reports/%s/upload', {contentType: 'form'})">`, s.Type)
		h.raw(`<input type="file" name="file" accept=".csv,.xlsx">`)
		h.raw(`<button type="submit">Upload</button>`)
		h.rawf(`<button type="button" data-on:click="@delete('/sse/reports/%s')">Clear</button>`, s.Type)
		h.raw(`</form>`)

		for _, c := range []templ.Component{Status(b), KPICards(b)} {
			if h.err == nil {
				h.err = c.Render(ctx, w)
			}
		}

		h.rawf(`<div class="charts" data-effect="renderCharts('%s', $charts.%s)">`, s.Type, s.Type)
		h.rawf(`<div id="charts-%s"></div></div>`, s.Type)

		if h.err == nil {
			h.err = RawTable(b).Render(ctx, w)
		}
		h.raw(`</section>`)
		return h.err
	})
}

// Status shows the loaded file or the slot's last error.
func Status(b models.Bundle) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf(`<div id="%s" class="status">`, StatusID(b.Report))
		switch {
		case b.Error != "":
			h.raw(`<div class="alert error">`)
			h.text(b.Error)
			h.raw(`</div>`)
		case b.RowCount > 0:
			h.raw(`<div class="alert ok">`)
			h.text(b.FileName)
			h.rawf(` &middot; %d rows`, b.RowCount)
			if !b.LoadedAt.IsZero() {
				h.raw(` &middot; loaded `)
				h.text(b.LoadedAt.Format("2006-01-02 15:04:05"))
			}
			h.raw(`</div>`)
		default:
			h.raw(`<div class="alert info">Upload a `)
			h.text(b.Name)
			h.raw(` file to see the dashboard.</div>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// KPICards renders one card per KPI.
func KPICards(b models.Bundle) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf(`<div id="%s" class="kpis">`, KPIsID(b.Report))
		for _, k := range b.KPIs {
			h.raw(`<div class="card"><div class="card-header">`)
			h.text(k.Label)
			h.raw(`</div><div class="card-body">`)
			h.text(FormatKPI(k))
			h.raw(`</div></div>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// FormatKPI renders a KPI value with its unit, "$" before and "%" after.
func FormatKPI(k models.KPI) string {
	v := k.Value.Display(k.Decimals)
	switch k.Unit {
	case "$":
		return "$" + v
	case "":
		return v
	default:
		return v + k.Unit
	}
}

// RawTable renders up to MaxTableRows coerced rows in column order.
func RawTable(b models.Bundle) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.rawf(`<div id="%s" class="raw">`, TableID(b.Report))
		if len(b.Rows) == 0 {
			h.raw(`</div>`)
			return h.err
		}

		h.raw(`<h3>Raw Data</h3>`)
		if len(b.Rows) > MaxTableRows {
			h.rawf(`<p class="muted">Showing %d of %d rows.</p>`, MaxTableRows, len(b.Rows))
		}
		h.raw(`<div class="table-responsive"><table><thead><tr>`)
		for _, c := range b.Columns {
			h.raw(`<th>`)
			h.text(c)
			h.raw(`</th>`)
		}
		h.raw(`</tr></thead><tbody>`)
		for i, row := range b.Rows {
			if i == MaxTableRows {
				break
			}
			h.raw(`<tr>`)
			for _, c := range b.Columns {
				h.raw(`<td>`)
				h.text(CellText(row[c]))
				h.raw(`</td>`)
			}
			h.raw(`</tr>`)
		}
		h.raw(`</tbody></table></div></div>`)
		return h.err
	})
}

// CellText renders a coerced value for the table.
func CellText(v models.Value) string {
	switch {
	case v.Kind.Numeric():
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case v.Kind == models.KindDate:
		return v.Date.String()
	default:
		return v.Text
	}
}

const pageCSS = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f6f8;color:#222}
header{background:#232f3e;color:#fff;padding:12px 24px}
.tabs{display:flex;gap:4px;padding:8px 24px;background:#fff;border-bottom:1px solid #ddd}
.tabs button{border:0;background:none;padding:8px 12px;cursor:pointer}
.tabs button.active{border-bottom:3px solid #ff9900;font-weight:600}
main{padding:16px 24px}
.upload{display:flex;gap:8px;margin-bottom:12px}
.alert{padding:8px 12px;border-radius:4px;margin-bottom:12px}
.alert.error{background:#fde2e1;color:#8a1f11}
.alert.ok{background:#e3f6e8}
.alert.info{background:#e6f0fb}
.kpis{display:grid;grid-template-columns:repeat(auto-fill,minmax(180px,1fr));gap:12px}
.card{background:#fff;border-radius:6px;box-shadow:0 1px 2px rgba(0,0,0,.1)}
.card-header{padding:8px 12px;font-size:.85em;color:#555}
.card-body{padding:8px 12px 12px;font-size:1.4em;font-weight:600}
.charts>div{display:grid;grid-template-columns:repeat(auto-fill,minmax(420px,1fr));gap:16px;margin:16px 0}
.table-responsive{overflow-x:auto}
table{border-collapse:collapse;font-size:.85em;background:#fff}
th,td{border:1px solid #e2e2e2;padding:4px 6px;white-space:nowrap}
.muted{color:#777}
`

const chartJS = `
const chartsByReport = {};
function renderCharts(report, charts) {
  const host = document.getElementById('charts-' + report);
  if (!host) return;
  (chartsByReport[report] || []).forEach(c => c.destroy());
  chartsByReport[report] = [];
  host.innerHTML = '';
  (charts || []).forEach(chart => {
    const box = document.createElement('div');
    box.className = 'card';
    box.innerHTML = '<div class="card-header"></div><div class="card-body"><canvas></canvas></div>';
    box.querySelector('.card-header').textContent = chart.title;
    host.appendChild(box);
    const num = v => typeof v === 'string' ? Number(v) : v;
    chartsByReport[report].push(new Chart(box.querySelector('canvas'), {
      type: chart.type,
      data: {
        labels: chart.labels,
        datasets: chart.series.map(s => ({label: s.name, data: s.values.map(num)})),
      },
      options: chart.horizontal ? {indexAxis: 'y'} : {},
    }));
  });
}
`
