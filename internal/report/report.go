// Package report renders stock-take reports and archives them.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/schoolstock/stockroom/internal/model"
)

// ContentType is the media type of a rendered report.
const ContentType = "text/html; charset=utf-8"

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	// The output is digits and a sign only, so it needs no escaping.
	"signed": func(n int) template.HTML {
		if n > 0 {
			return template.HTML(fmt.Sprintf("+%d", n))
		}
		return template.HTML(fmt.Sprint(n))
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Stock Take Report</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 10px; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>Stock Take Report</h1>
<p>Date: {{.CreatedAt.Format "2006-01-02 15:04"}}</p>
<p>Total items changed: {{len .Lines}}</p>
<table>
<thead><tr><th>Item</th><th>Previous</th><th>Counted</th><th>Difference</th></tr></thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.ItemName}}</td><td class="num">{{.PreviousQty}}</td><td class="num">{{.CountedQty}}</td><td class="num">{{signed .Difference}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

// Render writes the report as an HTML document.
func Render(w io.Writer, r *model.StockTakeReport) error {
	if err := reportTmpl.Execute(w, r); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

// RenderBytes renders the report into memory.
func RenderBytes(r *model.StockTakeReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Key returns the archive key of a report.
func Key(r *model.StockTakeReport) string {
	return fmt.Sprintf("stock-take-%s-%s.html", r.CreatedAt.Format("20060102-150405"), r.ID)
}
