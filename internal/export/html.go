package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// TrajectoryHTML renders the traces as one scatter series each on a square
// plot with equal axis ranges.
func TrajectoryHTML(w io.Writer, title, subtitle string, traces []Trace) error {
	minX, minY, maxX, maxY, ok := Bounds(traces)
	if !ok {
		return fmt.Errorf("export: nothing to draw")
	}
	pad := max(maxX-minX, maxY-minY) / 2
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: cx - pad, Max: cx + pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: cy - pad, Max: cy + pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	for _, t := range traces {
		data := make([]opts.ScatterData, 0, len(t.Points))
		for _, p := range t.Points {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		}
		scatter.AddSeries(t.Name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: t.Stroke}),
		)
	}

	return scatter.Render(w)
}
