package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"hoursboard/internal/core"
)

// HTMLOptions sizes the rendered page.
type HTMLOptions struct {
	PageTitle string
	Width     string
	Height    string
}

func (o HTMLOptions) withDefaults() HTMLOptions {
	if o.PageTitle == "" {
		o.PageTitle = "Hours"
	}
	if o.Width == "" {
		o.Width = "100%"
	}
	if o.Height == "" {
		o.Height = "520px"
	}
	return o
}

// RenderHTML writes a standalone echarts page for the aggregation.
func RenderHTML(w io.Writer, agg core.Aggregation, o HTMLOptions) error {
	r, err := Build(agg, o)
	if err != nil {
		return err
	}
	if err := r.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// Renderer is satisfied by every go-echarts chart.
type Renderer interface {
	Render(w io.Writer) error
}

// Build returns the echarts chart for the aggregation without rendering it.
func Build(agg core.Aggregation, o HTMLOptions) (Renderer, error) {
	o = o.withDefaults()
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: o.PageTitle,
			Width:     o.Width,
			Height:    o.Height,
		}),
		charts.WithTitleOpts(title(agg)),
		charts.WithColorsOpts(opts.Colors(Palette)),
	}

	switch agg.Mode {
	case core.ModePie:
		return pieChart(agg, global), nil
	case core.ModeBar:
		return barChart(agg, global), nil
	case core.ModeGroupedBar:
		return groupedBarChart(agg, global), nil
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownChartMode, agg.Mode)
}

func title(agg core.Aggregation) opts.Title {
	t := opts.Title{Title: agg.Title, Left: "center"}
	if agg.Empty() {
		t.Subtitle = NoData
	}
	return t
}

func pieChart(agg core.Aggregation, global []charts.GlobalOpts) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(append(global,
		charts.WithTooltipOpts(opts.Tooltip{
			Show:      opts.Bool(true),
			Trigger:   "item",
			Formatter: "<b>{b}</b><br/>Hours: {c}<br/>Percentage: {d}%",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Bottom: "0"}),
	)...)

	data := make([]opts.PieData, 0, len(agg.Groups))
	for _, g := range agg.Groups {
		data = append(data, opts.PieData{Name: g.Keys[0], Value: round2(g.Hours)})
	}
	pie.AddSeries(hoursAxis, data,
		charts.WithLabelOpts(opts.Label{
			Show:      opts.Bool(true),
			Position:  "inside",
			Formatter: "{d}%\n{c} hrs",
		}),
		charts.WithPieChartOpts(opts.PieChart{Radius: []string{"40%", "75%"}}),
	)
	return pie
}

func barChart(agg core.Aggregation, global []charts.GlobalOpts) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(global,
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Name: agg.XColumn, Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: hoursAxis, Type: "value"}),
	)...)

	keys := make([]string, 0, len(agg.Groups))
	data := make([]opts.BarData, 0, len(agg.Groups))
	for i, g := range agg.Groups {
		keys = append(keys, g.Keys[0])
		data = append(data, opts.BarData{
			Name:      g.Keys[0],
			Value:     round2(g.Hours),
			ItemStyle: &opts.ItemStyle{Color: color(i)},
		})
	}
	bar.SetXAxis(keys).AddSeries(hoursAxis, data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)
	return bar
}

func groupedBarChart(agg core.Aggregation, global []charts.GlobalOpts) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(global,
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Name: agg.XColumn, Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: hoursAxis, Type: "value"}),
	)...)

	xs := agg.XKeys()
	bar.SetXAxis(xs)
	for _, c := range agg.ColorKeys() {
		data := make([]opts.BarData, len(xs))
		for i, x := range xs {
			h, ok := agg.Lookup(x, c)
			if !ok {
				data[i] = opts.BarData{Value: "-"}
				continue
			}
			data[i] = opts.BarData{Value: round2(h)}
		}
		bar.AddSeries(c, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	}
	return bar
}
