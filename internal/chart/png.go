package chart

import (
	"fmt"
	"io"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"hoursboard/internal/core"
)

// PNG dimensions used when the caller passes zero.
const (
	DefaultPNGWidth  = 1024
	DefaultPNGHeight = 640
)

// RenderPNG draws a static image of the aggregation. Grouped bars are drawn
// stacked per axis key.
func RenderPNG(w io.Writer, agg core.Aggregation, width, height int) error {
	if width <= 0 {
		width = DefaultPNGWidth
	}
	if height <= 0 {
		height = DefaultPNGHeight
	}

	var r interface {
		Render(gochart.RendererProvider, io.Writer) error
	}
	switch {
	case agg.Empty() || agg.Sum() == 0:
		r = placeholder(agg.Title, width, height)
	case agg.Mode == core.ModePie && allPositive(agg):
		r = pngPie(agg, width, height)
	case agg.Mode == core.ModeGroupedBar && anyPositive(agg):
		r = pngStacked(agg, width, height)
	default:
		r = pngBar(agg, width, height)
	}

	if err := r.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return nil
}

func placeholder(title string, width, height int) *gochart.BarChart {
	if title == "" {
		title = NoData
	}
	return &gochart.BarChart{
		Title:  title,
		Width:  width,
		Height: height,
		YAxis:  gochart.YAxis{Range: &gochart.ContinuousRange{Min: 0, Max: 1}},
		Bars:   []gochart.Value{{Label: NoData, Value: 0}},
	}
}

func pngPie(agg core.Aggregation, width, height int) *gochart.PieChart {
	values := make([]gochart.Value, 0, len(agg.Groups))
	for i, g := range agg.Groups {
		values = append(values, gochart.Value{
			Label: fmt.Sprintf("%s (%s h)", g.Keys[0], core.FormatHours(g.Hours)),
			Value: g.Hours,
			Style: gochart.Style{FillColor: parseHex(color(i))},
		})
	}
	return &gochart.PieChart{
		Title:  agg.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
}

func pngBar(agg core.Aggregation, width, height int) *gochart.BarChart {
	bars := make([]gochart.Value, 0, len(agg.Groups))
	lo, hi := 0.0, 0.0
	for i, g := range agg.Groups {
		lo, hi = min(lo, g.Hours), max(hi, g.Hours)
		bars = append(bars, gochart.Value{
			Label: g.Keys[0],
			Value: g.Hours,
			Style: gochart.Style{FillColor: parseHex(color(i)), StrokeColor: parseHex(color(i))},
		})
	}
	return &gochart.BarChart{
		Title:      agg.Title,
		Width:      widthFor(width, len(bars)),
		Height:     height,
		BarWidth:   40,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      gochart.YAxis{Name: hoursAxis, Range: &gochart.ContinuousRange{Min: lo, Max: padded(hi)}},
		Bars:       bars,
	}
}

func pngStacked(agg core.Aggregation, width, height int) *gochart.StackedBarChart {
	xs := agg.XKeys()
	colors := agg.ColorKeys()
	bars := make([]gochart.StackedBar, 0, len(xs))
	for _, x := range xs {
		sb := gochart.StackedBar{Name: x}
		for i, c := range colors {
			h, ok := agg.Lookup(x, c)
			if !ok || h <= 0 {
				continue
			}
			sb.Values = append(sb.Values, gochart.Value{
				Label: c,
				Value: h,
				Style: gochart.Style{FillColor: parseHex(color(i)), StrokeColor: parseHex(color(i))},
			})
		}
		if len(sb.Values) > 0 {
			bars = append(bars, sb)
		}
	}
	return &gochart.StackedBarChart{
		Title:      agg.Title,
		Width:      widthFor(width, len(bars)),
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		Bars:       bars,
	}
}

func anyPositive(agg core.Aggregation) bool {
	for _, g := range agg.Groups {
		if g.Hours > 0 {
			return true
		}
	}
	return false
}

func allPositive(agg core.Aggregation) bool {
	for _, g := range agg.Groups {
		if g.Hours <= 0 {
			return false
		}
	}
	return true
}

func widthFor(width, bars int) int {
	return max(width, 80*bars)
}

func padded(hi float64) float64 {
	if hi <= 0 {
		return 1
	}
	return hi * 1.1
}

func parseHex(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
