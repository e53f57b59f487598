// Package chart draws aggregations: interactive HTML through go-echarts and
// static PNG through go-chart.
package chart

import (
	"math"

	"hoursboard/internal/core"
)

// Palette is the sequential green-blue scale used for series colors.
var Palette = []string{"#245668", "#0F7279", "#0D8F81", "#39AB7E", "#6EC574", "#A9DC67", "#EDEF5D"}

// NoData is shown instead of a chart body when nothing matched the filters.
const NoData = "No data"

const hoursAxis = "Hours"

func color(i int) string {
	return Palette[i%len(Palette)]
}

// round2 keeps labels at two decimals without a formatter callback.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Kind describes the chart drawn for a mode, for logs and headers.
func Kind(a core.Aggregation) string {
	if a.Empty() {
		return "empty"
	}
	return string(a.Mode)
}
