// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/cf-usage-dashboard/internal/ui/styles"
)

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	width = max(width, 20)
	height = max(height, 3)

	// asciigraph needs two points to draw a line
	if len(data) == 1 {
		data = []float64{data[0], data[0]}
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// RenderMultiLineChart plots several aligned series. Shorter series are
// left-padded with zeros so the most recent points line up.
func RenderMultiLineChart(series [][]float64, colors []asciigraph.AnsiColor, width, height int, caption string) string {
	longest := 0
	for _, s := range series {
		longest = max(longest, len(s))
	}
	if longest == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	longest = max(longest, 2)

	aligned := make([][]float64, len(series))
	for i, s := range series {
		aligned[i] = make([]float64, longest)
		copy(aligned[i][longest-len(s):], s)
	}

	opts := []asciigraph.Option{
		asciigraph.Height(max(height, 3)),
		asciigraph.Width(max(width, 20)),
		asciigraph.Caption(caption),
	}
	if len(colors) > 0 {
		opts = append(opts, asciigraph.SeriesColors(colors...))
	}
	return asciigraph.PlotMany(aligned, opts...)
}

// RenderBarChart creates a horizontal bar chart with preformatted values.
func RenderBarChart(values []float64, labels, formatted []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	maxLabelLen := 0
	for _, l := range labels {
		maxLabelLen = max(maxLabelLen, lipgloss.Width(l))
	}

	barWidth := max(width-maxLabelLen-14, 10)

	lines := make([]string, 0, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		value := fmt.Sprintf("%.0f", v)
		if i < len(formatted) {
			value = formatted[i]
		}

		barLen := max(int(v/maxVal*float64(barWidth)), 0)
		bar := lipgloss.NewStyle().Foreground(styles.Primary).Render(strings.Repeat("█", barLen))

		lines = append(lines, fmt.Sprintf("%-*s │%s %s", maxLabelLen, label, bar, value))
	}

	return strings.Join(lines, "\n")
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderSparkline creates a compact inline sparkline chart.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	step := max(float64(len(values))/float64(width), 1)

	var result strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		idx := int(val / maxVal * float64(len(sparkChars)-1))
		idx = min(max(idx, 0), len(sparkChars)-1)
		result.WriteRune(sparkChars[idx])
	}

	return result.String()
}

// LegendItem represents a single legend entry.
type LegendItem struct {
	Label string
	Color lipgloss.Color
}

// RenderLegend creates a chart legend.
func RenderLegend(items []LegendItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		colorBox := lipgloss.NewStyle().Foreground(item.Color).Render("■")
		parts = append(parts, fmt.Sprintf("%s %s", colorBox, item.Label))
	}
	return strings.Join(parts, "  ")
}
