package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/styles"
)

// WarnPercent is the share of a threshold at which bars turn to warning.
const WarnPercent = 90.0

const (
	usageLabelWidth   = 18
	usagePercentWidth = 7
	usageValueWidth   = 22
)

// UsagePercent returns current as a percentage of threshold, or -1 when no
// positive threshold is set.
func UsagePercent(current float64, threshold *int64) float64 {
	if threshold == nil || *threshold <= 0 {
		return -1
	}
	return current / float64(*threshold) * 100
}

// RenderGradientBar renders the bar characters, shading from green to red as
// the filled part grows.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := min(max(int(float64(width)*percent/100), 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#51cf66", "#ff6b6b", t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
		} else {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
		}
	}
	return b.String()
}

// RenderUsageBar renders one metric line: label, bar, percentage of the
// threshold and the formatted value. A negative percent draws an empty bar
// and "--".
func RenderUsageBar(label, value string, percent float64, width int) string {
	barWidth := max(width-usageLabelWidth-usagePercentWidth-usageValueWidth-4, 10)

	labelStr := styles.ProgressLabelStyle.Width(usageLabelWidth).Render(label)

	var bar, pct string
	style := styles.UsageStyle(percent, WarnPercent)
	if percent < 0 {
		bar = lipgloss.NewStyle().Foreground(styles.BgLight).Render(strings.Repeat("░", barWidth))
		pct = style.Width(usagePercentWidth).Align(lipgloss.Right).Render("--")
	} else {
		bar = RenderGradientBar(percent, barWidth)
		pct = style.Width(usagePercentWidth).Align(lipgloss.Right).Render(fmt.Sprintf("%.1f%%", percent))
	}

	valueStr := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(usageValueWidth).
		Align(lipgloss.Right).
		Render(value)

	return lipgloss.JoinHorizontal(lipgloss.Left, labelStr, bar, " ", pct, " ", valueStr)
}

// RenderLoadingBar renders a shimmering placeholder for a metric that has not
// arrived yet. frame advances the shimmer.
func RenderLoadingBar(label string, width, frame int) string {
	barWidth := max(width-usageLabelWidth-usagePercentWidth-usageValueWidth-4, 10)

	const cycle = 120
	t := float64(frame%cycle) / float64(cycle)
	p := t * 2
	if t >= 0.5 {
		p = (1 - t) * 2
	}
	eased := p * p * (3 - 2*p)
	shimmerPos := int(eased * float64(barWidth))

	var b strings.Builder
	for i := range barWidth {
		dist := shimmerPos - i
		if dist < 0 {
			dist = -dist
		}
		switch {
		case dist < 3:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Primary).Render("▓"))
		case dist < 5:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.TextSecondary).Render("▒"))
		default:
			b.WriteString(lipgloss.NewStyle().Foreground(styles.BgLight).Render("░"))
		}
	}

	dots := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	dot := lipgloss.NewStyle().
		Width(usagePercentWidth).
		Align(lipgloss.Right).
		Foreground(styles.Primary).
		Render(dots[(frame/2)%len(dots)])

	return lipgloss.JoinHorizontal(lipgloss.Left,
		styles.ProgressLabelStyle.Width(usageLabelWidth).Render(label),
		b.String(),
		" ",
		dot,
	)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
