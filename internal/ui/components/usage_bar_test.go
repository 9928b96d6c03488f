package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestUsagePercent(t *testing.T) {
	limit := int64(200)
	zero := int64(0)

	if got := UsagePercent(50, &limit); got != 25 {
		t.Errorf("UsagePercent(50, 200) = %v, want 25", got)
	}
	if got := UsagePercent(50, nil); got != -1 {
		t.Errorf("UsagePercent(50, nil) = %v, want -1", got)
	}
	if got := UsagePercent(50, &zero); got != -1 {
		t.Errorf("UsagePercent(50, 0) = %v, want -1", got)
	}
}

func TestRenderGradientBar(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		filled  int
	}{
		{name: "Empty", percent: 0, filled: 0},
		{name: "Half", percent: 50, filled: 5},
		{name: "Full", percent: 100, filled: 10},
		{name: "Overflow", percent: 250, filled: 10},
		{name: "Negative", percent: -5, filled: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := RenderGradientBar(tt.percent, 10)
			if got := strings.Count(bar, "█"); got != tt.filled {
				t.Errorf("filled = %d, want %d", got, tt.filled)
			}
			if got := lipgloss.Width(bar); got != 10 {
				t.Errorf("width = %d, want 10", got)
			}
		})
	}

	if RenderGradientBar(50, 0) != "" {
		t.Error("zero width bar should render nothing")
	}
}

func TestRenderUsageBar(t *testing.T) {
	view := RenderUsageBar("Requests", "1,000 / 2,000", 50, 80)
	for _, want := range []string{"Requests", "50.0%", "1,000 / 2,000"} {
		if !strings.Contains(view, want) {
			t.Errorf("RenderUsageBar() missing %q in %q", want, view)
		}
	}

	view = RenderUsageBar("DNS Queries", "7", -1, 80)
	if !strings.Contains(view, "--") || strings.Contains(view, "█") {
		t.Errorf("unlimited bar = %q", view)
	}
}

func TestRenderLoadingBar(t *testing.T) {
	for frame := range 3 {
		if view := RenderLoadingBar("Bandwidth", 80, frame*40); !strings.Contains(view, "Bandwidth") {
			t.Errorf("frame %d = %q", frame, view)
		}
	}
}

func TestInterpolateColor(t *testing.T) {
	if got := interpolateColor("#000000", "#ffffff", 0); got != "#000000" {
		t.Errorf("start = %s", got)
	}
	if got := interpolateColor("#000000", "#ffffff", 1); got != "#ffffff" {
		t.Errorf("end = %s", got)
	}
	if got := hexToRGB("zz"); got != [3]int{} {
		t.Errorf("hexToRGB(invalid) = %v", got)
	}
}
