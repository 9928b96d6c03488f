package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Loading")
	if s.label != "Loading" {
		t.Error("Spinner label mismatch")
	}
}

func TestSpinner_Methods(t *testing.T) {
	s := NewSpinner("Init")

	s.SetLabel("Loading")
	if s.Label() != "Loading" {
		t.Errorf("Label = %s, want Loading", s.Label())
	}

	// Test View
	view := s.View()
	if view == "" {
		t.Error("View returned empty")
	}

	// Test ViewWithLabel
	view = s.ViewWithLabel()
	if view == "" {
		t.Error("ViewWithLabel returned empty")
	}

	// Test Init
	if s.Init() == nil {
		t.Error("Init should return command")
	}

	// Test Update
	m, cmd := s.Update(spinner.TickMsg{})
	_ = m
	if cmd == nil {
		t.Error("Update should return command for tick")
	}

	// Test Tick
	if s.Tick() == nil {
		t.Error("Tick should return command")
	}
}

func TestRenderSpinnerCentered(t *testing.T) {
	s := NewSpinner("Loading...")
	view := RenderSpinnerCentered(s, 20, 5)
	if !strings.Contains(view, "Loading...") {
		t.Errorf("RenderSpinnerCentered() = %q", view)
	}
}

func TestRenderLineChart(t *testing.T) {
	if s := RenderLineChart([]float64{1, 2, 3, 4}, 20, 5, "Test"); !strings.Contains(s, "Test") {
		t.Errorf("RenderLineChart() = %q", s)
	}
	if s := RenderLineChart([]float64{5}, 20, 5, ""); s == "" {
		t.Error("single point chart should still render")
	}
	if s := RenderLineChart(nil, 20, 5, ""); !strings.Contains(s, "No data") {
		t.Errorf("empty chart = %q", s)
	}
}

func TestRenderMultiLineChart(t *testing.T) {
	s := RenderMultiLineChart([][]float64{{1, 2, 3}, {3}}, []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Red}, 20, 5, "Title")
	if !strings.Contains(s, "Title") {
		t.Errorf("RenderMultiLineChart() = %q", s)
	}
	if s := RenderMultiLineChart([][]float64{{}, nil}, nil, 20, 5, ""); !strings.Contains(s, "No data") {
		t.Errorf("empty chart = %q", s)
	}
}

func TestRenderBarChart(t *testing.T) {
	s := RenderBarChart([]float64{10, 20}, []string{"a.example", "b.example"}, []string{"10", "20"}, 60)
	lines := strings.Split(s, "\n")
	if len(lines) != 2 {
		t.Fatalf("RenderBarChart() lines = %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "b.example") || !strings.HasSuffix(lines[1], "20") {
		t.Errorf("line = %q", lines[1])
	}
	if RenderBarChart(nil, nil, nil, 60) != "" {
		t.Error("empty bar chart should render nothing")
	}
}

func TestRenderSparkline(t *testing.T) {
	if s := RenderSparkline([]float64{0, 1, 2}, 10); s != "▁▄█" {
		t.Errorf("RenderSparkline() = %q", s)
	}
	if RenderSparkline(nil, 10) != "" {
		t.Error("empty sparkline should render nothing")
	}
}

func TestRenderLegend(t *testing.T) {
	items := []LegendItem{
		{Label: "Requests", Color: lipgloss.Color("#ffffff")},
	}
	if s := RenderLegend(items); !strings.Contains(s, "Requests") {
		t.Errorf("RenderLegend() = %q", s)
	}
}
