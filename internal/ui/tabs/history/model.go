// Package history provides the monthly usage history tab.
package history

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/cf-usage-dashboard/internal/app"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
)

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	NextMetric  key.Binding
	ToggleScope key.Binding
	Up          key.Binding
	Down        key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextMetric: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "next metric"),
		),
		ToggleScope: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all accounts / selected"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// metric identifies one plottable series.
type metric struct {
	Key   string
	Label string
	Addon models.AddonType
}

var coreMetrics = []metric{
	{Key: alerts.MetricRequests, Label: "HTTP requests"},
	{Key: alerts.MetricBandwidth, Label: "Data transfer"},
	{Key: alerts.MetricDNSQueries, Label: "DNS queries"},
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	metricIndex int
	perAccount  bool
}

// New creates a new history model.
func New(state *app.State) *Model {
	return &Model{
		state:    state,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
	}
}

// Init initializes the history tab.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case app.DataUpdatedMsg:
		m.clampMetric()

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.NextMetric):
		if n := len(m.metrics()); n > 0 {
			m.metricIndex = (m.metricIndex + 1) % n
		}
	case key.Matches(msg, m.keys.ToggleScope):
		m.perAccount = !m.perAccount
		m.clampMetric()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

func (m *Model) clampMetric() {
	if n := len(m.metrics()); m.metricIndex >= n {
		m.metricIndex = 0
	}
}

// metrics lists the core series followed by every add-on present in the
// latest payload.
func (m *Model) metrics() []metric {
	out := append([]metric(nil), coreMetrics...)
	resp := m.state.GetResponse()
	if resp == nil {
		return out
	}
	for _, kind := range models.AllAddons {
		if resp.Addon(kind) != nil {
			out = append(out, metric{Key: string(kind), Label: kind.DisplayName(), Addon: kind})
		}
	}
	return out
}

func (m *Model) currentMetric() metric {
	list := m.metrics()
	if m.metricIndex < len(list) {
		return list[m.metricIndex]
	}
	return list[0]
}

// point is one month of the plotted series.
type point struct {
	Month string
	Value int64
}

// series returns the monthly values of the current metric for the current
// scope, oldest first, and the name of that scope.
func (m *Model) series() ([]point, string) {
	resp := m.state.GetResponse()
	if resp == nil {
		return nil, ""
	}
	mt := m.currentMetric()

	if mt.Addon != "" {
		addon := resp.Addon(mt.Addon)
		if addon == nil {
			return nil, ""
		}
		scope := "All accounts"
		points := addon.TimeSeries
		if m.perAccount {
			acc := m.state.GetSelectedAccount()
			if acc == nil {
				return nil, ""
			}
			scope = accountLabel(acc)
			points = nil
			for _, per := range addon.PerAccountData {
				if per.AccountID == acc.AccountID {
					points = per.TimeSeries
				}
			}
		}
		out := make([]point, len(points))
		for i, p := range points {
			out[i] = point{Month: p.Month, Value: p.Requests}
		}
		return out, scope
	}

	if resp.Core == nil {
		return nil, ""
	}
	scope := "All accounts"
	points := resp.Core.TimeSeries
	if m.perAccount {
		acc := m.state.GetSelectedAccount()
		if acc == nil {
			return nil, ""
		}
		scope = accountLabel(acc)
		points = acc.TimeSeries
	}

	out := make([]point, len(points))
	for i, p := range points {
		out[i] = point{Month: p.Month, Value: coreValue(mt.Key, p)}
	}
	return out, scope
}

func coreValue(key string, p models.TimeSeriesPoint) int64 {
	switch key {
	case alerts.MetricBandwidth:
		return p.Bytes
	case alerts.MetricDNSQueries:
		return p.DNSQueries
	default:
		return p.Requests
	}
}

func accountLabel(acc *models.AccountMetrics) string {
	if acc.AccountName != "" {
		return acc.AccountName
	}
	return acc.AccountID
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.NextMetric,
		m.keys.ToggleScope,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextMetric, m.keys.ToggleScope},
		{m.keys.Up, m.keys.Down},
	}
}
