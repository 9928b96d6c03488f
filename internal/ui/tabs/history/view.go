package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/components"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/styles"
)

// maxCompared caps the accounts drawn in the comparison chart.
const maxCompared = 6

var accountColors = []asciigraph.AnsiColor{
	asciigraph.DodgerBlue,
	asciigraph.Orange,
	asciigraph.MediumOrchid,
	asciigraph.LimeGreen,
	asciigraph.Gold,
	asciigraph.Red,
}

// View renders the history tab.
func (m *Model) View() string {
	points, scope := m.series()
	if len(points) == 0 {
		return m.renderEmpty()
	}

	sections := []string{
		m.renderHeader(scope),
		m.renderSeriesChart(points),
		m.renderMonthTable(points),
	}
	if !m.perAccount && m.currentMetric().Addon == "" {
		if chart := m.renderAccountComparison(); chart != "" {
			sections = append(sections, chart)
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderEmpty() string {
	hint := "Monthly history appears once the full dashboard has loaded."
	if m.perAccount && m.state.GetSelectedAccount() == nil {
		hint = "Select an account on the dashboard, or press a for all accounts."
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("History"),
		"",
		styles.HelpStyle.Render("No historical data available yet."),
		styles.HelpStyle.Render(hint),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader(scope string) string {
	if len(scope) > 40 {
		scope = scope[:37] + "..."
	}
	title := styles.TitleStyle.Render("History: " + scope)

	indicator := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		title, "  ",
		indicator.Render("[m] "+m.currentMetric().Label),
		" ",
		indicator.Render("[a] "+scopeName(m.perAccount)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, "")
}

func scopeName(perAccount bool) string {
	if perAccount {
		return "selected account"
	}
	return "all accounts"
}

func (m *Model) renderSeriesChart(points []point) string {
	cardWidth := max(m.width-6, 40)
	mt := m.currentMetric()

	rows := []string{cardTitle("Monthly " + mt.Label), ""}

	data := make([]float64, len(points))
	for i, p := range points {
		data[i] = float64(p.Value)
	}

	caption := fmt.Sprintf("%s → %s", points[0].Month, points[len(points)-1].Month)
	if mt.Key == alerts.MetricBandwidth {
		caption += " (bytes)"
	}
	chart := components.RenderLineChart(data, max(cardWidth-16, 30), 8, caption)
	for line := range strings.SplitSeq(chart, "\n") {
		rows = append(rows, "  "+line)
	}
	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderMonthTable(points []point) string {
	cardWidth := max(m.width-6, 40)
	mt := m.currentMetric()

	rows := []string{cardTitle("By Month"), ""}

	values := make([]float64, len(points))
	labels := make([]string, len(points))
	formatted := make([]string, len(points))
	for i, p := range points {
		values[i] = float64(p.Value)
		labels[i] = p.Month
		formatted[i] = alerts.FormatValue(mt.Key, float64(p.Value)) + monthChange(points, i)
	}
	for line := range strings.SplitSeq(components.RenderBarChart(values, labels, formatted, cardWidth-24), "\n") {
		rows = append(rows, "  "+line)
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// monthChange renders the change against the previous month, or nothing for
// the first month or a zero base.
func monthChange(points []point, i int) string {
	if i == 0 || points[i-1].Value == 0 {
		return ""
	}
	pct := float64(points[i].Value-points[i-1].Value) / float64(points[i-1].Value) * 100
	text := fmt.Sprintf(" (%+.1f%%)", pct)
	if pct > 0 {
		return styles.WarningTextStyle.Render(text)
	}
	return styles.SuccessTextStyle.Render(text)
}

// renderAccountComparison draws the current core metric of every account on
// one chart, with a sparkline per account.
func (m *Model) renderAccountComparison() string {
	accounts := m.state.GetAccounts()
	if len(accounts) < 2 {
		return ""
	}
	accounts = accounts[:min(len(accounts), maxCompared)]
	cardWidth := max(m.width-6, 40)
	key := m.currentMetric().Key

	series := make([][]float64, len(accounts))
	legend := make([]components.LegendItem, len(accounts))
	var sparks []string
	for i, acc := range accounts {
		series[i] = accountSeries(acc, key)
		color := accountColors[i%len(accountColors)]
		legend[i] = components.LegendItem{
			Label: accountLabel(acc),
			Color: lipgloss.Color(fmt.Sprint(int(color))),
		}
		sparks = append(sparks, fmt.Sprintf("  %-24s %s", truncate(accountLabel(acc), 24),
			components.RenderSparkline(series[i], 24)))
	}

	rows := []string{cardTitle("Per Account"), ""}
	chart := components.RenderMultiLineChart(series, accountColors[:len(accounts)], max(cardWidth-16, 30), 8, m.currentMetric().Label)
	for line := range strings.SplitSeq(chart, "\n") {
		rows = append(rows, "  "+line)
	}
	rows = append(rows, "", "  "+components.RenderLegend(legend), "")
	rows = append(rows, sparks...)

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func accountSeries(acc *models.AccountMetrics, key string) []float64 {
	out := make([]float64, len(acc.TimeSeries))
	for i, p := range acc.TimeSeries {
		out[i] = float64(coreValue(key, p))
	}
	return out
}

func cardTitle(title string) string {
	icon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	return fmt.Sprintf("%s %s", icon, styles.CardTitleStyle.Render(title))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
