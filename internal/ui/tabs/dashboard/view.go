package dashboard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/components"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/styles"
)

const topZoneCount = 5

// View renders the dashboard component.
func (m *Model) View() string {
	resp := m.state.GetResponse()
	setupErr := m.state.GetSetupError()

	if resp == nil && setupErr == "" && m.state.AnyLoading() {
		return m.renderLoading()
	}

	sections := []string{m.renderTitle(resp)}

	switch {
	case setupErr != "":
		sections = append(sections, m.renderSetupError(setupErr))
	case resp == nil:
		sections = append(sections, styles.HelpStyle.Render("No usage data yet. Press r to refresh."))
	default:
		sections = append(sections, m.renderUsage(resp))
		if resp.Core != nil {
			sections = append(sections, "", m.renderAccounts(resp.Core))
		}
	}

	if report := m.state.GetReport(); report != nil {
		sections = append(sections, "", renderReportLine(report))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderLoading renders the loading state.
func (m *Model) renderLoading() string {
	return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
}

func (m *Model) renderTitle(resp *models.Response) string {
	title := styles.TitleStyle.Render("Cloudflare Usage")

	parts := []string{time.Now().UTC().Format("January 2006")}
	if resp != nil {
		parts = append(parts, fmt.Sprintf("%d zones", resp.ZoneCount))
	}
	if updated := m.state.GetLastUpdated(); !updated.IsZero() {
		parts = append(parts, "updated "+humanize.Time(updated))
	}
	subtitle := styles.HelpStyle.Render(strings.Join(parts, " · "))

	if resp != nil {
		subtitle = lipgloss.JoinHorizontal(lipgloss.Center, subtitle, " ", renderPhaseBadge(resp))
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func renderPhaseBadge(resp *models.Response) string {
	switch {
	case resp.Phase == models.PhaseCached:
		return styles.CachedBadgeStyle.Render("cached")
	case resp.Loading:
		return styles.PhaseBadgeStyle.Render(fmt.Sprintf("phase %s/3", resp.Phase))
	default:
		return styles.PhaseBadgeStyle.Render("live")
	}
}

func (m *Model) renderSetupError(msg string) string {
	cardWidth := max(m.width-6, 40)
	rows := []string{
		styles.ErrorTextStyle.Render("✗ Dashboard unavailable"),
		"",
		styles.HelpStyle.Render(msg),
	}
	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderUsage(resp *models.Response) string {
	cardWidth := max(m.width-6, 40)
	contentWidth := max(cardWidth-4, 40)

	titleIcon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	rows := []string{fmt.Sprintf("%s %s", titleIcon, styles.CardTitleStyle.Render("Current Month")), ""}

	for _, row := range usageRows(resp, m.state.GetSettings()) {
		if row.Pending {
			rows = append(rows, components.RenderLoadingBar(row.Label, contentWidth, m.animationFrame))
			continue
		}
		rows = append(rows, components.RenderUsageBar(row.Label, formatRowValue(row), m.displayPercent(row), contentWidth))
	}

	if c := resp.Core; c != nil {
		if line := renderConfidence(c.Current.Confidence); line != "" {
			rows = append(rows, "", line)
		}
		rows = append(rows, renderPrevious(c.Previous))
		if n := dnsUnavailable(c.ZoneBreakdown.Zones); n > 0 {
			rows = append(rows, styles.WarningTextStyle.Render(
				fmt.Sprintf("DNS data unavailable for %d zone(s), counted as zero", n)))
		}
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatRowValue(row usageRow) string {
	value := alerts.FormatValue(row.Key, float64(row.Current))
	if row.Threshold == nil || *row.Threshold <= 0 {
		return value
	}
	return value + " / " + alerts.FormatValue(row.Key, float64(*row.Threshold))
}

func renderConfidence(c models.UsageConfidence) string {
	var parts []string
	for _, item := range []struct {
		label    string
		interval *models.ConfidenceInterval
	}{
		{"requests", c.Requests},
		{"transfer", c.Bytes},
		{"DNS", c.DNSQueries},
	} {
		if pct, ok := item.interval.Percent(); ok {
			parts = append(parts, fmt.Sprintf("%s %.1f%%", item.label, pct))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return styles.HelpStyle.Render("Sampling confidence  " + strings.Join(parts, " · "))
}

func renderPrevious(t models.UsageTotals) string {
	return styles.HelpStyle.Render(fmt.Sprintf("Last month           %s requests · %s · %s DNS queries",
		humanize.Comma(t.Requests), humanize.IBytes(uint64(max(t.Bytes, 0))), humanize.Comma(t.DNSQueries)))
}

func dnsUnavailable(zones []models.ZoneUsage) int {
	n := 0
	for _, z := range zones {
		if z.DNSUnavailable {
			n++
		}
	}
	return n
}

func (m *Model) renderAccounts(core *models.AggregateMetrics) string {
	cardWidth := max(m.width-6, 40)
	accounts := core.PerAccountData

	titleIcon := lipgloss.NewStyle().Foreground(styles.Primary).Render("◈")
	rows := []string{fmt.Sprintf("%s %s", titleIcon, styles.CardTitleStyle.Render("Accounts")), ""}

	if len(accounts) == 0 {
		emptyIcon := lipgloss.NewStyle().Foreground(styles.Subtle).Render("○")
		rows = append(rows, fmt.Sprintf("  %s %s", emptyIcon, styles.HelpStyle.Render("No account data")))
		return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	selected := m.state.GetSelectedAccountIndex()
	for i, acc := range accounts {
		rows = append(rows, renderAccountRow(acc, i == selected))
	}

	if selected >= 0 && selected < len(accounts) {
		if chart := renderTopZones(accounts[selected], cardWidth-6); chart != "" {
			rows = append(rows, "", styles.CardTitleStyle.Render("Top zones by requests"), chart)
		}
	}

	return styles.CardStyle.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderAccountRow(acc *models.AccountMetrics, selected bool) string {
	prefix := "  "
	if selected {
		prefix = styles.FocusedStyle.Render("▸ ")
	}

	name := acc.AccountName
	if name == "" {
		name = acc.AccountID
	}
	if len(name) > 28 {
		name = name[:25] + "..."
	}

	bd := acc.ZoneBreakdown
	stats := fmt.Sprintf("%s req · %s · %s DNS · %d zones (%d primary)",
		humanize.Comma(acc.Current.Requests),
		humanize.IBytes(uint64(max(acc.Current.Bytes, 0))),
		humanize.Comma(acc.Current.DNSQueries),
		bd.ZoneCount(), bd.PrimaryCount,
	)

	nameStyle := lipgloss.NewStyle().Width(30)
	if selected {
		nameStyle = nameStyle.Bold(true)
	}
	return prefix + nameStyle.Render(name) + styles.HelpStyle.Render(stats)
}

func renderTopZones(acc *models.AccountMetrics, width int) string {
	zones := slices.Clone(acc.ZoneBreakdown.Zones)
	if len(zones) == 0 {
		return ""
	}
	slices.SortStableFunc(zones, func(a, b models.ZoneUsage) int {
		return cmp.Compare(b.Requests, a.Requests)
	})
	zones = zones[:min(len(zones), topZoneCount)]

	values := make([]float64, len(zones))
	labels := make([]string, len(zones))
	formatted := make([]string, len(zones))
	for i, z := range zones {
		values[i] = float64(z.Requests)
		labels[i] = z.ZoneName
		if z.IsPrimary {
			labels[i] += " ★"
		}
		formatted[i] = humanize.Comma(z.Requests)
	}
	return components.RenderBarChart(values, labels, formatted, width)
}

func renderReportLine(report *models.ThresholdReport) string {
	checked := "Last threshold check " + report.CheckedAt.Local().Format("15:04")
	switch {
	case report.SlackError != "":
		return styles.ErrorTextStyle.Render(checked + " · delivery failed: " + report.SlackError)
	case len(report.Alerts) > 0:
		return styles.WarningTextStyle.Render(fmt.Sprintf("%s · %d metric(s) at or above 90%%", checked, len(report.Alerts)))
	default:
		return styles.SuccessTextStyle.Render(checked + " · all metrics below 90%")
	}
}
