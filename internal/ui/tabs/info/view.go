package info

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/styles"
	"github.com/j-veylop/cf-usage-dashboard/internal/version"
)

// View renders the info tab.
func (m *Model) View() string {
	sections := []string{
		m.renderTitle(),
		m.renderConfigCard(),
		m.renderSettingsCard(),
		m.renderStatusCard(),
		m.renderAboutCard(),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the info tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Info")
	subtitle := styles.HelpStyle.Render("Configuration, alert settings and application information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	return min(max(m.width-6, 50), 90)
}

// renderConfigCard renders the process configuration card.
func (m *Model) renderConfigCard() string {
	rows := []string{styles.CardTitleStyle.Render("Configuration"), ""}

	if c := m.config; c != nil {
		rows = append(rows,
			renderRow("Credentials", c.AuthMethod()),
			renderRow("Storage", fmt.Sprintf("%s (%s)", c.Backend, c.StorageLocation())),
			renderRow("Dashboard user", c.DashboardUser),
			renderRow("Dashboard URL", c.DashboardURL),
			renderRow("API listen addr", c.ListenAddr),
			renderRow("Pre-warm every", c.PreWarmInterval.String()),
			renderRow("Desktop alerts", onOff(c.DesktopNotifications)),
		)
		if c.SettingsPath != "" {
			rows = append(rows, renderRow("Settings file", c.SettingsPath))
		}
		if c.LogPath != "" {
			rows = append(rows, renderRow("Log file", c.LogPath))
		}
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderSettingsCard renders the stored dashboard settings.
func (m *Model) renderSettingsCard() string {
	rows := []string{styles.CardTitleStyle.Render("Dashboard Settings"), ""}

	s := m.state.GetSettings()
	if s == nil {
		rows = append(rows, styles.HelpStyle.Render("No configuration record. Import one with: cfud config import <file>"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	rows = append(rows,
		renderRow("Accounts", fmt.Sprintf("%d", len(s.AccountIDs))),
		renderRow("Core services", onOff(s.ApplicationServices.Core.Enabled)),
	)
	for _, kind := range models.AllAddons {
		cfg := s.ApplicationServices.Addon(kind)
		value := onOff(cfg.Enabled)
		if cfg.Enabled && cfg.Threshold != nil {
			value += ", threshold " + humanize.Comma(*cfg.Threshold)
		}
		rows = append(rows, renderRow(kind.DisplayName(), value))
	}

	slack := "not configured"
	if s.SlackWebhook != "" {
		slack = "configured"
	}
	rows = append(rows,
		renderRow("Threshold alerts", onOff(s.AlertsEnabled)),
		renderRow("Slack webhook", slack),
	)

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderStatusCard renders the last pre-warm and threshold check.
func (m *Model) renderStatusCard() string {
	rows := []string{styles.CardTitleStyle.Render("Status"), ""}

	if at, took := m.state.GetPreWarm(); !at.IsZero() {
		rows = append(rows, renderRow("Last pre-warm", fmt.Sprintf("%s (took %s)", humanize.Time(at), took.Round(1e6))))
	} else {
		rows = append(rows, renderRow("Last pre-warm", "not in this session"))
	}

	report := m.state.GetReport()
	if report == nil {
		rows = append(rows, renderRow("Last check", "not in this session"))
		return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}

	rows = append(rows, renderRow("Last check", humanize.Time(report.CheckedAt)))
	if report.SlackError != "" {
		rows = append(rows, renderRow("Delivery", styles.ErrorTextStyle.Render(report.SlackError)))
	}
	for _, a := range report.Alerts {
		line := fmt.Sprintf("%s %.1f%% (%s of %s)", a.Name, a.Percentage,
			alerts.FormatValue(a.MetricKey, a.Current), alerts.FormatValue(a.MetricKey, a.Threshold))
		rows = append(rows, "  "+styles.WarningTextStyle.Render("▲ "+line))
	}
	if len(report.Alerts) == 0 {
		rows = append(rows, "  "+styles.SuccessTextStyle.Render("✓ all metrics below 90% of their thresholds"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderAboutCard renders the about/version information card.
func (m *Model) renderAboutCard() string {
	rows := []string{
		styles.CardTitleStyle.Render("About Cloudflare Usage Dashboard"),
		"",
		renderRow("Version", version.GetVersion()),
		renderRow("Build Date", version.GetDate()),
		renderRow("Git Commit", version.GetCommit()),
		renderRow("Go Version", runtime.Version()),
		renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)),
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderRow renders a key-value row.
func renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(strings.TrimSpace(value))
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
