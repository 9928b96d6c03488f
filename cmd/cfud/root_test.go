package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "tui", "warm", "check-thresholds", "config", "version"} {
		assert.Contains(t, names, want)
	}

	check, _, err := root.Find([]string{"check-thresholds"})
	require.NoError(t, err)
	assert.NotNil(t, check.Flags().Lookup("test"))

	show, _, err := root.Find([]string{"config", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", show.Name())
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "cfud "), out.String())
}

func TestConfigImport_RequiresFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "import"})

	assert.Error(t, root.Execute())
}

func TestPrintReport(t *testing.T) {
	tests := []struct {
		name   string
		report *models.ThresholdReport
		want   []string
	}{
		{
			name:   "test message",
			report: &models.ThresholdReport{Test: true, SlackSent: true},
			want:   []string{"Test alert sent"},
		},
		{
			name:   "nothing near a threshold",
			report: &models.ThresholdReport{CheckedAt: time.Now()},
			want:   []string{"All metrics below 90% of their thresholds"},
		},
		{
			name: "breaches and delivery failure",
			report: &models.ThresholdReport{
				Alerts: []models.Alert{
					{MetricKey: alerts.MetricBandwidth, Name: "Data Transfer", Current: 2048, Threshold: 2048, Percentage: 100},
				},
				Notified:   []models.Alert{{MetricKey: alerts.MetricBandwidth}},
				SlackError: "status 500",
			},
			want: []string{"Data Transfer", "100.0%", "2.0 KiB of 2.0 KiB", "1 newly notified", "Slack delivery failed: status 500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			printReport(&out, tt.report)
			for _, want := range tt.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestPrintResponse(t *testing.T) {
	resp := &models.Response{
		Phase:     models.Phase3,
		ZoneCount: 3,
		Core: &models.AggregateMetrics{
			Current: models.CurrentUsage{UsageTotals: models.UsageTotals{Requests: 1234567, Bytes: 1 << 20, DNSQueries: 42}},
		},
		BotManagement: &models.AddonMetrics{Type: models.AddonBotManagement, Current: models.AddonUsage{Metric: 900}},
	}

	var out bytes.Buffer
	printResponse(&out, resp)

	for _, want := range []string{"3 zones", "1,234,567", "1.0 MiB", "42", "900"} {
		assert.Contains(t, out.String(), want)
	}
}
