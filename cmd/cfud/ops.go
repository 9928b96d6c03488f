package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
)

func newWarmCmd(verbose *bool) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Compute and store the full usage snapshot once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), *verbose, func(mgr *services.Manager) error {
				resp, err := mgr.PreWarm(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				printResponse(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func newCheckThresholdsCmd(verbose *bool) *cobra.Command {
	var test, asJSON bool

	cmd := &cobra.Command{
		Use:   "check-thresholds",
		Short: "Compare current usage with thresholds and send alerts",
		Long: `Compare current usage with the configured thresholds and send one
Slack message listing every metric that newly reached 90%. Each metric is
alerted at most once per month.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), *verbose, func(mgr *services.Manager) error {
				report, err := mgr.CheckThresholds(cmd.Context(), test)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&test, "test", false, "send a test message instead of checking usage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printResponse(w io.Writer, resp *models.Response) {
	fmt.Fprintf(w, "Snapshot generated %s for %d zones\n", resp.GeneratedAt.Format("2006-01-02 15:04:05"), resp.ZoneCount)
	if resp.Core != nil {
		cur := resp.Core.Current
		fmt.Fprintf(w, "  requests     %s\n", humanize.Comma(cur.Requests))
		fmt.Fprintf(w, "  bandwidth    %s\n", humanize.IBytes(uint64(max(cur.Bytes, 0))))
		fmt.Fprintf(w, "  dns queries  %s\n", humanize.Comma(cur.DNSQueries))
		fmt.Fprintf(w, "  accounts     %d\n", len(resp.Core.PerAccountData))
	}
	for _, kind := range models.AllAddons {
		if a := resp.Addon(kind); a != nil {
			fmt.Fprintf(w, "  %-12s %s\n", kind.DisplayName(), humanize.Comma(a.Current.Metric))
		}
	}
}

func printReport(w io.Writer, report *models.ThresholdReport) {
	switch {
	case report.Test:
		fmt.Fprintln(w, "Test alert sent")
	case len(report.Alerts) == 0:
		fmt.Fprintf(w, "All metrics below %.0f%% of their thresholds\n", alerts.WarnPercent)
	default:
		for _, a := range report.Alerts {
			fmt.Fprintf(w, "%-28s %6.1f%%  %s of %s\n", a.Name, a.Percentage,
				alerts.FormatValue(a.MetricKey, a.Current), alerts.FormatValue(a.MetricKey, a.Threshold))
		}
		fmt.Fprintf(w, "%d newly notified\n", len(report.Notified))
	}
	if report.SlackError != "" {
		fmt.Fprintf(w, "Slack delivery failed: %s\n", report.SlackError)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
