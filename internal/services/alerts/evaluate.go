// Package alerts compares dashboard snapshots against the configured
// thresholds and notifies once per metric per billing month.
package alerts

import "github.com/j-veylop/cf-usage-dashboard/internal/models"

// WarnPercent is the share of a threshold at which a metric is reported.
const WarnPercent = 90.0

// Metric keys used in alert records and dedup markers.
const (
	MetricZones          = "zones"
	MetricPrimaryZones   = "primaryZones"
	MetricSecondaryZones = "secondaryZones"
	MetricRequests       = "requests"
	MetricBandwidth      = "bandwidth"
	MetricDNSQueries     = "dnsQueries"
)

// Evaluate returns every metric of resp at or above WarnPercent of its
// threshold. Metrics without a threshold, or whose feature is disabled or
// absent from resp, are ignored.
func Evaluate(resp *models.Response, settings *models.Settings) []models.Alert {
	alerts := make([]models.Alert, 0)
	if resp == nil || settings == nil {
		return alerts
	}

	core := settings.ApplicationServices.Core
	if core.Enabled && resp.Core != nil {
		c := resp.Core
		candidates := []struct {
			key, name string
			current   int64
			threshold *int64
		}{
			{MetricZones, "Enterprise Zones", int64(c.ZoneBreakdown.ZoneCount()), core.ThresholdZones},
			{MetricPrimaryZones, "Primary Zones", int64(c.ZoneBreakdown.PrimaryCount), core.PrimaryZones},
			{MetricSecondaryZones, "Secondary Zones", int64(c.ZoneBreakdown.SecondaryCount), core.SecondaryZones},
			{MetricRequests, "HTTP Requests", c.Current.Requests, core.ThresholdRequests},
			{MetricBandwidth, "Data Transfer", c.Current.Bytes, core.ThresholdBandwidth},
			{MetricDNSQueries, "DNS Queries", c.Current.DNSQueries, core.ThresholdDNSQueries},
		}
		for _, m := range candidates {
			if a, ok := check(m.key, m.name, float64(m.current), m.threshold); ok {
				alerts = append(alerts, a)
			}
		}
	}

	for _, kind := range models.AllAddons {
		cfg := settings.ApplicationServices.Addon(kind)
		m := resp.Addon(kind)
		if !cfg.Enabled || m == nil {
			continue
		}
		if a, ok := check(string(kind), kind.DisplayName(), float64(m.Current.Metric), cfg.Threshold); ok {
			alerts = append(alerts, a)
		}
	}

	return alerts
}

func check(key, name string, current float64, threshold *int64) (models.Alert, bool) {
	if threshold == nil || *threshold <= 0 {
		return models.Alert{}, false
	}

	limit := float64(*threshold)
	pct := current / limit * 100
	if pct < WarnPercent {
		return models.Alert{}, false
	}

	return models.Alert{
		MetricKey:  key,
		Name:       name,
		Current:    current,
		Threshold:  limit,
		Percentage: pct,
	}, true
}
