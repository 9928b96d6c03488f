package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// UsageCollector exports the totals of the most recent full snapshot.
type UsageCollector struct {
	mu       sync.RWMutex
	snapshot *models.Response

	requests        *prometheus.Desc
	bandwidth       *prometheus.Desc
	dnsQueries      *prometheus.Desc
	zones           *prometheus.Desc
	confidence      *prometheus.Desc
	addonRequests   *prometheus.Desc
	snapshotAgeUnix *prometheus.Desc
}

// NewUsageCollector creates an empty collector.
func NewUsageCollector() *UsageCollector {
	return &UsageCollector{
		requests: prometheus.NewDesc(
			"cfud_account_requests",
			"Billable HTTP requests this month",
			[]string{"account", "month"}, nil,
		),
		bandwidth: prometheus.NewDesc(
			"cfud_account_bandwidth_bytes",
			"Billable bandwidth this month in bytes",
			[]string{"account", "month"}, nil,
		),
		dnsQueries: prometheus.NewDesc(
			"cfud_account_dns_queries",
			"DNS queries this month",
			[]string{"account", "month"}, nil,
		),
		zones: prometheus.NewDesc(
			"cfud_account_zones",
			"Enterprise zones by class",
			[]string{"account", "class"}, nil,
		),
		confidence: prometheus.NewDesc(
			"cfud_aggregate_confidence_percent",
			"Sampling confidence of the aggregate current month",
			[]string{"metric"}, nil,
		),
		addonRequests: prometheus.NewDesc(
			"cfud_addon_requests",
			"Add-on metric this month across all accounts",
			[]string{"addon"}, nil,
		),
		snapshotAgeUnix: prometheus.NewDesc(
			"cfud_snapshot_generated_timestamp_seconds",
			"Unix time the exported snapshot was generated",
			nil, nil,
		),
	}
}

// Update replaces the exported snapshot.
func (c *UsageCollector) Update(resp *models.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = resp
}

// Describe implements prometheus.Collector.
func (c *UsageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.bandwidth
	ch <- c.dnsQueries
	ch <- c.zones
	ch <- c.confidence
	ch <- c.addonRequests
	ch <- c.snapshotAgeUnix
}

// Collect implements prometheus.Collector.
func (c *UsageCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	resp := c.snapshot
	c.mu.RUnlock()

	if resp == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.snapshotAgeUnix, prometheus.GaugeValue, float64(resp.GeneratedAt.Unix()))
	month := models.MonthKey(resp.GeneratedAt)

	if core := resp.Core; core != nil {
		for _, acc := range core.PerAccountData {
			ch <- prometheus.MustNewConstMetric(c.requests, prometheus.GaugeValue, float64(acc.Current.Requests), acc.AccountID, month)
			ch <- prometheus.MustNewConstMetric(c.bandwidth, prometheus.GaugeValue, float64(acc.Current.Bytes), acc.AccountID, month)
			ch <- prometheus.MustNewConstMetric(c.dnsQueries, prometheus.GaugeValue, float64(acc.Current.DNSQueries), acc.AccountID, month)
			ch <- prometheus.MustNewConstMetric(c.zones, prometheus.GaugeValue, float64(acc.ZoneBreakdown.PrimaryCount), acc.AccountID, string(models.ZonePrimary))
			ch <- prometheus.MustNewConstMetric(c.zones, prometheus.GaugeValue, float64(acc.ZoneBreakdown.SecondaryCount), acc.AccountID, string(models.ZoneSecondary))
		}

		conf := map[string]*models.ConfidenceInterval{
			"requests":    core.Current.Confidence.Requests,
			"bytes":       core.Current.Confidence.Bytes,
			"dns_queries": core.Current.Confidence.DNSQueries,
		}
		for name, ci := range conf {
			if p, ok := ci.Percent(); ok {
				ch <- prometheus.MustNewConstMetric(c.confidence, prometheus.GaugeValue, p, name)
			}
		}
	}

	for _, t := range models.AllAddons {
		if m := resp.Addon(t); m != nil {
			ch <- prometheus.MustNewConstMetric(c.addonRequests, prometheus.GaugeValue, float64(m.Current.Metric), t.KeyName())
		}
	}
}
