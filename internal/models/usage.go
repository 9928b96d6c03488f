package models

import (
	"sort"
	"time"
)

// MonthLayout is the month key format used in time series and cache keys.
const MonthLayout = "2006-01"

// MonthKey returns the YYYY-MM key for t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// UsageTotals holds raw usage counts for a billing month.
type UsageTotals struct {
	Requests   int64 `json:"requests"`
	Bytes      int64 `json:"bytes"`
	DNSQueries int64 `json:"dnsQueries"`
}

// Add sums two totals elementwise.
func (t UsageTotals) Add(other UsageTotals) UsageTotals {
	return UsageTotals{
		Requests:   t.Requests + other.Requests,
		Bytes:      t.Bytes + other.Bytes,
		DNSQueries: t.DNSQueries + other.DNSQueries,
	}
}

// UsageConfidence holds the sampling intervals behind the current month.
type UsageConfidence struct {
	Requests   *ConfidenceInterval `json:"requests"`
	Bytes      *ConfidenceInterval `json:"bytes"`
	DNSQueries *ConfidenceInterval `json:"dnsQueries"`
}

// Add sums every interval component-wise.
func (c UsageConfidence) Add(other UsageConfidence) UsageConfidence {
	return UsageConfidence{
		Requests:   c.Requests.Add(other.Requests),
		Bytes:      c.Bytes.Add(other.Bytes),
		DNSQueries: c.DNSQueries.Add(other.DNSQueries),
	}
}

// CurrentUsage is the in-progress month including sampling confidence.
type CurrentUsage struct {
	UsageTotals
	Confidence UsageConfidence `json:"confidence"`
}

// TimeSeriesPoint is one calendar month of usage.
type TimeSeriesPoint struct {
	Month      string    `json:"month"`
	Timestamp  time.Time `json:"timestamp"`
	Requests   int64     `json:"requests"`
	Bytes      int64     `json:"bytes"`
	DNSQueries int64     `json:"dnsQueries"`
}

// SortSeries orders points ascending by timestamp.
func SortSeries(points []TimeSeriesPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}

// AccountMetrics is one account's usage for the current and previous billing
// month plus its monthly history.
type AccountMetrics struct {
	AccountID                  string            `json:"accountId"`
	AccountName                string            `json:"accountName,omitempty"`
	Current                    CurrentUsage      `json:"current"`
	Previous                   UsageTotals       `json:"previous"`
	TimeSeries                 []TimeSeriesPoint `json:"timeSeries"`
	ZoneBreakdown              ZoneBreakdown     `json:"zoneBreakdown"`
	PreviousMonthZoneBreakdown ZoneBreakdown     `json:"previousMonthZoneBreakdown"`
}

// EmptyAccountMetrics returns all-zero metrics for an account without zones.
func EmptyAccountMetrics(accountID string) *AccountMetrics {
	return &AccountMetrics{
		AccountID:                  accountID,
		TimeSeries:                 []TimeSeriesPoint{},
		ZoneBreakdown:              ZoneBreakdown{Zones: []ZoneUsage{}},
		PreviousMonthZoneBreakdown: ZoneBreakdown{Zones: []ZoneUsage{}},
	}
}

// AggregateMetrics combines several accounts into one view.
type AggregateMetrics struct {
	Current                    CurrentUsage      `json:"current"`
	Previous                   UsageTotals       `json:"previous"`
	TimeSeries                 []TimeSeriesPoint `json:"timeSeries"`
	ZoneBreakdown              ZoneBreakdown     `json:"zoneBreakdown"`
	PreviousMonthZoneBreakdown ZoneBreakdown     `json:"previousMonthZoneBreakdown"`
	PerAccountData             []*AccountMetrics `json:"perAccountData"`
}

// MonthlySnapshot is a persisted closed billing month for one account.
type MonthlySnapshot struct {
	Month     string      `json:"month"`
	Timestamp time.Time   `json:"timestamp"`
	Requests  int64       `json:"requests"`
	Bytes     int64       `json:"bytes"`
	Zones     []ZoneUsage `json:"zones"`
	// DNSQueries is nil for snapshots written before DNS tracking existed.
	DNSQueries *int64 `json:"dnsQueries,omitempty"`
	// DNSIncomplete marks a DNS total missing the zones whose query failed.
	DNSIncomplete bool `json:"dnsIncomplete,omitempty"`
}

// NeedsDNSBackfill reports whether the DNS total lacks some zones.
func (s MonthlySnapshot) NeedsDNSBackfill() bool {
	return s.DNSQueries == nil || s.DNSIncomplete
}

// dnsTotal returns the stored DNS total, or the sum over zones when none was
// stored. Failed zones count as zero.
func (s MonthlySnapshot) dnsTotal() int64 {
	if s.DNSQueries != nil {
		return *s.DNSQueries
	}
	var total int64
	for _, z := range s.Zones {
		total += z.DNSQueries
	}
	return total
}

// Totals returns the snapshot's totals.
func (s MonthlySnapshot) Totals() UsageTotals {
	return UsageTotals{Requests: s.Requests, Bytes: s.Bytes, DNSQueries: s.dnsTotal()}
}

// Point converts the snapshot into a time series point.
func (s MonthlySnapshot) Point() TimeSeriesPoint {
	return TimeSeriesPoint{
		Month:      s.Month,
		Timestamp:  s.Timestamp,
		Requests:   s.Requests,
		Bytes:      s.Bytes,
		DNSQueries: s.dnsTotal(),
	}
}
