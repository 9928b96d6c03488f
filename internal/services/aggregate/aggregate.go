// Package aggregate merges per-account results into one cross-account view.
package aggregate

import "github.com/j-veylop/cf-usage-dashboard/internal/models"

// Accounts sums the metrics of several accounts. Confidence intervals are
// summed component-wise, time series are merged by month and zone lists are
// concatenated. The inputs are kept as PerAccountData.
func Accounts(accounts []*models.AccountMetrics) *models.AggregateMetrics {
	agg := &models.AggregateMetrics{
		TimeSeries:                 []models.TimeSeriesPoint{},
		ZoneBreakdown:              models.ZoneBreakdown{Zones: []models.ZoneUsage{}},
		PreviousMonthZoneBreakdown: models.ZoneBreakdown{Zones: []models.ZoneUsage{}},
		PerAccountData:             make([]*models.AccountMetrics, 0, len(accounts)),
	}

	series := make([][]models.TimeSeriesPoint, 0, len(accounts))
	for _, a := range accounts {
		if a == nil {
			continue
		}
		agg.Current.UsageTotals = agg.Current.UsageTotals.Add(a.Current.UsageTotals)
		agg.Current.Confidence = agg.Current.Confidence.Add(a.Current.Confidence)
		agg.Previous = agg.Previous.Add(a.Previous)
		agg.ZoneBreakdown = agg.ZoneBreakdown.Merge(a.ZoneBreakdown)
		agg.PreviousMonthZoneBreakdown = agg.PreviousMonthZoneBreakdown.Merge(a.PreviousMonthZoneBreakdown)
		agg.PerAccountData = append(agg.PerAccountData, a)
		series = append(series, a.TimeSeries)
	}

	agg.TimeSeries = MergeTimeSeries(series...)
	return agg
}

// MergeTimeSeries sums points that share a month and sorts the result by
// timestamp.
func MergeTimeSeries(series ...[]models.TimeSeriesPoint) []models.TimeSeriesPoint {
	byMonth := make(map[string]int)
	merged := make([]models.TimeSeriesPoint, 0)

	for _, s := range series {
		for _, p := range s {
			i, ok := byMonth[p.Month]
			if !ok {
				byMonth[p.Month] = len(merged)
				merged = append(merged, p)
				continue
			}
			merged[i].Requests += p.Requests
			merged[i].Bytes += p.Bytes
			merged[i].DNSQueries += p.DNSQueries
		}
	}

	models.SortSeries(merged)
	return merged
}

// MergeAddonSeries is MergeTimeSeries for add-on history.
func MergeAddonSeries(series ...[]models.AddonPoint) []models.AddonPoint {
	byMonth := make(map[string]int)
	merged := make([]models.AddonPoint, 0)

	for _, s := range series {
		for _, p := range s {
			i, ok := byMonth[p.Month]
			if !ok {
				byMonth[p.Month] = len(merged)
				merged = append(merged, p)
				continue
			}
			merged[i].Requests += p.Requests
		}
	}

	models.SortAddonSeries(merged)
	return merged
}

// Addons combines the per-account metrics of one add-on. It returns nil when
// no account has the add-on applicable. Bot Management zone lists are
// deduplicated by zone ID.
func Addons(kind models.AddonType, threshold *int64, perAccount []*models.AddonMetrics) *models.AddonMetrics {
	agg := &models.AddonMetrics{
		Type:           kind,
		Enabled:        true,
		Threshold:      threshold,
		Current:        models.AddonUsage{Zones: []models.ZoneUsage{}},
		Previous:       models.AddonUsage{Zones: []models.ZoneUsage{}},
		PerAccountData: make([]*models.AddonMetrics, 0, len(perAccount)),
	}

	series := make([][]models.AddonPoint, 0, len(perAccount))
	for _, m := range perAccount {
		if m == nil {
			continue
		}
		agg.Current.Metric += m.Current.Metric
		agg.Current.Zones = append(agg.Current.Zones, m.Current.Zones...)
		agg.Current.Confidence = agg.Current.Confidence.Add(m.Current.Confidence)
		agg.Previous.Metric += m.Previous.Metric
		agg.Previous.Zones = append(agg.Previous.Zones, m.Previous.Zones...)
		agg.PerAccountData = append(agg.PerAccountData, m)
		series = append(series, m.TimeSeries)
	}

	if len(agg.PerAccountData) == 0 {
		return nil
	}

	if kind == models.AddonBotManagement {
		agg.Current.Zones = models.DedupeZones(agg.Current.Zones)
		agg.Previous.Zones = models.DedupeZones(agg.Previous.Zones)
	}

	agg.TimeSeries = MergeAddonSeries(series...)
	return agg
}
