package usage

import (
	"context"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// previousMonth returns the closed month before the current one. A stored
// snapshot is reused; otherwise the month is computed and persisted once it
// has closed. Before the 2nd of the month with nothing stored it returns nil.
func (s *Service) previousMonth(ctx context.Context, accountID string, zones []models.Zone, since, until, now time.Time) (*models.MonthlySnapshot, error) {
	key := cache.MonthlyStatsKey(accountID, models.MonthKey(since))

	if snap, ok := cache.Get[models.MonthlySnapshot](ctx, s.cache, key, cache.Monthly); ok {
		if snap.NeedsDNSBackfill() && MonthClosed(now) {
			s.backfillDNS(ctx, accountID, key, &snap, since, until)
		}
		return &snap, nil
	}

	if !MonthClosed(now) {
		return nil, nil
	}

	result, err := s.monthUsage(ctx, zones, since, until)
	if err != nil {
		return nil, err
	}

	totals := result.breakdown.Totals()
	snap := models.MonthlySnapshot{
		Month:         models.MonthKey(since),
		Timestamp:     since,
		Requests:      totals.Requests,
		Bytes:         totals.Bytes,
		Zones:         result.breakdown.Zones,
		DNSQueries:    &totals.DNSQueries,
		DNSIncomplete: !result.dnsComplete,
	}

	s.persistMonth(ctx, accountID, key, snap)
	return &snap, nil
}

// backfillDNS completes the DNS counts of a snapshot stored without them or
// with some zones missing. The snapshot is only rewritten when every zone
// answered.
func (s *Service) backfillDNS(ctx context.Context, accountID, key string, snap *models.MonthlySnapshot, since, until time.Time) {
	zones := make([]models.Zone, len(snap.Zones))
	for i, z := range snap.Zones {
		zones[i] = models.Zone{ID: z.ZoneID, Name: z.ZoneName}
	}

	dns, complete := s.zoneDNS(ctx, zones, since, until)
	if !complete {
		logger.Info("dns backfill incomplete, keeping snapshot", "account", accountID, "month", snap.Month)
		return
	}

	var total int64
	for i := range snap.Zones {
		snap.Zones[i].DNSQueries = dns[i].Value.Value
		snap.Zones[i].DNSUnavailable = false
		total += dns[i].Value.Value
	}
	snap.DNSQueries = &total
	snap.DNSIncomplete = false

	logger.Info("backfilled dns queries", "account", accountID, "month", snap.Month, "dnsQueries", total)
	s.persistMonth(ctx, accountID, key, *snap)
}

// persistMonth writes a closed month and drops the memoized history so the
// next scan picks it up.
func (s *Service) persistMonth(ctx context.Context, accountID, key string, snap models.MonthlySnapshot) {
	if err := s.cache.Put(ctx, key, snap, cache.Monthly); err != nil {
		logger.Warn("failed to persist monthly snapshot", "account", accountID, "month", snap.Month, "error", err)
		return
	}
	if err := s.cache.Delete(ctx, cache.HistoricalKey(accountID)); err != nil {
		logger.Warn("failed to invalidate history", "account", accountID, "error", err)
	}
}

// History returns every persisted closed month of an account, oldest first.
// The scan is memoized for six hours.
func (s *Service) History(ctx context.Context, accountID string) ([]models.TimeSeriesPoint, error) {
	key := cache.HistoricalKey(accountID)
	if points, ok := cache.Get[[]models.TimeSeriesPoint](ctx, s.cache, key, cache.Historical); ok {
		return points, nil
	}

	snaps, err := cache.Scan[models.MonthlySnapshot](ctx, s.cache, cache.MonthlyStatsPrefix(accountID), cache.Monthly)
	if err != nil {
		return nil, err
	}

	points := make([]models.TimeSeriesPoint, 0, len(snaps))
	for _, snap := range snaps {
		points = append(points, snap.Point())
	}
	models.SortSeries(points)

	if err := s.cache.Put(ctx, key, points, cache.Historical); err != nil {
		logger.Warn("failed to memoize history", "account", accountID, "error", err)
	}
	return points, nil
}

// buildSeries merges the stored history with the freshly computed previous
// and current months. Later entries replace earlier ones for the same month.
func buildSeries(history []models.TimeSeriesPoint, previous *models.MonthlySnapshot, current models.TimeSeriesPoint) []models.TimeSeriesPoint {
	byMonth := make(map[string]models.TimeSeriesPoint, len(history)+2)
	for _, p := range history {
		byMonth[p.Month] = p
	}
	if previous != nil {
		byMonth[previous.Month] = previous.Point()
	}
	byMonth[current.Month] = current

	series := make([]models.TimeSeriesPoint, 0, len(byMonth))
	for _, p := range byMonth {
		series = append(series, p)
	}
	models.SortSeries(series)
	return series
}
