// Package addons derives the usage of optional paid features.
package addons

import (
	"context"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/usage"
)

// BotSource answers bot score range queries.
type BotSource interface {
	QueryBotTotals(ctx context.Context, zoneID string, since, until time.Time, r models.BotScoreRange) (cloudflare.Count, error)
}

// ZoneLister returns the eligible zones of an account.
type ZoneLister interface {
	Zones(ctx context.Context, accountID string) ([]models.Zone, error)
}

// Service computes add-on metrics for single accounts.
type Service struct {
	bots   BotSource
	zones  ZoneLister
	cache  *cache.Cache
	scores models.BotScoreRange
}

// New creates a service. Bot Management counts the likely-human score range.
func New(bots BotSource, zones ZoneLister, c *cache.Cache) *Service {
	return &Service{bots: bots, zones: zones, cache: c, scores: models.LikelyHumanBotScores}
}

// ZoneFiltered derives a zone-filtered add-on from already fetched account
// metrics without querying Cloudflare. It returns nil when the add-on is
// disabled, has no zones configured or none of them belong to the account.
func (s *Service) ZoneFiltered(ctx context.Context, account *models.AccountMetrics, kind models.AddonType, cfg models.AddonService, now time.Time) *models.AddonMetrics {
	if account == nil || !cfg.Enabled || len(cfg.Zones) == 0 {
		return nil
	}

	set := cfg.ZoneSet()
	current := models.FilterZones(account.ZoneBreakdown.Zones, set)
	previous := models.FilterZones(account.PreviousMonthZoneBreakdown.Zones, set)
	if len(current) == 0 && len(previous) == 0 {
		return nil
	}

	currentStart, previousStart := usage.MonthBounds(now)
	m := &models.AddonMetrics{
		Type:      kind,
		AccountID: account.AccountID,
		Enabled:   true,
		Threshold: cfg.Threshold,
		Current: models.AddonUsage{
			Metric:     sumRequests(current),
			Zones:      current,
			Confidence: account.Current.Confidence.Requests.Add(nil),
		},
		Previous: models.AddonUsage{
			Metric: sumRequests(previous),
			Zones:  previous,
		},
	}

	var prevSnap *models.AddonSnapshot
	if len(account.PreviousMonthZoneBreakdown.Zones) > 0 {
		prevSnap = &models.AddonSnapshot{
			Month:     models.MonthKey(previousStart),
			Timestamp: previousStart,
			Metric:    m.Previous.Metric,
			Zones:     previous,
		}
		if usage.MonthClosed(now) {
			s.persistMonth(ctx, kind, account.AccountID, *prevSnap)
		}
	}

	history := s.history(ctx, kind, account.AccountID)
	m.TimeSeries = buildSeries(history, prevSnap, models.AddonPoint{
		Month:     models.MonthKey(currentStart),
		Timestamp: currentStart,
		Requests:  m.Current.Metric,
	})

	return m
}

func sumRequests(zones []models.ZoneUsage) int64 {
	var total int64
	for _, z := range zones {
		total += z.Requests
	}
	return total
}

// persistMonth stores a closed add-on month once. A new entry invalidates the
// memoized history.
func (s *Service) persistMonth(ctx context.Context, kind models.AddonType, accountID string, snap models.AddonSnapshot) {
	key := cache.MonthlyAddonStatsKey(kind, accountID, snap.Month)
	written, err := s.cache.PutIfAbsent(ctx, key, snap, cache.Monthly)
	if err != nil {
		logger.Warn("failed to persist add-on month", "addon", kind, "account", accountID, "month", snap.Month, "error", err)
		return
	}
	if !written {
		return
	}
	if err := s.cache.Delete(ctx, cache.HistoricalAddonKey(kind, accountID)); err != nil {
		logger.Warn("failed to invalidate add-on history", "addon", kind, "account", accountID, "error", err)
	}
}

// history returns the persisted closed months of an add-on, memoized for six
// hours. Scan failures are logged and yield an empty history.
func (s *Service) history(ctx context.Context, kind models.AddonType, accountID string) []models.AddonPoint {
	key := cache.HistoricalAddonKey(kind, accountID)
	policy := cache.Historical
	if points, ok := cache.Get[[]models.AddonPoint](ctx, s.cache, key, policy); ok {
		return points
	}

	snaps, err := cache.Scan[models.AddonSnapshot](ctx, s.cache, cache.MonthlyAddonStatsPrefix(kind, accountID), cache.Monthly)
	if err != nil {
		logger.Warn("add-on history unavailable", "addon", kind, "account", accountID, "error", err)
		return nil
	}

	points := make([]models.AddonPoint, 0, len(snaps))
	for _, snap := range snaps {
		points = append(points, snap.Point())
	}
	models.SortAddonSeries(points)

	if err := s.cache.Put(ctx, key, points, policy); err != nil {
		logger.Warn("failed to memoize add-on history", "addon", kind, "account", accountID, "error", err)
	}
	return points
}

func buildSeries(history []models.AddonPoint, previous *models.AddonSnapshot, current models.AddonPoint) []models.AddonPoint {
	byMonth := make(map[string]models.AddonPoint, len(history)+2)
	for _, p := range history {
		byMonth[p.Month] = p
	}
	if previous != nil {
		byMonth[previous.Month] = previous.Point()
	}
	byMonth[current.Month] = current

	series := make([]models.AddonPoint, 0, len(byMonth))
	for _, p := range byMonth {
		series = append(series, p)
	}
	models.SortAddonSeries(series)
	return series
}
