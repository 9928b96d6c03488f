package addons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare"
	"github.com/j-veylop/cf-usage-dashboard/internal/fanout"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/usage"
)

// ErrBotQueriesFailed is returned when no zone answered the bot query.
var ErrBotQueriesFailed = errors.New("every bot management zone query failed")

// BotManagement queries the likely-human traffic of each zone of an account.
// With no zones configured every eligible zone of the account is counted. It
// returns nil when the add-on is disabled or none of the configured zones
// belong to the account.
func (s *Service) BotManagement(ctx context.Context, accountID string, cfg models.AddonService, now time.Time) (*models.AddonMetrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	zones, err := s.zones.Zones(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(cfg.Zones) > 0 {
		set := cfg.ZoneSet()
		filtered := make([]models.Zone, 0, len(zones))
		for _, z := range zones {
			if _, ok := set[z.ID]; ok {
				filtered = append(filtered, z)
			}
		}
		zones = filtered
	}
	if len(zones) == 0 {
		return nil, nil
	}

	currentStart, previousStart := usage.MonthBounds(now)

	current, conf, complete := s.botMonth(ctx, zones, currentStart, now)
	if !complete && len(current) == 0 {
		return nil, fmt.Errorf("bot management for account %s: %w", accountID, ErrBotQueriesFailed)
	}

	m := &models.AddonMetrics{
		Type:      models.AddonBotManagement,
		AccountID: accountID,
		Enabled:   true,
		Threshold: cfg.Threshold,
		Current: models.AddonUsage{
			Metric:     sumRequests(current),
			Zones:      current,
			Confidence: conf,
		},
		Previous: models.AddonUsage{Zones: []models.ZoneUsage{}},
	}

	prevSnap := s.previousBotMonth(ctx, accountID, zones, previousStart, currentStart, now)
	if prevSnap != nil {
		m.Previous = models.AddonUsage{Metric: prevSnap.Metric, Zones: prevSnap.Zones}
	}

	history := s.history(ctx, models.AddonBotManagement, accountID)
	m.TimeSeries = buildSeries(history, prevSnap, models.AddonPoint{
		Month:     models.MonthKey(currentStart),
		Timestamp: currentStart,
		Requests:  m.Current.Metric,
	})

	return m, nil
}

// botMonth fans out one query per zone. Failed zones are logged and left out;
// complete is false when any zone failed.
func (s *Service) botMonth(ctx context.Context, zones []models.Zone, since, until time.Time) ([]models.ZoneUsage, *models.ConfidenceInterval, bool) {
	results := fanout.All(ctx, len(zones), func(ctx context.Context, i int) (cloudflare.Count, error) {
		return s.bots.QueryBotTotals(ctx, zones[i].ID, since, until, s.scores)
	})

	var conf *models.ConfidenceInterval
	usageByZone := make([]models.ZoneUsage, 0, len(zones))
	complete := true
	for i, r := range results {
		if r.Err != nil {
			complete = false
			logger.Warn("bot query failed, skipping zone", "zone", zones[i].ID, "error", r.Err)
			continue
		}
		usageByZone = append(usageByZone, models.ZoneUsage{
			ZoneID:   zones[i].ID,
			ZoneName: zones[i].Name,
			Requests: r.Value.Value,
		})
		conf = conf.Add(r.Value.Confidence)
	}

	return models.DedupeZones(usageByZone), conf, complete
}

// previousBotMonth returns the stored closed month or computes and stores it
// once the month has closed. Partial results are returned but not stored.
func (s *Service) previousBotMonth(ctx context.Context, accountID string, zones []models.Zone, since, until, now time.Time) *models.AddonSnapshot {
	month := models.MonthKey(since)
	key := cache.MonthlyAddonStatsKey(models.AddonBotManagement, accountID, month)

	if snap, ok := cache.Get[models.AddonSnapshot](ctx, s.cache, key, cache.Monthly); ok {
		return &snap
	}
	if !usage.MonthClosed(now) {
		return nil
	}

	zoneUsage, _, complete := s.botMonth(ctx, zones, since, until)
	snap := models.AddonSnapshot{
		Month:     month,
		Timestamp: since,
		Metric:    sumRequests(zoneUsage),
		Zones:     zoneUsage,
	}
	if complete {
		s.persistMonth(ctx, models.AddonBotManagement, accountID, snap)
	}
	return &snap
}
