// Package usage fetches and caches the usage of a single Cloudflare account.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare"
	"github.com/j-veylop/cf-usage-dashboard/internal/fanout"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/stats"
)

// Source is the analytics backend queried on cache misses.
type Source interface {
	ListZones(ctx context.Context, accountID string) ([]models.Zone, error)
	QueryHTTPTotals(ctx context.Context, zoneIDs []string, since, until time.Time) ([]cloudflare.ZoneTraffic, error)
	QueryDNSTotals(ctx context.Context, zoneID string, since, until time.Time) (cloudflare.Count, error)
	AccountName(ctx context.Context, accountID string) (string, error)
}

// FetchOptions tunes a single fetch.
type FetchOptions struct {
	// SkipHistory leaves the time series of the returned copy empty. The
	// cached record always carries the full history.
	SkipHistory bool
}

// Service fetches per-account metrics through the tiered cache.
type Service struct {
	source Source
	cache  *cache.Cache
}

// New creates a service reading from source and caching in c.
func New(source Source, c *cache.Cache) *Service {
	return &Service{source: source, cache: c}
}

// Cache returns the cache used by the service.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// MonthBounds returns the start of the month containing now and the start of
// the month before it, both in UTC.
func MonthBounds(now time.Time) (currentStart, previousStart time.Time) {
	now = now.UTC()
	currentStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return currentStart, currentStart.AddDate(0, -1, 0)
}

// MonthClosed reports whether the previous month is final upstream, which is
// the case from the 2nd of the current month.
func MonthClosed(now time.Time) bool {
	return now.UTC().Day() >= 2
}

// FetchAccount returns the current and previous month usage of an account
// with its monthly history.
func (s *Service) FetchAccount(ctx context.Context, accountID string, now time.Time, opts FetchOptions) (*models.AccountMetrics, error) {
	currentStart, previousStart := MonthBounds(now)
	cacheKey := cache.CurrentMonthKey(accountID, now)

	if cached, ok := cache.Get[models.AccountMetrics](ctx, s.cache, cacheKey, cache.CurrentMonth); ok {
		logger.Debug("current month cache hit", "account", accountID)
		return withOptions(&cached, opts), nil
	}

	zones, err := s.Zones(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		logger.Info("account has no eligible zones", "account", accountID)
		return models.EmptyAccountMetrics(accountID), nil
	}

	current, err := s.monthUsage(ctx, zones, currentStart, now)
	if err != nil {
		return nil, fmt.Errorf("account %s current month: %w", accountID, err)
	}

	metrics := &models.AccountMetrics{
		AccountID:                  accountID,
		AccountName:                s.accountName(ctx, accountID),
		Current:                    models.CurrentUsage{UsageTotals: current.breakdown.Totals(), Confidence: current.confidence},
		TimeSeries:                 []models.TimeSeriesPoint{},
		ZoneBreakdown:              current.breakdown,
		PreviousMonthZoneBreakdown: models.ZoneBreakdown{Zones: []models.ZoneUsage{}},
	}

	previous, err := s.previousMonth(ctx, accountID, zones, previousStart, currentStart, now)
	if err != nil {
		return nil, fmt.Errorf("account %s previous month: %w", accountID, err)
	}
	if previous != nil {
		metrics.Previous = previous.Totals()
		metrics.PreviousMonthZoneBreakdown = models.NewZoneBreakdown(previous.Zones)
	}

	history, err := s.History(ctx, accountID)
	if err != nil {
		logger.Warn("history unavailable", "account", accountID, "error", err)
		history = nil
	}
	metrics.TimeSeries = buildSeries(history, previous, models.TimeSeriesPoint{
		Month:      models.MonthKey(currentStart),
		Timestamp:  currentStart,
		Requests:   metrics.Current.Requests,
		Bytes:      metrics.Current.Bytes,
		DNSQueries: metrics.Current.DNSQueries,
	})

	if err := s.cache.Put(ctx, cacheKey, metrics, cache.CurrentMonth); err != nil {
		logger.Warn("failed to cache current month", "account", accountID, "error", err)
	}

	return withOptions(metrics, opts), nil
}

// withOptions returns m, or a shallow copy without history when opts asks
// for one.
func withOptions(m *models.AccountMetrics, opts FetchOptions) *models.AccountMetrics {
	if !opts.SkipHistory {
		return m
	}
	out := *m
	out.TimeSeries = []models.TimeSeriesPoint{}
	return &out
}

// Zones returns the eligible zones of an account, cached for an hour.
func (s *Service) Zones(ctx context.Context, accountID string) ([]models.Zone, error) {
	key := cache.ZonesKey(accountID)
	if zones, ok := cache.Get[[]models.Zone](ctx, s.cache, key, cache.Zones); ok {
		return zones, nil
	}

	all, err := s.source.ListZones(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("zone discovery for account %s: %w", accountID, err)
	}
	zones := cloudflare.EligibleZones(all)

	if err := s.cache.Put(ctx, key, zones, cache.Zones); err != nil {
		logger.Warn("failed to cache zones", "account", accountID, "error", err)
	}
	return zones, nil
}

func (s *Service) accountName(ctx context.Context, accountID string) string {
	name, err := s.source.AccountName(ctx, accountID)
	if err != nil {
		logger.Debug("account name lookup failed", "account", accountID, "error", err)
		return ""
	}
	return name
}

type monthResult struct {
	breakdown   models.ZoneBreakdown
	confidence  models.UsageConfidence
	dnsComplete bool
}

// monthUsage runs the account-wide HTTP query and the per-zone DNS queries for
// one date range. Zones without traffic are reported with zero usage.
func (s *Service) monthUsage(ctx context.Context, zones []models.Zone, since, until time.Time) (*monthResult, error) {
	ids := make([]string, len(zones))
	for i, z := range zones {
		ids[i] = z.ID
	}

	traffic, err := s.source.QueryHTTPTotals(ctx, ids, since, until)
	if err != nil {
		return nil, err
	}
	byZone := make(map[string]cloudflare.ZoneTraffic, len(traffic))
	for _, t := range traffic {
		byZone[t.ZoneID] = t
	}

	var conf models.UsageConfidence
	usage := make([]models.ZoneUsage, len(zones))
	for i, z := range zones {
		t := byZone[z.ID]
		usage[i] = models.ZoneUsage{ZoneID: z.ID, ZoneName: z.Name, Requests: t.Requests, Bytes: t.Bytes}
		conf.Requests = conf.Requests.Add(t.RequestsConfidence)
		conf.Bytes = conf.Bytes.Add(t.BytesConfidence)
	}

	dns, complete := s.zoneDNS(ctx, zones, since, until)
	for i := range usage {
		usage[i].DNSQueries = dns[i].Value.Value
		usage[i].DNSUnavailable = dns[i].Err != nil
		conf.DNSQueries = conf.DNSQueries.Add(dns[i].Value.Confidence)
	}

	return &monthResult{
		breakdown:   models.NewZoneBreakdown(usage),
		confidence:  conf,
		dnsComplete: complete,
	}, nil
}

// zoneDNS queries every zone in parallel. A failed zone counts as zero and is
// flagged; complete is false when any zone failed.
func (s *Service) zoneDNS(ctx context.Context, zones []models.Zone, since, until time.Time) ([]fanout.Result[cloudflare.Count], bool) {
	results := fanout.All(ctx, len(zones), func(ctx context.Context, i int) (cloudflare.Count, error) {
		return s.source.QueryDNSTotals(ctx, zones[i].ID, since, until)
	})

	complete := true
	for i, r := range results {
		if r.Err != nil {
			complete = false
			stats.ZoneDNSFailures.Inc()
			logger.Warn("dns query failed, counting zone as zero", "zone", zones[i].ID, "error", r.Err)
			results[i].Value = cloudflare.Count{}
		}
	}
	return results, complete
}
