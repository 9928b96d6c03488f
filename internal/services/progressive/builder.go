// Package progressive assembles dashboard responses in latency-ordered
// phases and maintains the pre-warmed snapshot.
package progressive

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/fanout"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/aggregate"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/usage"
	"github.com/j-veylop/cf-usage-dashboard/internal/stats"
)

var (
	// ErrNoAccounts is returned when the settings list no account.
	ErrNoAccounts = errors.New("no accounts configured")
	// ErrAllAccountsFailed is returned when no account could be loaded.
	ErrAllAccountsFailed = errors.New("failed to load every configured account")
)

// AccountFetcher loads per-account metrics.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, accountID string, now time.Time, opts usage.FetchOptions) (*models.AccountMetrics, error)
	Zones(ctx context.Context, accountID string) ([]models.Zone, error)
}

// AddonCalculator derives per-account add-on metrics.
type AddonCalculator interface {
	ZoneFiltered(ctx context.Context, account *models.AccountMetrics, kind models.AddonType, cfg models.AddonService, now time.Time) *models.AddonMetrics
	BotManagement(ctx context.Context, accountID string, cfg models.AddonService, now time.Time) (*models.AddonMetrics, error)
}

// Builder serves progressive responses.
type Builder struct {
	accounts AccountFetcher
	addons   AddonCalculator
	cache    *cache.Cache
	clock    clockwork.Clock
	group    singleflight.Group
}

// New creates a builder. The cache clock is used as the reference time.
func New(accounts AccountFetcher, addons AddonCalculator, c *cache.Cache) *Builder {
	return &Builder{accounts: accounts, addons: addons, cache: c, clock: c.Clock()}
}

// Get returns the pre-warmed snapshot when it covers every enabled feature,
// otherwise the requested phase.
func (b *Builder) Get(ctx context.Context, settings *models.Settings, phase models.Phase) (*models.Response, error) {
	if len(settings.AccountIDs) == 0 {
		return nil, ErrNoAccounts
	}

	if resp, ok := b.Cached(ctx, settings); ok {
		resp.Phase = models.PhaseCached
		resp.Loading = false
		return resp, nil
	}

	start := b.clock.Now()
	defer func() {
		stats.PhaseDuration.WithLabelValues(string(phase)).Observe(b.clock.Since(start).Seconds())
	}()

	switch phase {
	case models.Phase1:
		return b.phase1(ctx, settings)
	case models.Phase2:
		return b.phase2(ctx, settings)
	default:
		return b.full(ctx, settings)
	}
}

// Cached returns the pre-warmed snapshot of the account set if it is present
// and complete for the current settings.
func (b *Builder) Cached(ctx context.Context, settings *models.Settings) (*models.Response, bool) {
	resp, ok := cache.Get[models.Response](ctx, b.cache, cache.PreWarmedKey(settings.AccountIDs), cache.PreWarmed)
	if !ok {
		return nil, false
	}
	if !Complete(&resp, settings) {
		logger.Info("pre-warmed snapshot incomplete for current settings", "accounts", settings.AccountsKey())
		return nil, false
	}
	return &resp, true
}

// Complete reports whether resp carries data for every feature enabled in
// settings.
func Complete(resp *models.Response, settings *models.Settings) bool {
	if settings.ApplicationServices.Core.Enabled && resp.Core == nil {
		return false
	}
	for _, kind := range models.AllAddons {
		if !settings.AddonEnabled(kind) {
			continue
		}
		m := resp.Addon(kind)
		if m == nil || m.TimeSeries == nil || m.PerAccountData == nil {
			return false
		}
	}
	return true
}

// PreWarm computes the full response for every enabled feature and stores it
// for six hours. Concurrent calls for the same account set share one run.
func (b *Builder) PreWarm(ctx context.Context, settings *models.Settings) (*models.Response, error) {
	if len(settings.AccountIDs) == 0 {
		return nil, ErrNoAccounts
	}

	key := cache.PreWarmedKey(settings.AccountIDs)
	v, err, shared := b.group.Do(key, func() (any, error) {
		start := b.clock.Now()

		resp, err := b.full(ctx, settings)
		if err != nil {
			stats.PreWarmRuns.WithLabelValues("error").Inc()
			return nil, err
		}

		if err := b.cache.Put(ctx, key, resp, cache.PreWarmed); err != nil {
			stats.PreWarmRuns.WithLabelValues("error").Inc()
			return nil, err
		}

		stats.PreWarmRuns.WithLabelValues("ok").Inc()
		stats.PreWarmLastSuccess.Set(float64(b.clock.Now().Unix()))
		logger.Info("pre-warm complete", "accounts", settings.AccountsKey(),
			"zones", resp.ZoneCount, "duration", b.clock.Since(start).String())
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("pre-warm coalesced", "accounts", settings.AccountsKey())
	}
	return v.(*models.Response), nil
}

// phase1 only discovers zones.
func (b *Builder) phase1(ctx context.Context, settings *models.Settings) (*models.Response, error) {
	ids := settings.AccountIDs
	results := fanout.All(ctx, len(ids), func(ctx context.Context, i int) ([]models.Zone, error) {
		return b.accounts.Zones(ctx, ids[i])
	})

	zoneCount, ok := 0, 0
	for i, r := range results {
		if r.Err != nil {
			logger.Warn("zone discovery failed", "account", ids[i], "error", r.Err)
			continue
		}
		ok++
		zoneCount += len(r.Value)
	}
	if ok == 0 {
		return nil, ErrAllAccountsFailed
	}

	resp := b.newResponse(models.Phase1, true)
	resp.ZoneCount = zoneCount
	if settings.ApplicationServices.Core.Enabled {
		resp.Core = aggregate.Accounts(nil)
	}
	return resp, nil
}

// phase2 returns totals and zone breakdowns without history or add-ons.
func (b *Builder) phase2(ctx context.Context, settings *models.Settings) (*models.Response, error) {
	accounts, err := b.fetchAccounts(ctx, settings, usage.FetchOptions{SkipHistory: true})
	if err != nil {
		return nil, err
	}

	agg := aggregate.Accounts(accounts)
	resp := b.newResponse(models.Phase2, true)
	resp.ZoneCount = agg.ZoneBreakdown.ZoneCount()
	if settings.ApplicationServices.Core.Enabled {
		resp.Core = agg
	}
	return resp, nil
}

// full computes everything enabled in settings.
func (b *Builder) full(ctx context.Context, settings *models.Settings) (*models.Response, error) {
	now := b.clock.Now()
	resp := b.newResponse(models.Phase3, false)

	var accounts []*models.AccountMetrics
	if settings.NeedsAccountData() {
		var err error
		accounts, err = b.fetchAccounts(ctx, settings, usage.FetchOptions{})
		switch {
		case err == nil:
			agg := aggregate.Accounts(accounts)
			resp.ZoneCount = agg.ZoneBreakdown.ZoneCount()
			if settings.ApplicationServices.Core.Enabled {
				resp.Core = agg
			}
		case settings.ApplicationServices.Core.Enabled:
			return nil, err
		default:
			logger.Warn("no account data, skipping zone-filtered add-ons", "error", err)
		}
	}

	for _, kind := range models.ZoneFilteredAddons {
		cfg := settings.ApplicationServices.Addon(kind)
		if !cfg.Enabled || len(accounts) == 0 {
			continue
		}
		perAccount := make([]*models.AddonMetrics, 0, len(accounts))
		for _, account := range accounts {
			if m := b.addons.ZoneFiltered(ctx, account, kind, cfg, now); m != nil {
				perAccount = append(perAccount, m)
			}
		}
		resp.SetAddon(kind, combineAddon(kind, cfg, perAccount))
	}

	if cfg := settings.ApplicationServices.BotManagement; cfg.Enabled {
		resp.BotManagement = combineAddon(models.AddonBotManagement, cfg, b.botManagement(ctx, settings.AccountIDs, cfg, now))
	}

	return resp, nil
}

func (b *Builder) botManagement(ctx context.Context, ids []string, cfg models.AddonService, now time.Time) []*models.AddonMetrics {
	results := fanout.All(ctx, len(ids), func(ctx context.Context, i int) (*models.AddonMetrics, error) {
		return b.addons.BotManagement(ctx, ids[i], cfg, now)
	})

	perAccount := make([]*models.AddonMetrics, 0, len(ids))
	for i, r := range results {
		if r.Err != nil {
			logger.Warn("bot management unavailable", "account", ids[i], "error", r.Err)
			continue
		}
		if r.Value != nil {
			perAccount = append(perAccount, r.Value)
		}
	}
	return perAccount
}

// combineAddon aggregates an enabled add-on. With no applicable account the
// result is an empty record so the feature is still present.
func combineAddon(kind models.AddonType, cfg models.AddonService, perAccount []*models.AddonMetrics) *models.AddonMetrics {
	if m := aggregate.Addons(kind, cfg.Threshold, perAccount); m != nil {
		return m
	}
	return &models.AddonMetrics{
		Type:           kind,
		Enabled:        true,
		Threshold:      cfg.Threshold,
		Current:        models.AddonUsage{Zones: []models.ZoneUsage{}},
		Previous:       models.AddonUsage{Zones: []models.ZoneUsage{}},
		TimeSeries:     []models.AddonPoint{},
		PerAccountData: []*models.AddonMetrics{},
	}
}

// fetchAccounts loads every account in parallel and keeps the successes.
func (b *Builder) fetchAccounts(ctx context.Context, settings *models.Settings, opts usage.FetchOptions) ([]*models.AccountMetrics, error) {
	ids := settings.AccountIDs
	now := b.clock.Now()

	results := fanout.All(ctx, len(ids), func(ctx context.Context, i int) (*models.AccountMetrics, error) {
		return b.accounts.FetchAccount(ctx, ids[i], now, opts)
	})

	accounts := make([]*models.AccountMetrics, 0, len(ids))
	for i, r := range results {
		if r.Err != nil {
			stats.AccountFetchFailures.Inc()
			logger.Warn("account dropped from aggregate", "account", ids[i], "error", r.Err)
			continue
		}
		accounts = append(accounts, r.Value)
	}

	if len(accounts) == 0 {
		return nil, ErrAllAccountsFailed
	}
	return accounts, nil
}

func (b *Builder) newResponse(phase models.Phase, loading bool) *models.Response {
	return &models.Response{
		Phase:       phase,
		Loading:     loading,
		GeneratedAt: b.clock.Now().UTC(),
	}
}
