// Package services provides service orchestration for the API, the CLI and
// the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare"
	"github.com/j-veylop/cf-usage-dashboard/internal/config"
	"github.com/j-veylop/cf-usage-dashboard/internal/fanout"
	"github.com/j-veylop/cf-usage-dashboard/internal/kv"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/addons"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/progressive"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/settings"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/usage"
	"github.com/j-veylop/cf-usage-dashboard/internal/stats"
)

type (
	// MetricsUpdatedEvent is emitted when a new response has been built.
	MetricsUpdatedEvent struct {
		Response *models.Response
	}

	// PreWarmEvent is emitted after every pre-warm run.
	PreWarmEvent struct {
		Response *models.Response
		Duration time.Duration
		Error    error
	}

	// ThresholdEvent is emitted after a threshold check.
	ThresholdEvent struct {
		Report *models.ThresholdReport
	}

	// SettingsChangedEvent is emitted when the configuration record changes.
	SettingsChangedEvent struct {
		Settings *models.Settings
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (MetricsUpdatedEvent) isServiceEvent()  {}
func (PreWarmEvent) isServiceEvent()         {}
func (ThresholdEvent) isServiceEvent()       {}
func (SettingsChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()           {}

// Source is everything the services need from the analytics API.
type Source interface {
	usage.Source
	addons.BotSource
}

// AccountZones is the eligible zone list of one account.
type AccountZones struct {
	AccountID   string        `json:"accountId"`
	AccountName string        `json:"accountName,omitempty"`
	Zones       []models.Zone `json:"zones"`
	Error       string        `json:"error,omitempty"`
}

// Options overrides the collaborators of a Manager.
type Options struct {
	Store   kv.Store
	Source  Source
	Clock   clockwork.Clock
	Desktop alerts.Notifier
}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	store       kv.Store
	cache       *cache.Cache
	clock       clockwork.Clock
	source      Source
	usage       *usage.Service
	addons      *addons.Service
	builder     *progressive.Builder
	alerts      *alerts.Service
	settings    *settings.Service
	collector   *stats.UsageCollector
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	subscribers []chan<- ServiceEvent
}

// NewManager creates a manager backed by the store and Cloudflare client
// selected by cfg.
func NewManager(ctx context.Context, cfg *config.Config) (*Manager, error) {
	clock := clockwork.NewRealClock()

	store, err := kv.Open(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}

	opts := Options{
		Store:  store,
		Source: cloudflare.New(cfg, nil),
		Clock:  clock,
	}
	if cfg.DesktopNotifications {
		opts.Desktop = alerts.DesktopNotifier{}
	}
	return NewManagerWithOptions(cfg, opts), nil
}

// NewManagerWithOptions wires a manager from explicit collaborators.
func NewManagerWithOptions(cfg *config.Config, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	c := cache.New(opts.Store, opts.Clock)
	usageSvc := usage.New(opts.Source, c)
	addonSvc := addons.New(opts.Source, usageSvc, c)

	m := &Manager{
		cfg:       cfg,
		store:     opts.Store,
		cache:     c,
		clock:     opts.Clock,
		source:    opts.Source,
		usage:     usageSvc,
		addons:    addonSvc,
		builder:   progressive.New(usageSvc, addonSvc, c),
		alerts:    alerts.New(c, alerts.Options{DashboardURL: cfg.DashboardURL, Desktop: opts.Desktop}),
		settings:  settings.New(c, cfg.DashboardUser),
		collector: stats.NewUsageCollector(),
		stopChan:  make(chan struct{}),
	}

	m.wg.Add(1)
	go m.routeEvents()

	return m
}

// routeEvents forwards settings events to subscribers.
func (m *Manager) routeEvents() {
	defer m.wg.Done()
	for {
		select {
		case event := <-m.settings.Events():
			m.handleSettingsEvent(event)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleSettingsEvent(event settings.Event) {
	switch event.Type {
	case settings.EventSaved, settings.EventImported:
		m.broadcast(SettingsChangedEvent{Settings: event.Settings})
	case settings.EventError:
		m.broadcast(ErrorEvent{Service: "settings", Error: event.Error})
	}
}

// Start launches the pre-warm and purge timers and, when configured, the
// settings file watcher. The first pre-warm runs immediately.
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.SettingsPath != "" {
		if err := m.settings.Watch(ctx, m.cfg.SettingsPath); err != nil {
			return fmt.Errorf("failed to watch settings file: %w", err)
		}
	}

	m.wg.Add(1)
	go m.warmLoop(ctx)

	if purger, ok := m.store.(kv.Purger); ok && m.cfg.PurgeInterval > 0 {
		m.wg.Add(1)
		go m.purgeLoop(ctx, purger)
	}
	return nil
}

func (m *Manager) warmLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := m.cfg.PreWarmInterval
	if interval <= 0 {
		interval = cache.PreWarmTTL
	}
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	m.scheduledWarm(ctx)
	for {
		select {
		case <-ticker.Chan():
			m.scheduledWarm(ctx)
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		}
	}
}

// scheduledWarm pre-warms and then checks thresholds when alerts are on.
func (m *Manager) scheduledWarm(ctx context.Context) {
	resp, err := m.PreWarm(ctx)
	if err != nil {
		if !errors.Is(err, settings.ErrNotConfigured) && !errors.Is(err, progressive.ErrNoAccounts) {
			logger.Warn("scheduled pre-warm failed", "error", err)
		}
		return
	}

	current, err := m.Settings(ctx)
	if err != nil || !current.AlertsEnabled {
		return
	}
	if _, err := m.checkResponse(ctx, current, resp); err != nil {
		logger.Warn("scheduled threshold check failed", "error", err)
	}
}

func (m *Manager) purgeLoop(ctx context.Context, purger kv.Purger) {
	defer m.wg.Done()

	ticker := m.clock.NewTicker(m.cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge of expired entries failed", "error", err)
				m.broadcast(ErrorEvent{Service: "store", Error: err})
				continue
			}
			if n > 0 {
				logger.Debug("purged expired entries", "count", n)
			}
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		}
	}
}

// Settings returns the stored configuration record.
func (m *Manager) Settings(ctx context.Context) (*models.Settings, error) {
	return m.settings.Load(ctx)
}

// SaveSettings validates and stores a configuration record.
func (m *Manager) SaveSettings(ctx context.Context, s *models.Settings) error {
	return m.settings.Save(ctx, s)
}

// ImportSettings stores the record found in a JSON file.
func (m *Manager) ImportSettings(ctx context.Context, path string) (*models.Settings, error) {
	return m.settings.ImportFile(ctx, path)
}

// Metrics returns the requested progressive phase for the configured
// account set.
func (m *Manager) Metrics(ctx context.Context, phase models.Phase) (*models.Response, error) {
	s, err := m.Settings(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := m.builder.Get(ctx, s, phase)
	if err != nil {
		m.broadcast(ErrorEvent{Service: "metrics", Error: err})
		return nil, err
	}
	if !resp.Loading {
		m.collector.Update(resp)
	}
	m.broadcast(MetricsUpdatedEvent{Response: resp})
	return resp, nil
}

// Zones lists the eligible zones of every configured account. Accounts whose
// discovery fails are returned with an error message.
func (m *Manager) Zones(ctx context.Context) ([]AccountZones, error) {
	s, err := m.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if len(s.AccountIDs) == 0 {
		return nil, progressive.ErrNoAccounts
	}

	ids := s.AccountIDs
	results := fanout.All(ctx, len(ids), func(ctx context.Context, i int) (AccountZones, error) {
		out := AccountZones{AccountID: ids[i]}
		zones, err := m.usage.Zones(ctx, ids[i])
		if err != nil {
			return out, err
		}
		out.Zones = zones
		if name, err := m.source.AccountName(ctx, ids[i]); err == nil {
			out.AccountName = name
		}
		return out, nil
	})

	accounts := make([]AccountZones, len(ids))
	for i, r := range results {
		accounts[i] = r.Value
		accounts[i].AccountID = ids[i]
		if r.Err != nil {
			accounts[i].Error = r.Err.Error()
			accounts[i].Zones = []models.Zone{}
		}
	}
	return accounts, nil
}

// PreWarm computes and stores the full snapshot of the configured account
// set.
func (m *Manager) PreWarm(ctx context.Context) (*models.Response, error) {
	s, err := m.Settings(ctx)
	if err != nil {
		return nil, err
	}

	start := m.clock.Now()
	resp, err := m.builder.PreWarm(ctx, s)
	m.broadcast(PreWarmEvent{Response: resp, Duration: m.clock.Since(start), Error: err})
	if err != nil {
		return nil, err
	}
	m.collector.Update(resp)
	return resp, nil
}

// CheckThresholds evaluates the current snapshot and notifies new breaches.
// With test set it only sends the fixed test message.
func (m *Manager) CheckThresholds(ctx context.Context, test bool) (*models.ThresholdReport, error) {
	s, err := m.Settings(ctx)
	if err != nil {
		return nil, err
	}

	if test {
		report, err := m.alerts.SendTest(ctx, s)
		if err != nil {
			return nil, err
		}
		m.broadcast(ThresholdEvent{Report: report})
		return report, nil
	}

	resp, err := m.builder.Get(ctx, s, models.Phase3)
	if err != nil {
		return nil, err
	}
	return m.checkResponse(ctx, s, resp)
}

func (m *Manager) checkResponse(ctx context.Context, s *models.Settings, resp *models.Response) (*models.ThresholdReport, error) {
	report, err := m.alerts.Check(ctx, s, resp)
	if err != nil {
		return nil, err
	}
	m.broadcast(ThresholdEvent{Report: report})
	return report, nil
}

// Collector exposes the latest full snapshot as Prometheus metrics.
func (m *Manager) Collector() *stats.UsageCollector {
	return m.collector
}

// Ready reports whether the store answers.
func (m *Manager) Ready(ctx context.Context) error {
	_, _, err := m.store.Get(ctx, cache.ConfigKey(m.cfg.DashboardUser))
	return err
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Config returns the process configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Close stops the timers and releases the store.
func (m *Manager) Close() error {
	var errs []error
	m.stopOnce.Do(func() {
		close(m.stopChan)
		if err := m.settings.Close(); err != nil {
			errs = append(errs, err)
		}
		m.wg.Wait()

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if err := m.store.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
