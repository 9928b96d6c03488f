package alerts

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/stats"
)

// ErrNoWebhook is returned by SendTest when no webhook is configured.
var ErrNoWebhook = errors.New("no slack webhook configured")

const (
	alertTitle = "Cloudflare usage threshold alert"
	testTitle  = "Cloudflare usage dashboard test notification"
)

// marker is the value stored under an alert-sent key.
type marker struct {
	SentAt     time.Time `json:"sentAt"`
	Percentage float64   `json:"percentage"`
}

// Options configures a Service.
type Options struct {
	// DashboardURL is linked from every notification.
	DashboardURL string
	// HTTPClient is used for webhook delivery.
	HTTPClient *http.Client
	// Desktop is an optional second sink.
	Desktop Notifier
}

// Service evaluates thresholds and sends de-duplicated notifications.
type Service struct {
	cache        *cache.Cache
	clock        clockwork.Clock
	dashboardURL string
	httpClient   *http.Client
	desktop      Notifier
}

// New creates an alert service. The cache clock decides the billing month.
func New(c *cache.Cache, opts Options) *Service {
	return &Service{
		cache:        c,
		clock:        c.Clock(),
		dashboardURL: opts.DashboardURL,
		httpClient:   opts.HTTPClient,
		desktop:      opts.Desktop,
	}
}

// Check evaluates resp and notifies every breached metric that has not been
// notified yet this month. A marker is claimed before delivery and kept even
// if delivery fails, so each metric is sent at most once per month.
func (s *Service) Check(ctx context.Context, settings *models.Settings, resp *models.Response) (*models.ThresholdReport, error) {
	now := s.clock.Now()
	report := &models.ThresholdReport{
		CheckedAt: now.UTC(),
		Alerts:    Evaluate(resp, settings),
		Notified:  []models.Alert{},
	}
	for _, a := range report.Alerts {
		stats.AlertsTriggered.WithLabelValues(a.MetricKey).Inc()
	}

	if !settings.AlertsEnabled || len(report.Alerts) == 0 {
		return report, nil
	}
	if settings.SlackWebhook == "" && s.desktop == nil {
		report.SlackError = ErrNoWebhook.Error()
		return report, nil
	}

	accountsKey := settings.AccountsKey()
	month := models.MonthKey(now)
	for _, a := range report.Alerts {
		key := cache.AlertSentKey(accountsKey, a.MetricKey, month)
		claimed, err := s.cache.PutIfAbsent(ctx, key, marker{SentAt: now.UTC(), Percentage: a.Percentage}, cache.AlertMarker)
		if err != nil {
			logger.Warn("failed to claim alert marker", "key", key, "error", err)
			continue
		}
		if !claimed {
			logger.Debug("alert already sent this month", "metric", a.MetricKey, "month", month)
			continue
		}
		report.Notified = append(report.Notified, a)
	}

	if len(report.Notified) == 0 {
		return report, nil
	}

	s.deliver(ctx, settings, Message{
		Title:        alertTitle,
		Alerts:       report.Notified,
		CheckedAt:    report.CheckedAt,
		DashboardURL: s.dashboardURL,
	}, report)

	logger.Info("threshold alerts notified", "accounts", accountsKey,
		"count", len(report.Notified), "slack", report.SlackSent)
	return report, nil
}

// SendTest sends a fixed test message. It never reads or writes markers.
func (s *Service) SendTest(ctx context.Context, settings *models.Settings) (*models.ThresholdReport, error) {
	if settings.SlackWebhook == "" {
		return nil, ErrNoWebhook
	}

	report := &models.ThresholdReport{
		CheckedAt: s.clock.Now().UTC(),
		Alerts:    []models.Alert{},
		Notified:  []models.Alert{},
		Test:      true,
	}
	s.deliver(ctx, settings, Message{
		Title:        testTitle,
		CheckedAt:    report.CheckedAt,
		DashboardURL: s.dashboardURL,
		Test:         true,
	}, report)
	return report, nil
}

// deliver fans msg out to the configured sinks and records the webhook
// outcome in report. Failures are not retried.
func (s *Service) deliver(ctx context.Context, settings *models.Settings, msg Message, report *models.ThresholdReport) {
	if settings.SlackWebhook != "" {
		err := NewSlackNotifier(settings.SlackWebhook, s.httpClient).Notify(ctx, msg)
		if err != nil {
			stats.NotificationsSent.WithLabelValues("slack", "error").Inc()
			logger.Warn("slack notification failed", "error", err)
			report.SlackError = err.Error()
		} else {
			stats.NotificationsSent.WithLabelValues("slack", "ok").Inc()
			report.SlackSent = true
		}
	}

	if s.desktop != nil {
		if err := s.desktop.Notify(ctx, msg); err != nil {
			stats.NotificationsSent.WithLabelValues("desktop", "error").Inc()
			logger.Warn("desktop notification failed", "error", err)
			return
		}
		stats.NotificationsSent.WithLabelValues("desktop", "ok").Inc()
	}
}
