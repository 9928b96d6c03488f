package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare/cftest"
	"github.com/j-veylop/cf-usage-dashboard/internal/config"
	"github.com/j-veylop/cf-usage-dashboard/internal/kv"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/alerts"
	"github.com/j-veylop/cf-usage-dashboard/internal/services/settings"
)

type managerFixture struct {
	mgr   *Manager
	fake  *cftest.Fake
	clock *clockwork.FakeClock
}

func newTestManager(t *testing.T) *managerFixture {
	t.Helper()

	fake := cftest.New()
	fake.Names["acc1"] = "One"
	fake.AddZone("acc1", "z1", "one.example")
	fake.AddZone("acc1", "z2", "two.example")
	fake.SetHTTP("2025-03", "z1", 900, 1000)
	fake.SetHTTP("2025-03", "z2", 100, 500)
	fake.SetDNS("2025-03", "z1", 7)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	cfg := &config.Config{
		DashboardUser:   "default",
		DashboardURL:    "http://localhost:8080",
		PreWarmInterval: 6 * time.Hour,
	}

	mgr := NewManagerWithOptions(cfg, Options{Store: kv.NewMemoryStore(), Source: fake, Clock: clock})
	t.Cleanup(func() {
		if err := mgr.Close(); err != nil {
			t.Logf("Close() failed: %v", err)
		}
	})
	return &managerFixture{mgr: mgr, fake: fake, clock: clock}
}

func (f *managerFixture) configure(t *testing.T, mutate func(*models.Settings)) {
	t.Helper()
	s := models.DefaultSettings()
	s.AccountIDs = []string{"acc1"}
	if mutate != nil {
		mutate(s)
	}
	if err := f.mgr.SaveSettings(context.Background(), s); err != nil {
		t.Fatalf("SaveSettings() failed: %v", err)
	}
}

func waitForEvent[T ServiceEvent](t *testing.T, ch <-chan ServiceEvent) T {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("event channel closed")
			}
			if typed, ok := ev.(T); ok {
				return typed
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestManager_NotConfigured(t *testing.T) {
	f := newTestManager(t)
	ctx := context.Background()

	if _, err := f.mgr.Metrics(ctx, models.Phase3); !errors.Is(err, settings.ErrNotConfigured) {
		t.Errorf("Metrics() error = %v, want ErrNotConfigured", err)
	}
	if _, err := f.mgr.PreWarm(ctx); !errors.Is(err, settings.ErrNotConfigured) {
		t.Errorf("PreWarm() error = %v, want ErrNotConfigured", err)
	}
	if _, err := f.mgr.Zones(ctx); !errors.Is(err, settings.ErrNotConfigured) {
		t.Errorf("Zones() error = %v, want ErrNotConfigured", err)
	}
}

func TestManager_MetricsAndEvents(t *testing.T) {
	f := newTestManager(t)
	ch, _ := f.mgr.Subscribe()

	f.configure(t, nil)
	changed := waitForEvent[SettingsChangedEvent](t, ch)
	if len(changed.Settings.AccountIDs) != 1 {
		t.Errorf("SettingsChangedEvent = %+v", changed.Settings)
	}

	resp, err := f.mgr.Metrics(context.Background(), models.Phase3)
	if err != nil {
		t.Fatalf("Metrics() failed: %v", err)
	}
	if resp.Core.Current.Requests != 1000 || resp.Core.Current.DNSQueries != 7 {
		t.Errorf("Current = %+v", resp.Core.Current.UsageTotals)
	}

	updated := waitForEvent[MetricsUpdatedEvent](t, ch)
	if updated.Response != resp {
		t.Error("MetricsUpdatedEvent should carry the built response")
	}

	f.mgr.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("Unsubscribe() should close the channel")
	}
}

func TestManager_Zones(t *testing.T) {
	f := newTestManager(t)
	f.configure(t, func(s *models.Settings) { s.AccountIDs = []string{"acc1", "broken"} })
	f.fake.Fail(f.fake.FailZones, "broken", true)

	got, err := f.mgr.Zones(context.Background())
	if err != nil {
		t.Fatalf("Zones() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Zones() = %+v", got)
	}
	if got[0].AccountID != "acc1" || got[0].AccountName != "One" || len(got[0].Zones) != 2 {
		t.Errorf("acc1 = %+v", got[0])
	}
	if got[1].AccountID != "broken" || got[1].Error == "" || len(got[1].Zones) != 0 {
		t.Errorf("broken = %+v", got[1])
	}
}

func TestManager_PreWarmServesCached(t *testing.T) {
	f := newTestManager(t)
	f.configure(t, nil)
	ctx := context.Background()

	if _, err := f.mgr.PreWarm(ctx); err != nil {
		t.Fatalf("PreWarm() failed: %v", err)
	}

	resp, err := f.mgr.Metrics(ctx, models.Phase1)
	if err != nil {
		t.Fatalf("Metrics() failed: %v", err)
	}
	if resp.Phase != models.PhaseCached || resp.Core.Current.Requests != 1000 {
		t.Errorf("Metrics() = phase %q requests %d, want cached snapshot", resp.Phase, resp.Core.Current.Requests)
	}
}

func TestManager_CheckThresholds(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newTestManager(t)
	ctx := context.Background()

	f.configure(t, nil)
	if _, err := f.mgr.CheckThresholds(ctx, true); !errors.Is(err, alerts.ErrNoWebhook) {
		t.Errorf("CheckThresholds(test) error = %v, want ErrNoWebhook", err)
	}

	threshold := int64(1000)
	f.configure(t, func(s *models.Settings) {
		s.AlertsEnabled = true
		s.SlackWebhook = srv.URL
		s.ApplicationServices.Core.ThresholdRequests = &threshold
	})

	report, err := f.mgr.CheckThresholds(ctx, false)
	if err != nil {
		t.Fatalf("CheckThresholds() failed: %v", err)
	}
	if len(report.Notified) != 1 || report.Notified[0].MetricKey != alerts.MetricRequests || !report.SlackSent {
		t.Errorf("report = %+v", report)
	}

	report, err = f.mgr.CheckThresholds(ctx, true)
	if err != nil {
		t.Fatalf("CheckThresholds(test) failed: %v", err)
	}
	if !report.Test || posts.Load() != 2 {
		t.Errorf("test report = %+v, posts = %d", report, posts.Load())
	}
}

func TestManager_WarmLoop(t *testing.T) {
	f := newTestManager(t)
	f.configure(t, nil)
	ch, _ := f.mgr.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.mgr.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	first := waitForEvent[PreWarmEvent](t, ch)
	if first.Error != nil || first.Response == nil {
		t.Fatalf("first pre-warm = %+v", first)
	}

	if err := f.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext() failed: %v", err)
	}
	f.clock.Advance(6 * time.Hour)

	second := waitForEvent[PreWarmEvent](t, ch)
	if second.Error != nil || second.Response == nil {
		t.Fatalf("second pre-warm = %+v", second)
	}
	if !second.Response.GeneratedAt.After(first.Response.GeneratedAt) {
		t.Errorf("second snapshot generated at %v, want after %v", second.Response.GeneratedAt, first.Response.GeneratedAt)
	}
}
