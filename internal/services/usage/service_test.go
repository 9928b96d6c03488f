package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/j-veylop/cf-usage-dashboard/internal/cache"
	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare/cftest"
	"github.com/j-veylop/cf-usage-dashboard/internal/kv"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

const gib = int64(1024 * 1024 * 1024)

var (
	march = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	feb   = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc   *Service
	fake  *cftest.Fake
	cache *cache.Cache
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	store := kv.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	clock := clockwork.NewFakeClockAt(now)
	c := cache.New(store, clock)
	fake := cftest.New()

	fake.Names["acc1"] = "Acme"
	fake.AddZone("acc1", "z1", "big.example")
	fake.AddZone("acc1", "z2", "small.example")

	fake.SetHTTP("2025-03", "z1", 100, 60*gib)
	fake.SetHTTP("2025-03", "z2", 10, 1000)
	fake.SetDNS("2025-03", "z1", 5)
	fake.SetDNS("2025-03", "z2", 7)

	fake.SetHTTP("2025-02", "z1", 50, 10)
	fake.SetDNS("2025-02", "z1", 1)
	fake.SetDNS("2025-02", "z2", 2)

	return &fixture{svc: New(fake, c), fake: fake, cache: c, clock: clock}
}

func (f *fixture) fetch(t *testing.T, opts FetchOptions) *models.AccountMetrics {
	t.Helper()
	m, err := f.svc.FetchAccount(context.Background(), "acc1", f.clock.Now(), opts)
	if err != nil {
		t.Fatalf("FetchAccount() error = %v", err)
	}
	return m
}

func TestFetchAccount_ComputesCurrentAndPrevious(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	m := f.fetch(t, FetchOptions{})

	if m.AccountName != "Acme" {
		t.Errorf("AccountName = %q, want Acme", m.AccountName)
	}

	wantCurrent := models.UsageTotals{Requests: 110, Bytes: 60*gib + 1000, DNSQueries: 12}
	if diff := cmp.Diff(wantCurrent, m.Current.UsageTotals); diff != "" {
		t.Errorf("Current mismatch (-want +got):\n%s", diff)
	}
	if m.Current.UsageTotals != m.ZoneBreakdown.Totals() {
		t.Errorf("current totals %+v differ from zone sums %+v", m.Current.UsageTotals, m.ZoneBreakdown.Totals())
	}
	if m.ZoneBreakdown.PrimaryCount != 1 || m.ZoneBreakdown.SecondaryCount != 1 {
		t.Errorf("ZoneBreakdown counts = %d/%d, want 1/1", m.ZoneBreakdown.PrimaryCount, m.ZoneBreakdown.SecondaryCount)
	}
	if !m.ZoneBreakdown.Zones[0].IsPrimary || m.ZoneBreakdown.Zones[1].IsPrimary {
		t.Errorf("zone classification = %+v", m.ZoneBreakdown.Zones)
	}

	if pct, ok := m.Current.Confidence.Requests.Percent(); !ok || pct != 100 {
		t.Errorf("requests confidence = %v, %v", pct, ok)
	}
	if m.Current.Confidence.DNSQueries == nil || m.Current.Confidence.DNSQueries.Estimate != 12 {
		t.Errorf("dns confidence = %+v", m.Current.Confidence.DNSQueries)
	}

	wantPrevious := models.UsageTotals{Requests: 50, Bytes: 10, DNSQueries: 3}
	if diff := cmp.Diff(wantPrevious, m.Previous); diff != "" {
		t.Errorf("Previous mismatch (-want +got):\n%s", diff)
	}
	if len(m.PreviousMonthZoneBreakdown.Zones) != 2 {
		t.Errorf("PreviousMonthZoneBreakdown = %+v", m.PreviousMonthZoneBreakdown)
	}

	wantSeries := []models.TimeSeriesPoint{
		{Month: "2025-02", Timestamp: feb, Requests: 50, Bytes: 10, DNSQueries: 3},
		{Month: "2025-03", Timestamp: march, Requests: 110, Bytes: 60*gib + 1000, DNSQueries: 12},
	}
	if diff := cmp.Diff(wantSeries, m.TimeSeries); diff != "" {
		t.Errorf("TimeSeries mismatch (-want +got):\n%s", diff)
	}

	snap, ok := cache.Get[models.MonthlySnapshot](context.Background(), f.cache, "monthly-stats:acc1:2025-02", cache.Monthly)
	if !ok {
		t.Fatal("closed month was not persisted")
	}
	if snap.DNSQueries == nil || *snap.DNSQueries != 3 {
		t.Errorf("persisted DNSQueries = %v", snap.DNSQueries)
	}

	if got := f.fake.Calls("http"); got != 2 {
		t.Errorf("http queries = %d, want 2", got)
	}
	if got := f.fake.Calls("dns"); got != 4 {
		t.Errorf("dns queries = %d, want 4", got)
	}
}

func TestFetchAccount_CurrentMonthCache(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	first := f.fetch(t, FetchOptions{})
	f.fake.ResetCalls()

	f.clock.Advance(9 * time.Minute)
	second := f.fetch(t, FetchOptions{})
	if f.fake.Calls("http")+f.fake.Calls("dns")+f.fake.Calls("zones") != 0 {
		t.Error("fresh cache entry should skip every query")
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached metrics mismatch (-want +got):\n%s", diff)
	}

	f.clock.Advance(time.Minute)
	f.fetch(t, FetchOptions{})
	if got := f.fake.Calls("http"); got != 1 {
		t.Errorf("http queries after expiry = %d, want 1 (closed month is cached)", got)
	}
	if got := f.fake.Calls("zones"); got != 0 {
		t.Errorf("zone discovery should stay cached for an hour, got %d calls", got)
	}
}

func TestFetchAccount_ZeroZones(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))

	m, err := f.svc.FetchAccount(context.Background(), "empty", f.clock.Now(), FetchOptions{})
	if err != nil {
		t.Fatalf("FetchAccount() error = %v", err)
	}

	if diff := cmp.Diff(models.EmptyAccountMetrics("empty"), m); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
	if f.fake.Calls("zones") != 1 {
		t.Errorf("zone discovery calls = %d, want 1", f.fake.Calls("zones"))
	}
	for _, kind := range []string{"http", "dns", "account"} {
		if got := f.fake.Calls(kind); got != 0 {
			t.Errorf("%s queries = %d, want 0", kind, got)
		}
	}
}

func TestFetchAccount_DNSFailureDegrades(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	f.fake.Fail(f.fake.FailDNS, "z2", true)

	m := f.fetch(t, FetchOptions{})
	if m.Current.DNSQueries != 5 {
		t.Errorf("Current.DNSQueries = %d, want 5", m.Current.DNSQueries)
	}
	if m.ZoneBreakdown.Zones[0].DNSUnavailable || !m.ZoneBreakdown.Zones[1].DNSUnavailable {
		t.Errorf("DNSUnavailable flags = %+v", m.ZoneBreakdown.Zones)
	}

	if m.Previous.DNSQueries != 1 {
		t.Errorf("Previous.DNSQueries = %d, want 1 from the zone that answered", m.Previous.DNSQueries)
	}
	var zoneSum int64
	for _, z := range m.PreviousMonthZoneBreakdown.Zones {
		zoneSum += z.DNSQueries
	}
	if zoneSum != m.Previous.DNSQueries {
		t.Errorf("previous zone DNS sum = %d, total = %d", zoneSum, m.Previous.DNSQueries)
	}
	for _, p := range m.TimeSeries {
		if p.Month == "2025-02" && p.DNSQueries != 1 {
			t.Errorf("2025-02 series DNS = %d, want 1", p.DNSQueries)
		}
	}

	ctx := context.Background()
	snap, ok := cache.Get[models.MonthlySnapshot](ctx, f.cache, "monthly-stats:acc1:2025-02", cache.Monthly)
	if !ok || !snap.DNSIncomplete || snap.DNSQueries == nil || *snap.DNSQueries != 1 {
		t.Fatalf("snapshot with partial DNS should keep the partial sum and be flagged, got %+v", snap)
	}

	f.fake.Fail(f.fake.FailDNS, "z2", false)
	f.clock.Advance(11 * time.Minute)
	m = f.fetch(t, FetchOptions{})

	if m.Previous.DNSQueries != 3 {
		t.Errorf("Previous.DNSQueries after backfill = %d, want 3", m.Previous.DNSQueries)
	}
	snap, _ = cache.Get[models.MonthlySnapshot](ctx, f.cache, "monthly-stats:acc1:2025-02", cache.Monthly)
	if snap.DNSIncomplete || snap.DNSQueries == nil || *snap.DNSQueries != 3 || snap.Zones[1].DNSQueries != 2 {
		t.Errorf("backfilled snapshot = %+v", snap)
	}
}

func TestFetchAccount_HTTPFailurePropagates(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	f.fake.Fail(f.fake.FailHTTP, "z1", true)

	_, err := f.svc.FetchAccount(context.Background(), "acc1", f.clock.Now(), FetchOptions{})
	if !errors.Is(err, cftest.ErrInjected) {
		t.Fatalf("FetchAccount() error = %v, want injected failure", err)
	}
}

func TestFetchAccount_ZoneDiscoveryFailure(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	f.fake.Fail(f.fake.FailZones, "acc1", true)

	if _, err := f.svc.FetchAccount(context.Background(), "acc1", f.clock.Now(), FetchOptions{}); err == nil {
		t.Fatal("FetchAccount() expected error")
	}
}

func TestFetchAccount_FirstOfMonthSkipsPrevious(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	m := f.fetch(t, FetchOptions{})

	if m.Previous != (models.UsageTotals{}) {
		t.Errorf("Previous = %+v, want zero", m.Previous)
	}
	if got := f.fake.Calls("http"); got != 1 {
		t.Errorf("http queries = %d, want 1", got)
	}
	if _, ok := cache.Get[models.MonthlySnapshot](context.Background(), f.cache, "monthly-stats:acc1:2025-02", cache.Monthly); ok {
		t.Error("previous month must not be persisted on the 1st")
	}
}

func TestFetchAccount_FirstOfMonthUsesStoredSnapshot(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	dns := int64(9)
	if err := f.cache.Put(context.Background(), "monthly-stats:acc1:2025-02", models.MonthlySnapshot{
		Month: "2025-02", Timestamp: feb, Requests: 77, Bytes: 88, DNSQueries: &dns, Zones: []models.ZoneUsage{},
	}, cache.Monthly); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	m := f.fetch(t, FetchOptions{})
	if want := (models.UsageTotals{Requests: 77, Bytes: 88, DNSQueries: 9}); m.Previous != want {
		t.Errorf("Previous = %+v, want %+v", m.Previous, want)
	}
}

func TestFetchAccount_SkipHistory(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))

	m := f.fetch(t, FetchOptions{SkipHistory: true})
	if len(m.TimeSeries) != 0 {
		t.Errorf("TimeSeries = %+v, want empty", m.TimeSeries)
	}
	if m.Current.Requests != 110 {
		t.Errorf("Current.Requests = %d, want 110", m.Current.Requests)
	}

	f.fake.ResetCalls()
	for range 3 {
		f.fetch(t, FetchOptions{SkipHistory: true})
	}
	full := f.fetch(t, FetchOptions{})
	for _, kind := range []string{"http", "dns"} {
		if got := f.fake.Calls(kind); got != 0 {
			t.Errorf("%s queries after the first fetch = %d, want 0", kind, got)
		}
	}
	if len(full.TimeSeries) != 2 {
		t.Errorf("full fetch TimeSeries = %+v, want previous and current month", full.TimeSeries)
	}
}

func TestHistory_MergesStoredMonths(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	dec := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []models.MonthlySnapshot{
		{Month: "2025-01", Timestamp: jan, Requests: 20},
		{Month: "2024-12", Timestamp: dec, Requests: 10},
	} {
		if err := f.cache.Put(ctx, cache.MonthlyStatsKey("acc1", s.Month), s, cache.Monthly); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	m := f.fetch(t, FetchOptions{})

	months := make([]string, 0, len(m.TimeSeries))
	for _, p := range m.TimeSeries {
		months = append(months, p.Month)
	}
	if diff := cmp.Diff([]string{"2024-12", "2025-01", "2025-02", "2025-03"}, months); diff != "" {
		t.Errorf("series months mismatch (-want +got):\n%s", diff)
	}

	history, err := f.svc.History(ctx, "acc1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Errorf("History() = %d points, want 3 closed months", len(history))
	}
}

func TestMonthBounds(t *testing.T) {
	current, previous := MonthBounds(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC))
	if !current.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("current = %v", current)
	}
	if !previous.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("previous = %v", previous)
	}
	if MonthClosed(time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)) {
		t.Error("MonthClosed() on the 1st should be false")
	}
	if !MonthClosed(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Error("MonthClosed() on the 2nd should be true")
	}
}
