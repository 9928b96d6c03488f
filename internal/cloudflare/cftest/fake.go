// Package cftest provides an in-memory analytics source for tests.
package cftest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/cloudflare"
	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// ErrInjected is returned for configured failures.
var ErrInjected = errors.New("injected failure")

// Fake answers queries from maps keyed by month ("YYYY-MM" of the range
// start) and zone ID.
type Fake struct {
	mu sync.Mutex

	Zones map[string][]models.Zone
	Names map[string]string
	HTTP  map[string]map[string]cloudflare.ZoneTraffic
	DNS   map[string]map[string]int64
	Bot   map[string]map[string]int64

	// FailZones lists accounts whose zone discovery fails.
	FailZones map[string]bool
	// FailHTTP lists zones that make the account HTTP query fail.
	FailHTTP map[string]bool
	// FailDNS lists zones whose DNS query fails.
	FailDNS map[string]bool
	// FailBot lists zones whose bot query fails.
	FailBot map[string]bool

	calls map[string]int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		Zones:     map[string][]models.Zone{},
		Names:     map[string]string{},
		HTTP:      map[string]map[string]cloudflare.ZoneTraffic{},
		DNS:       map[string]map[string]int64{},
		Bot:       map[string]map[string]int64{},
		FailZones: map[string]bool{},
		FailHTTP:  map[string]bool{},
		FailDNS:   map[string]bool{},
		FailBot:   map[string]bool{},
		calls:     map[string]int{},
	}
}

// AddZone registers an enterprise zone for an account.
func (f *Fake) AddZone(accountID, zoneID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Zones[accountID] = append(f.Zones[accountID], models.Zone{ID: zoneID, Name: name, Plan: cloudflare.EnterprisePlan})
}

// SetHTTP sets a zone's traffic for a month.
func (f *Fake) SetHTTP(month, zoneID string, requests, bytes int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HTTP[month] == nil {
		f.HTTP[month] = map[string]cloudflare.ZoneTraffic{}
	}
	f.HTTP[month][zoneID] = cloudflare.ZoneTraffic{
		ZoneID:             zoneID,
		Requests:           requests,
		Bytes:              bytes,
		RequestsConfidence: exact(requests),
		BytesConfidence:    exact(bytes),
	}
}

// SetDNS sets a zone's DNS queries for a month.
func (f *Fake) SetDNS(month, zoneID string, queries int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DNS[month] == nil {
		f.DNS[month] = map[string]int64{}
	}
	f.DNS[month][zoneID] = queries
}

// SetBot sets a zone's likely-human requests for a month.
func (f *Fake) SetBot(month, zoneID string, requests int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Bot[month] == nil {
		f.Bot[month] = map[string]int64{}
	}
	f.Bot[month][zoneID] = requests
}

// Fail toggles a failure set under the lock.
func (f *Fake) Fail(set map[string]bool, key string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set[key] = fail
}

// Calls returns how many queries of a kind were made: zones, http, dns, bot
// or account.
func (f *Fake) Calls(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

// ResetCalls clears the call counters.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = map[string]int{}
}

func exact(v int64) *models.ConfidenceInterval {
	if v == 0 {
		return nil
	}
	return &models.ConfidenceInterval{Estimate: float64(v), Lower: float64(v), Upper: float64(v), SampleSize: v}
}

// ListZones implements usage.Source.
func (f *Fake) ListZones(_ context.Context, accountID string) ([]models.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["zones"]++

	if f.FailZones[accountID] {
		return nil, ErrInjected
	}
	return append([]models.Zone(nil), f.Zones[accountID]...), nil
}

// QueryHTTPTotals implements usage.Source.
func (f *Fake) QueryHTTPTotals(_ context.Context, zoneIDs []string, since, _ time.Time) ([]cloudflare.ZoneTraffic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["http"]++

	month := models.MonthKey(since)
	traffic := make([]cloudflare.ZoneTraffic, 0, len(zoneIDs))
	for _, id := range zoneIDs {
		if f.FailHTTP[id] {
			return nil, ErrInjected
		}
		if t, ok := f.HTTP[month][id]; ok {
			traffic = append(traffic, t)
		}
	}
	return traffic, nil
}

// QueryDNSTotals implements usage.Source.
func (f *Fake) QueryDNSTotals(_ context.Context, zoneID string, since, _ time.Time) (cloudflare.Count, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["dns"]++

	if f.FailDNS[zoneID] {
		return cloudflare.Count{}, ErrInjected
	}
	v := f.DNS[models.MonthKey(since)][zoneID]
	return cloudflare.Count{Value: v, Confidence: exact(v)}, nil
}

// QueryBotTotals implements addons.BotSource.
func (f *Fake) QueryBotTotals(_ context.Context, zoneID string, since, _ time.Time, _ models.BotScoreRange) (cloudflare.Count, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["bot"]++

	if f.FailBot[zoneID] {
		return cloudflare.Count{}, ErrInjected
	}
	v := f.Bot[models.MonthKey(since)][zoneID]
	return cloudflare.Count{Value: v, Confidence: exact(v)}, nil
}

// AccountName implements usage.Source.
func (f *Fake) AccountName(_ context.Context, accountID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["account"]++

	name, ok := f.Names[accountID]
	if !ok {
		return "", ErrInjected
	}
	return name, nil
}
