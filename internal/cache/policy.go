package cache

import "time"

// SchemaVersion tags current-month payloads. Bump it whenever the shape of
// AccountMetrics changes so older entries read as misses.
const SchemaVersion = 3

// Lifetimes per family.
const (
	CurrentMonthTTL = 10 * time.Minute
	ZonesTTL        = time.Hour
	MonthlyTTL      = 365 * 24 * time.Hour
	HistoricalTTL   = 6 * time.Hour
	PreWarmTTL      = 6 * time.Hour
	AlertMarkerTTL  = 45 * 24 * time.Hour
)

// Policy describes how a family is read and written.
type Policy struct {
	// Family labels metrics and logs.
	Family string
	// Version must match the stored entry; zero disables the check.
	Version int
	// TTL is the store-level lifetime used by Put.
	TTL time.Duration
	// MaxAge rejects entries older than this even if the store still holds
	// them; zero disables the check.
	MaxAge time.Duration
}

var (
	// Config holds operator settings, which never expire.
	Config = Policy{Family: "config"}
	// CurrentMonth bounds upstream load to one query round per account per
	// ten minutes.
	CurrentMonth = Policy{Family: "current-month", Version: SchemaVersion, TTL: CurrentMonthTTL, MaxAge: CurrentMonthTTL}
	// Zones caches zone discovery for an hour.
	Zones = Policy{Family: "zones", TTL: ZonesTTL}
	// Monthly keeps closed months for a year.
	Monthly = Policy{Family: "monthly-stats", TTL: MonthlyTTL}
	// Historical memoizes the scan over closed months.
	Historical = Policy{Family: "historical-data", TTL: HistoricalTTL, MaxAge: HistoricalTTL}
	// PreWarmed holds full snapshots between scheduled warms.
	PreWarmed = Policy{Family: "pre-warmed", Version: SchemaVersion, TTL: PreWarmTTL, MaxAge: PreWarmTTL}
	// AlertMarker outlives a billing month so each alert fires once.
	AlertMarker = Policy{Family: "alert-sent", TTL: AlertMarkerTTL}
)
