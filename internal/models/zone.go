package models

// PrimaryZoneBytesThreshold is the monthly bandwidth (50 GiB) at which a zone
// counts as primary for contract tiering.
const PrimaryZoneBytesThreshold int64 = 50 * 1024 * 1024 * 1024

// ZoneClass labels a zone by its monthly bandwidth.
type ZoneClass string

const (
	// ZonePrimary is a zone at or above PrimaryZoneBytesThreshold.
	ZonePrimary ZoneClass = "primary"
	// ZoneSecondary is every other zone.
	ZoneSecondary ZoneClass = "secondary"
)

// ClassifyZone labels a zone from its bandwidth for the month.
func ClassifyZone(bytes int64) ZoneClass {
	if bytes >= PrimaryZoneBytesThreshold {
		return ZonePrimary
	}
	return ZoneSecondary
}

// Zone is an eligible zone returned by zone discovery.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

// ZoneUsage is one zone's usage for a billing month.
type ZoneUsage struct {
	ZoneID     string `json:"zoneId"`
	ZoneName   string `json:"zoneName"`
	Requests   int64  `json:"requests"`
	Bytes      int64  `json:"bytes"`
	DNSQueries int64  `json:"dnsQueries"`
	IsPrimary  bool   `json:"isPrimary"`
	// DNSUnavailable marks a zone whose DNS query failed and was counted as zero.
	DNSUnavailable bool `json:"dnsUnavailable,omitempty"`
}

// ZoneBreakdown groups zone usage with its primary/secondary counts.
type ZoneBreakdown struct {
	PrimaryCount   int         `json:"primaryCount"`
	SecondaryCount int         `json:"secondaryCount"`
	Zones          []ZoneUsage `json:"zones"`
}

// NewZoneBreakdown classifies every zone and counts the classes.
func NewZoneBreakdown(zones []ZoneUsage) ZoneBreakdown {
	b := ZoneBreakdown{Zones: make([]ZoneUsage, 0, len(zones))}
	for _, z := range zones {
		z.IsPrimary = ClassifyZone(z.Bytes) == ZonePrimary
		if z.IsPrimary {
			b.PrimaryCount++
		} else {
			b.SecondaryCount++
		}
		b.Zones = append(b.Zones, z)
	}
	return b
}

// Totals sums requests, bytes and DNS queries over all zones.
func (b ZoneBreakdown) Totals() UsageTotals {
	var t UsageTotals
	for _, z := range b.Zones {
		t.Requests += z.Requests
		t.Bytes += z.Bytes
		t.DNSQueries += z.DNSQueries
	}
	return t
}

// ZoneCount returns the number of zones in the breakdown.
func (b ZoneBreakdown) ZoneCount() int {
	return b.PrimaryCount + b.SecondaryCount
}

// Merge concatenates two breakdowns without deduplication.
func (b ZoneBreakdown) Merge(other ZoneBreakdown) ZoneBreakdown {
	zones := make([]ZoneUsage, 0, len(b.Zones)+len(other.Zones))
	zones = append(zones, b.Zones...)
	zones = append(zones, other.Zones...)
	return ZoneBreakdown{
		PrimaryCount:   b.PrimaryCount + other.PrimaryCount,
		SecondaryCount: b.SecondaryCount + other.SecondaryCount,
		Zones:          zones,
	}
}

// FilterZones keeps only the zones whose ID is in ids, preserving order.
func FilterZones(zones []ZoneUsage, ids map[string]struct{}) []ZoneUsage {
	filtered := make([]ZoneUsage, 0)
	for _, z := range zones {
		if _, ok := ids[z.ZoneID]; ok {
			filtered = append(filtered, z)
		}
	}
	return filtered
}

// DedupeZones removes repeated zone IDs, keeping the first occurrence.
func DedupeZones(zones []ZoneUsage) []ZoneUsage {
	seen := make(map[string]struct{}, len(zones))
	out := make([]ZoneUsage, 0, len(zones))
	for _, z := range zones {
		if _, ok := seen[z.ZoneID]; ok {
			continue
		}
		seen[z.ZoneID] = struct{}{}
		out = append(out, z)
	}
	return out
}
