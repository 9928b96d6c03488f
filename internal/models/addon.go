package models

import (
	"sort"
	"time"
)

// AddonType identifies an optional paid feature.
type AddonType string

const (
	AddonBotManagement        AddonType = "botManagement"
	AddonAPIShield            AddonType = "apiShield"
	AddonPageShield           AddonType = "pageShield"
	AddonAdvancedRateLimiting AddonType = "advancedRateLimiting"
)

// AllAddons lists every add-on in display order.
var AllAddons = []AddonType{
	AddonBotManagement,
	AddonAPIShield,
	AddonPageShield,
	AddonAdvancedRateLimiting,
}

// ZoneFilteredAddons are the add-ons derived from core zone data.
var ZoneFilteredAddons = []AddonType{
	AddonAPIShield,
	AddonPageShield,
	AddonAdvancedRateLimiting,
}

// KeyName is the add-on segment used in cache keys.
func (a AddonType) KeyName() string {
	switch a {
	case AddonBotManagement:
		return "bot"
	case AddonAPIShield:
		return "api-shield"
	case AddonPageShield:
		return "page-shield"
	case AddonAdvancedRateLimiting:
		return "advanced-rate-limiting"
	default:
		return string(a)
	}
}

// DisplayName returns a human readable name.
func (a AddonType) DisplayName() string {
	switch a {
	case AddonBotManagement:
		return "Bot Management"
	case AddonAPIShield:
		return "API Shield"
	case AddonPageShield:
		return "Page Shield"
	case AddonAdvancedRateLimiting:
		return "Advanced Rate Limiting"
	default:
		return string(a)
	}
}

// AddonUsage is an add-on's metric for one month.
type AddonUsage struct {
	Metric     int64               `json:"metric"`
	Zones      []ZoneUsage         `json:"zones"`
	Confidence *ConfidenceInterval `json:"confidence,omitempty"`
}

// AddonPoint is one month of add-on history.
type AddonPoint struct {
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
	Requests  int64     `json:"requests"`
}

// SortAddonSeries orders points ascending by timestamp.
func SortAddonSeries(points []AddonPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}

// AddonMetrics is the usage of one add-on, either for a single account or
// aggregated across accounts.
type AddonMetrics struct {
	Type           AddonType       `json:"type"`
	AccountID      string          `json:"accountId,omitempty"`
	Enabled        bool            `json:"enabled"`
	Threshold      *int64          `json:"threshold"`
	Current        AddonUsage      `json:"current"`
	Previous       AddonUsage      `json:"previous"`
	TimeSeries     []AddonPoint    `json:"timeSeries"`
	PerAccountData []*AddonMetrics `json:"perAccountData"`
}

// AddonSnapshot is a persisted closed month for an add-on.
type AddonSnapshot struct {
	Month     string      `json:"month"`
	Timestamp time.Time   `json:"timestamp"`
	Metric    int64       `json:"metric"`
	Zones     []ZoneUsage `json:"zones"`
}

// Point converts the snapshot into a series point.
func (s AddonSnapshot) Point() AddonPoint {
	return AddonPoint{Month: s.Month, Timestamp: s.Timestamp, Requests: s.Metric}
}

// BotScoreRange bounds the bot score classification counted by Bot
// Management, inclusive on both ends.
type BotScoreRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// LikelyHumanBotScores is the range of scores treated as billable human
// traffic.
var LikelyHumanBotScores = BotScoreRange{Min: 30, Max: 99}
