package models

import (
	"sort"
	"strings"
)

// CoreService holds the thresholds of the core usage metrics, in base units.
type CoreService struct {
	Enabled             bool   `json:"enabled"`
	ThresholdZones      *int64 `json:"thresholdZones"`
	PrimaryZones        *int64 `json:"primaryZones"`
	SecondaryZones      *int64 `json:"secondaryZones"`
	ThresholdRequests   *int64 `json:"thresholdRequests"`
	ThresholdBandwidth  *int64 `json:"thresholdBandwidth"`
	ThresholdDNSQueries *int64 `json:"thresholdDnsQueries"`
}

// AddonService configures one add-on.
type AddonService struct {
	Enabled   bool     `json:"enabled"`
	Threshold *int64   `json:"threshold"`
	Zones     []string `json:"zones"`
}

// ZoneSet returns the configured zones as a lookup set.
func (a AddonService) ZoneSet() map[string]struct{} {
	set := make(map[string]struct{}, len(a.Zones))
	for _, z := range a.Zones {
		set[z] = struct{}{}
	}
	return set
}

// ApplicationServices groups the core service and every add-on.
type ApplicationServices struct {
	Core                 CoreService  `json:"core"`
	BotManagement        AddonService `json:"botManagement"`
	APIShield            AddonService `json:"apiShield"`
	PageShield           AddonService `json:"pageShield"`
	AdvancedRateLimiting AddonService `json:"advancedRateLimiting"`
}

// Addon returns the configuration of the given add-on.
func (a ApplicationServices) Addon(t AddonType) AddonService {
	switch t {
	case AddonBotManagement:
		return a.BotManagement
	case AddonAPIShield:
		return a.APIShield
	case AddonPageShield:
		return a.PageShield
	case AddonAdvancedRateLimiting:
		return a.AdvancedRateLimiting
	default:
		return AddonService{}
	}
}

// Settings is the operator-authored configuration record.
type Settings struct {
	AccountIDs []string `json:"accountIds"`
	// LegacyAccountID is only read from old records and folded into
	// AccountIDs by Normalize.
	LegacyAccountID     string              `json:"accountId,omitempty"`
	ApplicationServices ApplicationServices `json:"applicationServices"`
	SlackWebhook        string              `json:"slackWebhook,omitempty"`
	AlertsEnabled       bool                `json:"alertsEnabled"`
}

// DefaultSettings returns a record with the core service enabled.
func DefaultSettings() *Settings {
	return &Settings{
		AccountIDs: []string{},
		ApplicationServices: ApplicationServices{
			Core: CoreService{Enabled: true},
		},
	}
}

// Normalize migrates the legacy single account field, trims whitespace and
// drops duplicate or empty account IDs.
func (s *Settings) Normalize() {
	ids := s.AccountIDs
	if legacy := strings.TrimSpace(s.LegacyAccountID); legacy != "" {
		ids = append([]string{legacy}, ids...)
	}
	s.LegacyAccountID = ""

	seen := make(map[string]struct{}, len(ids))
	normalized := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	s.AccountIDs = normalized
}

// AccountsKey is the sorted, comma-joined account set used in cache keys.
func (s *Settings) AccountsKey() string {
	return AccountsKey(s.AccountIDs)
}

// AccountsKey sorts a copy of ids and joins them with commas.
func AccountsKey(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// AddonEnabled reports whether the add-on is switched on.
func (s *Settings) AddonEnabled(t AddonType) bool {
	return s.ApplicationServices.Addon(t).Enabled
}

// NeedsAccountData reports whether any enabled feature consumes per-account
// core metrics.
func (s *Settings) NeedsAccountData() bool {
	if s.ApplicationServices.Core.Enabled {
		return true
	}
	for _, t := range ZoneFilteredAddons {
		if s.AddonEnabled(t) {
			return true
		}
	}
	return false
}
