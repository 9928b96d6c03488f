package models

import (
	"fmt"
	"time"
)

// Phase is a progressive loading tier.
type Phase string

const (
	Phase1      Phase = "1"
	Phase2      Phase = "2"
	Phase3      Phase = "3"
	PhaseCached Phase = "cached"
)

// ParsePhase accepts "1", "2" or "3".
func ParsePhase(s string) (Phase, error) {
	switch Phase(s) {
	case Phase1, Phase2, Phase3:
		return Phase(s), nil
	case "":
		return Phase3, nil
	default:
		return "", fmt.Errorf("invalid phase %q", s)
	}
}

// Response is the assembled dashboard payload. Each feature has its own
// optional field that is only set when the feature is enabled.
type Response struct {
	Phase                Phase             `json:"phase"`
	Loading              bool              `json:"loading,omitempty"`
	ZoneCount            int               `json:"zoneCount"`
	GeneratedAt          time.Time         `json:"generatedAt"`
	Core                 *AggregateMetrics `json:"core,omitempty"`
	BotManagement        *AddonMetrics     `json:"botManagement,omitempty"`
	APIShield            *AddonMetrics     `json:"apiShield,omitempty"`
	PageShield           *AddonMetrics     `json:"pageShield,omitempty"`
	AdvancedRateLimiting *AddonMetrics     `json:"advancedRateLimiting,omitempty"`
}

// Addon returns the add-on field for t.
func (r *Response) Addon(t AddonType) *AddonMetrics {
	switch t {
	case AddonBotManagement:
		return r.BotManagement
	case AddonAPIShield:
		return r.APIShield
	case AddonPageShield:
		return r.PageShield
	case AddonAdvancedRateLimiting:
		return r.AdvancedRateLimiting
	default:
		return nil
	}
}

// SetAddon stores m in the add-on field for t.
func (r *Response) SetAddon(t AddonType, m *AddonMetrics) {
	switch t {
	case AddonBotManagement:
		r.BotManagement = m
	case AddonAPIShield:
		r.APIShield = m
	case AddonPageShield:
		r.PageShield = m
	case AddonAdvancedRateLimiting:
		r.AdvancedRateLimiting = m
	}
}
