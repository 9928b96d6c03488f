package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

func TestKeyBuilders(t *testing.T) {
	now := time.Date(2025, 3, 5, 14, 59, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		got  string
		want string
	}{
		{ConfigKey("default"), "config:default"},
		{CurrentMonthKey("acc1", now), "current-month:acc1:2025-03-05-13"},
		{ZonesKey("acc1"), "zones:acc1"},
		{MonthlyStatsKey("acc1", "2025-02"), "monthly-stats:acc1:2025-02"},
		{MonthlyAddonStatsKey(models.AddonAPIShield, "acc1", "2025-02"), "monthly-api-shield-stats:acc1:2025-02"},
		{MonthlyAddonStatsKey(models.AddonBotManagement, "acc1", "2025-02"), "monthly-bot-stats:acc1:2025-02"},
		{HistoricalKey("acc1"), "historical-data:acc1"},
		{HistoricalAddonKey(models.AddonPageShield, "acc1"), "historical-page-shield-data:acc1"},
		{HistoricalAddonKey(models.AddonBotManagement, "acc1"), "historical-bot-data:acc1"},
		{PreWarmedKey([]string{"b", "a"}), "pre-warmed:a,b"},
		{AlertSentKey("a,b", "requests", "2025-03"), "alert-sent:a,b:requests:2025-03"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestKeyBuilders_LargeAccountSet(t *testing.T) {
	ids := make([]string, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("%032x", i)
	}
	accountsKey := models.AccountsKey(ids)

	prewarmed := PreWarmedKey(ids)
	marker := AlertSentKey(accountsKey, "requests", "2025-03")

	// The MySQL key column holds 512 characters.
	for _, key := range []string{prewarmed, marker} {
		if len(key) > 512 {
			t.Errorf("len(%q) = %d, want at most 512", key, len(key))
		}
	}
	if !strings.HasPrefix(prewarmed, "pre-warmed:sha256-") {
		t.Errorf("PreWarmedKey = %q, want a digest", prewarmed)
	}

	reversed := make([]string, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	if PreWarmedKey(reversed) != prewarmed {
		t.Error("digest must not depend on account order")
	}
	if PreWarmedKey(ids[:39]) == prewarmed {
		t.Error("different account sets must not share a key")
	}
}
