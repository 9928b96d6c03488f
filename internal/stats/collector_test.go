package stats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

func TestUsageCollector_Empty(t *testing.T) {
	c := NewUsageCollector()
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("empty collector produced %d metrics, want 0", n)
	}
}

func TestUsageCollector_Snapshot(t *testing.T) {
	c := NewUsageCollector()
	c.Update(&models.Response{
		Phase:       models.Phase3,
		GeneratedAt: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Core: &models.AggregateMetrics{
			Current: models.CurrentUsage{
				Confidence: models.UsageConfidence{
					Requests: &models.ConfidenceInterval{Estimate: 100, Lower: 90, Upper: 110},
				},
			},
			PerAccountData: []*models.AccountMetrics{
				{AccountID: "acc1"},
				{AccountID: "acc2"},
			},
		},
		PageShield: &models.AddonMetrics{Type: models.AddonPageShield},
	})

	// 1 timestamp + 2 accounts * 5 series + 1 confidence + 1 add-on
	if n := testutil.CollectAndCount(c); n != 13 {
		t.Errorf("collector produced %d metrics, want 13", n)
	}
	if n := testutil.CollectAndCount(c, "cfud_account_zones"); n != 4 {
		t.Errorf("zones metrics = %d, want 4", n)
	}
}
