package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// Key builders for every persisted family. The prefixes are stable and
// shared with existing deployments.

// ConfigKey holds the operator settings of a dashboard user.
func ConfigKey(userID string) string {
	return "config:" + userID
}

// CurrentMonthKey is scoped to the calendar hour of now.
func CurrentMonthKey(accountID string, now time.Time) string {
	return "current-month:" + accountID + ":" + now.UTC().Format("2006-01-02-15")
}

// ZonesKey holds the eligible zone list of an account.
func ZonesKey(accountID string) string {
	return "zones:" + accountID
}

// MonthlyStatsKey holds a closed month snapshot.
func MonthlyStatsKey(accountID, month string) string {
	return MonthlyStatsPrefix(accountID) + month
}

// MonthlyStatsPrefix lists every closed month of an account.
func MonthlyStatsPrefix(accountID string) string {
	return "monthly-stats:" + accountID + ":"
}

// MonthlyAddonStatsKey holds a closed month of an add-on.
func MonthlyAddonStatsKey(addon models.AddonType, accountID, month string) string {
	return MonthlyAddonStatsPrefix(addon, accountID) + month
}

// MonthlyAddonStatsPrefix lists every closed month of an add-on.
func MonthlyAddonStatsPrefix(addon models.AddonType, accountID string) string {
	return "monthly-" + addon.KeyName() + "-stats:" + accountID + ":"
}

// HistoricalKey memoizes the scan over an account's closed months.
func HistoricalKey(accountID string) string {
	return "historical-data:" + accountID
}

// HistoricalAddonKey memoizes the scan over an add-on's closed months.
func HistoricalAddonKey(addon models.AddonType, accountID string) string {
	return "historical-" + addon.KeyName() + "-data:" + accountID
}

// PreWarmedKey holds the full snapshot of an account set.
func PreWarmedKey(accountIDs []string) string {
	return "pre-warmed:" + accountSet(models.AccountsKey(accountIDs))
}

// AlertSentKey marks a metric as notified for a month.
func AlertSentKey(accountsKey, metricKey, month string) string {
	return strings.Join([]string{"alert-sent", accountSet(accountsKey), metricKey, month}, ":")
}

// maxAccountSetLen keeps keys within the MySQL primary key column.
const maxAccountSetLen = 256

// accountSet returns the account set segment of a key. Sets longer than
// maxAccountSetLen are replaced by their SHA-256 digest.
func accountSet(accountsKey string) string {
	if len(accountsKey) <= maxAccountSetLen {
		return accountsKey
	}
	sum := sha256.Sum256([]byte(accountsKey))
	return "sha256-" + hex.EncodeToString(sum[:])
}
