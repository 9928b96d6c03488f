package cloudflare

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

// confidenceLevel is the sampling interval requested for every count.
const confidenceLevel = 0.95

// excludedSecurityActions are never billed and are filtered out of HTTP totals.
var excludedSecurityActions = []string{
	"block",
	"challenge",
	"jschallenge",
	"managed_challenge",
	"challenge_solved",
	"rate_limit",
}

// ZoneTraffic is the billable HTTP traffic of one zone over a range.
type ZoneTraffic struct {
	ZoneID             string
	Requests           int64
	Bytes              int64
	RequestsConfidence *models.ConfidenceInterval
	BytesConfidence    *models.ConfidenceInterval
}

// Count is a sampled count with its confidence interval.
type Count struct {
	Value      int64
	Confidence *models.ConfidenceInterval
}

type confidenceGroup struct {
	Count *models.ConfidenceInterval `json:"count"`
	Sum   struct {
		EdgeResponseBytes *models.ConfidenceInterval `json:"edgeResponseBytes"`
	} `json:"sum"`
}

const httpTotalsQuery = `query ($zoneIDs: [String!], $since: Time!, $until: Time!, $excluded: [String!], $level: Float!) {
	viewer {
		zones(filter: {zoneTag_in: $zoneIDs}) {
			zoneTag
			httpRequestsAdaptiveGroups(
				filter: {
					datetime_geq: $since
					datetime_lt: $until
					requestSource: "eyeball"
					securityAction_notin: $excluded
				}
				limit: 1
			) {
				count
				sum {
					edgeResponseBytes
				}
				confidence(level: $level) {
					count { estimate lower upper sampleSize }
					sum { edgeResponseBytes { estimate lower upper sampleSize } }
				}
			}
		}
	}
}`

type httpTotalsResult struct {
	Viewer struct {
		Zones []struct {
			ZoneTag string `json:"zoneTag"`
			Groups  []struct {
				Count int64 `json:"count"`
				Sum   struct {
					EdgeResponseBytes int64 `json:"edgeResponseBytes"`
				} `json:"sum"`
				Confidence *confidenceGroup `json:"confidence"`
			} `json:"httpRequestsAdaptiveGroups"`
		} `json:"zones"`
	} `json:"viewer"`
}

// QueryHTTPTotals returns billable end-user request counts and bytes for
// every zone in one account query. Blocked, challenged and rate-limited
// requests are excluded. Zones without traffic are absent from the result.
func (c *Client) QueryHTTPTotals(ctx context.Context, zoneIDs []string, since, until time.Time) ([]ZoneTraffic, error) {
	if len(zoneIDs) == 0 {
		return []ZoneTraffic{}, nil
	}

	vars := map[string]any{
		"zoneIDs":  zoneIDs,
		"since":    since.UTC().Format(time.RFC3339),
		"until":    until.UTC().Format(time.RFC3339),
		"excluded": excludedSecurityActions,
		"level":    confidenceLevel,
	}

	var result httpTotalsResult
	if err := c.query(ctx, "http", httpTotalsQuery, vars, &result); err != nil {
		return nil, fmt.Errorf("query http totals: %w", err)
	}

	traffic := make([]ZoneTraffic, 0, len(result.Viewer.Zones))
	for _, z := range result.Viewer.Zones {
		zt := ZoneTraffic{ZoneID: z.ZoneTag}
		for _, g := range z.Groups {
			zt.Requests += g.Count
			zt.Bytes += g.Sum.EdgeResponseBytes
			if g.Confidence != nil {
				zt.RequestsConfidence = zt.RequestsConfidence.Add(g.Confidence.Count)
				zt.BytesConfidence = zt.BytesConfidence.Add(g.Confidence.Sum.EdgeResponseBytes)
			}
		}
		traffic = append(traffic, zt)
	}

	return traffic, nil
}

const dnsTotalsQuery = `query ($zoneID: String!, $since: Time!, $until: Time!, $level: Float!) {
	viewer {
		zones(filter: {zoneTag: $zoneID}) {
			dnsAnalyticsAdaptiveGroups(
				filter: {datetime_geq: $since, datetime_lt: $until}
				limit: 1
			) {
				count
				confidence(level: $level) {
					count { estimate lower upper sampleSize }
				}
			}
		}
	}
}`

const botTotalsQuery = `query ($zoneID: String!, $since: Time!, $until: Time!, $minScore: Int!, $maxScore: Int!, $excluded: [String!], $level: Float!) {
	viewer {
		zones(filter: {zoneTag: $zoneID}) {
			httpRequestsAdaptiveGroups(
				filter: {
					datetime_geq: $since
					datetime_lt: $until
					requestSource: "eyeball"
					securityAction_notin: $excluded
					botScore_geq: $minScore
					botScore_leq: $maxScore
				}
				limit: 1
			) {
				count
				confidence(level: $level) {
					count { estimate lower upper sampleSize }
				}
			}
		}
	}
}`

type countResult struct {
	Viewer struct {
		Zones []struct {
			DNSGroups  []countGroup `json:"dnsAnalyticsAdaptiveGroups"`
			HTTPGroups []countGroup `json:"httpRequestsAdaptiveGroups"`
		} `json:"zones"`
	} `json:"viewer"`
}

type countGroup struct {
	Count      int64            `json:"count"`
	Confidence *confidenceGroup `json:"confidence"`
}

func sumCounts(groups []countGroup) Count {
	var total Count
	for _, g := range groups {
		total.Value += g.Count
		if g.Confidence != nil {
			total.Confidence = total.Confidence.Add(g.Confidence.Count)
		}
	}
	return total
}

// QueryDNSTotals returns the DNS queries answered for one zone.
func (c *Client) QueryDNSTotals(ctx context.Context, zoneID string, since, until time.Time) (Count, error) {
	vars := map[string]any{
		"zoneID": zoneID,
		"since":  since.UTC().Format(time.RFC3339),
		"until":  until.UTC().Format(time.RFC3339),
		"level":  confidenceLevel,
	}

	var result countResult
	if err := c.query(ctx, "dns", dnsTotalsQuery, vars, &result); err != nil {
		return Count{}, fmt.Errorf("query dns totals for zone %s: %w", zoneID, err)
	}

	var total Count
	for _, z := range result.Viewer.Zones {
		sum := sumCounts(z.DNSGroups)
		total.Value += sum.Value
		total.Confidence = total.Confidence.Add(sum.Confidence)
	}
	return total, nil
}

// QueryBotTotals returns the billable requests of one zone whose bot score
// falls inside r.
func (c *Client) QueryBotTotals(ctx context.Context, zoneID string, since, until time.Time, r models.BotScoreRange) (Count, error) {
	vars := map[string]any{
		"zoneID":   zoneID,
		"since":    since.UTC().Format(time.RFC3339),
		"until":    until.UTC().Format(time.RFC3339),
		"minScore": r.Min,
		"maxScore": r.Max,
		"excluded": excludedSecurityActions,
		"level":    confidenceLevel,
	}

	var result countResult
	if err := c.query(ctx, "bot", botTotalsQuery, vars, &result); err != nil {
		return Count{}, fmt.Errorf("query bot totals for zone %s: %w", zoneID, err)
	}

	var total Count
	for _, z := range result.Viewer.Zones {
		sum := sumCounts(z.HTTPGroups)
		total.Value += sum.Value
		total.Confidence = total.Confidence.Add(sum.Confidence)
	}
	return total, nil
}
