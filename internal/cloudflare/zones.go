package cloudflare

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jellydator/ttlcache/v3"

	"github.com/j-veylop/cf-usage-dashboard/internal/models"
)

const zonesPerPage = 50

// EnterprisePlan is the plan identifier of zones that count toward usage.
const EnterprisePlan = "enterprise"

type envelope struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	ResultInfo struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"result_info"`
}

func (e envelope) err() error {
	if e.Success {
		return nil
	}
	if len(e.Errors) > 0 {
		return fmt.Errorf("cloudflare error %d: %s", e.Errors[0].Code, e.Errors[0].Message)
	}
	return fmt.Errorf("cloudflare request unsuccessful")
}

type zonesResponse struct {
	envelope
	Result []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Plan struct {
			LegacyID string `json:"legacy_id"`
			Name     string `json:"name"`
		} `json:"plan"`
	} `json:"result"`
}

// ListZones returns every zone of the account with its plan identifier.
func (c *Client) ListZones(ctx context.Context, accountID string) ([]models.Zone, error) {
	zones := make([]models.Zone, 0)

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("account.id", accountID)
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(zonesPerPage))

		var resp zonesResponse
		if err := c.get(ctx, "zones", "/zones?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("list zones for account %s: %w", accountID, err)
		}
		if err := resp.err(); err != nil {
			return nil, fmt.Errorf("list zones for account %s: %w", accountID, err)
		}

		for _, z := range resp.Result {
			plan := z.Plan.LegacyID
			if plan == "" {
				plan = strings.ToLower(z.Plan.Name)
			}
			zones = append(zones, models.Zone{ID: z.ID, Name: z.Name, Plan: plan})
		}

		if page >= resp.ResultInfo.TotalPages || len(resp.Result) == 0 {
			break
		}
	}

	return zones, nil
}

// EligibleZones keeps the zones on the enterprise plan.
func EligibleZones(zones []models.Zone) []models.Zone {
	eligible := make([]models.Zone, 0, len(zones))
	for _, z := range zones {
		if z.Plan == EnterprisePlan || strings.HasPrefix(z.Plan, EnterprisePlan+" ") {
			eligible = append(eligible, z)
		}
	}
	return eligible
}

type accountResponse struct {
	envelope
	Result struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"result"`
}

// AccountName returns the display name of an account. Names are memoized and
// concurrent lookups for the same account share one request, which outlives
// the cancellation of whichever caller started it.
func (c *Client) AccountName(ctx context.Context, accountID string) (string, error) {
	if item := c.names.Get(accountID); item != nil {
		return item.Value(), nil
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(accountID, func() (any, error) {
		var resp accountResponse
		if err := c.get(shared, "account", "/accounts/"+url.PathEscape(accountID), &resp); err != nil {
			return "", fmt.Errorf("get account %s: %w", accountID, err)
		}
		if err := resp.err(); err != nil {
			return "", fmt.Errorf("get account %s: %w", accountID, err)
		}

		c.names.Set(accountID, resp.Result.Name, ttlcache.DefaultTTL)
		return resp.Result.Name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
