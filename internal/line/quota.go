package line

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Quota is the monthly message allowance. Type is "none" when unlimited.
type Quota struct {
	Type  string `json:"type"`
	Value int64  `json:"value,omitempty"`
}

// Limited reports whether the channel has a finite allowance.
func (q Quota) Limited() bool {
	return q.Type == "limited"
}

// Quota fetches the monthly message quota.
func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v2/bot/message/quota", nil, false)
	if err != nil {
		return nil, fmt.Errorf("fetching quota: %w", err)
	}
	var q Quota
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("parsing quota: %w", err)
	}
	return &q, nil
}

// Consumption returns how many messages were sent this month.
func (c *Client) Consumption(ctx context.Context) (int64, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v2/bot/message/quota/consumption", nil, false)
	if err != nil {
		return 0, fmt.Errorf("fetching quota consumption: %w", err)
	}
	var resp struct {
		TotalUsage int64 `json:"totalUsage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parsing quota consumption: %w", err)
	}
	return resp.TotalUsage, nil
}
