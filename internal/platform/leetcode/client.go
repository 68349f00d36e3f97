// Package leetcode adapts LeetCode's public GraphQL API into the
// per-category count map the poller diffs against.
package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kellyjadams/break-into-data-bot/internal/domain"
)

const (
	DefaultBaseURL = "https://leetcode.com"

	// Name of the platform as stored on connections.
	PlatformName = "leetcode"

	// Category that automated LeetCode submissions are credited to.
	CategoryName = "_automated_LeetCode"
)

const progressQuery = `query userProfileUserQuestionProgressV2($userSlug: String!) {
  userProfileUserQuestionProgressV2(userSlug: $userSlug) {
    numAcceptedQuestions {
      count
      difficulty
    }
  }
}`

// Client fetches accepted-question counts per difficulty for a user.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a LeetCode stats client.
func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Name() string { return PlatformName }

// BoundCategory returns the category name LeetCode progress is
// credited to.
func (c *Client) BoundCategory() string { return CategoryName }

type progressResponse struct {
	Data struct {
		Progress struct {
			NumAcceptedQuestions []struct {
				Count      int    `json:"count"`
				Difficulty string `json:"difficulty"`
			} `json:"numAcceptedQuestions"`
		} `json:"userProfileUserQuestionProgressV2"`
	} `json:"data"`
}

// Fetch returns the account's current accepted counts keyed by
// difficulty.
func (c *Client) Fetch(ctx context.Context, handle string) (domain.Snapshot, error) {
	payload, err := json.Marshal(map[string]any{
		"query":         progressQuery,
		"operationName": "userProfileUserQuestionProgressV2",
		"variables":     map[string]string{"userSlug": handle},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/graphql/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", fmt.Sprintf("%s/u/%s/", c.BaseURL, handle))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded progressResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	counts := make(domain.Snapshot, len(decoded.Data.Progress.NumAcceptedQuestions))
	for _, row := range decoded.Data.Progress.NumAcceptedQuestions {
		counts[row.Difficulty] = row.Count
	}
	return counts, nil
}
