package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"llm-search-insight/internal/domain/ports/adapter"
)

var _ adapter.SearchAdapter = (*BrightDataGateway)(nil)

// BrightDataGateway implements adapter.SearchAdapter using direct HTTP calls
// against the Bright Data SERP API.
type BrightDataGateway struct {
	apiKey  string
	zone    string
	baseURL string
	client  *http.Client
}

// NewBrightDataGateway creates a new direct Bright Data gateway.
func NewBrightDataGateway(apiKey, zone, baseURL string) *BrightDataGateway {
	if baseURL == "" {
		baseURL = "https://api.brightdata.com/request"
	}
	return &BrightDataGateway{
		apiKey:  apiKey,
		zone:    zone,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// brightDataResponse represents the parsed SERP payload.
type brightDataResponse struct {
	Organic []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
	} `json:"organic"`
}

func (g *BrightDataGateway) Search(ctx context.Context, query string) ([]adapter.SearchResult, error) {
	requestData := map[string]interface{}{
		"zone":   g.zone,
		"url":    fmt.Sprintf("https://www.google.com/search?q=%s&brd_json=1", url.QueryEscape(query)),
		"format": "json",
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brightdata error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var response brightDataResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	out := make([]adapter.SearchResult, 0, len(response.Organic))
	for _, o := range response.Organic {
		out = append(out, adapter.SearchResult{
			Title:   o.Title,
			Snippet: o.Description,
			Source:  o.Link,
		})
	}
	return out, nil
}
