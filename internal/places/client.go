package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lucasvieira/zapcamp/internal/config"
)

// Listing is one business returned by the places search API.
type Listing struct {
	Title       string  `json:"title"`
	Address     string  `json:"address,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Website     string  `json:"website,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	RatingCount int     `json:"ratingCount,omitempty"`
	Category    string  `json:"category,omitempty"`
	PlaceID     string  `json:"placeId,omitempty"`
}

// Client queries a Serper-style places search API. All connection settings
// come from the config struct at construction time.
type Client struct {
	baseURL  string
	apiKey   string
	country  string
	language string
	pageSize int
	client   *http.Client
}

func NewClient(cfg config.PlacesConfig) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		country:  cfg.Country,
		language: cfg.Language,
		pageSize: cfg.PageSize,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Search looks up businesses matching a term near a location.
func (c *Client) Search(ctx context.Context, term, location string) ([]Listing, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("places: api key not configured")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"q":   fmt.Sprintf("%s em %s", term, location),
		"gl":  c.country,
		"hl":  c.language,
		"num": c.pageSize,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Places []Listing `json:"places"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("places: invalid response: %w", err)
	}
	return result.Places, nil
}
