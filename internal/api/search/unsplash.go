package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ErrNotConfigured marks a provider disabled by missing credentials.
var ErrNotConfigured = fmt.Errorf("search: provider not configured")

// SearchUnsplash returns the first landscape-oriented stock photo for
// the query, or ErrNotConfigured when no access key is set.
func (s *ServiceImpl) SearchUnsplash(ctx context.Context, query string) (string, error) {
	if s.unsplashKey == "" {
		return "", ErrNotConfigured
	}

	params := url.Values{
		"query":          {query},
		"per_page":       {"5"},
		"orientation":    {"landscape"},
		"content_filter": {"high"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.unsplashURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("unsplash: build request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.unsplashKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("unsplash: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unsplash: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			URLs struct {
				Regular string `json:"regular"`
			} `json:"urls"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("unsplash: decode: %w", err)
	}
	if len(payload.Results) == 0 {
		return "", nil
	}
	return payload.Results[0].URLs.Regular, nil
}
