package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// WebResult is one text search hit.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// ImageResult is one image search hit. ImageURL is the full-size
// asset, SourceURL the page it was found on.
type ImageResult struct {
	Title        string `json:"title,omitempty"`
	ImageURL     string `json:"image"`
	ThumbnailURL string `json:"thumbnail,omitempty"`
	SourceURL    string `json:"url,omitempty"`
}

// StaticMapper renders a static-map URL for the resolver's second
// tier. Implementations return "" when no map key is configured.
type StaticMapper interface {
	StaticMapURL(center string, markers []amap.Marker, path []string, size string, zoom int) string
}

var _ Service = (*ServiceImpl)(nil)

// Service is the web-search and image-resolution contract.
type Service interface {
	SearchWeb(ctx context.Context, query string, maxResults int) ([]WebResult, error)
	SearchImages(ctx context.Context, query string, maxResults int) ([]ImageResult, error)
	SearchUnsplash(ctx context.Context, query string) (string, error)
	SearchTravelGuides(ctx context.Context, destination string, preferences []string) (*TravelGuides, error)
	ResolveImage(ctx context.Context, query, centerLocation string, markers []amap.Marker) string
}

type ServiceImpl struct {
	logger       *slog.Logger
	httpClient   *http.Client
	verifyClient *http.Client
	mapper       StaticMapper

	unsplashKey     string
	blockedDomains  []string
	trustedPatterns []string

	// endpoint bases, overridable in tests
	ddgHTMLURL  string
	ddgBaseURL  string
	unsplashURL string
}

func NewServiceImpl(unsplashKey string, blockedDomains, trustedPatterns []string, callTimeout, verifyTimeout time.Duration, mapper StaticMapper, logger *slog.Logger) *ServiceImpl {
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	if verifyTimeout <= 0 {
		verifyTimeout = 8 * time.Second
	}
	return &ServiceImpl{
		logger:          logger,
		httpClient:      &http.Client{Timeout: callTimeout},
		verifyClient:    &http.Client{Timeout: verifyTimeout},
		mapper:          mapper,
		unsplashKey:     unsplashKey,
		blockedDomains:  blockedDomains,
		trustedPatterns: trustedPatterns,
		ddgHTMLURL:      "https://html.duckduckgo.com/html/",
		ddgBaseURL:      "https://duckduckgo.com",
		unsplashURL:     "https://api.unsplash.com",
	}
}

// isEmptyResultStatus reports whether the upstream status should read
// as "no results" rather than an error. Rate limiting and blocks are
// routine for an anonymous search endpoint.
func isEmptyResultStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests
}

// SearchWeb runs a text search against the HTML search endpoint and
// scrapes the result list. Rate limiting yields an empty list, not an
// error.
func (s *ServiceImpl) SearchWeb(ctx context.Context, query string, maxResults int) ([]WebResult, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "SearchWeb")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	if query == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ddgHTMLURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "web search failed")
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if isEmptyResultStatus(resp.StatusCode) {
		s.logger.WarnContext(ctx, "search rate limited, returning empty results",
			slog.Int("status", resp.StatusCode))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search: parse results: %w", err)
	}

	var results []WebResult
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		results = append(results, WebResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     unwrapRedirect(href),
			Snippet: strings.TrimSpace(sel.Find("a.result__snippet").First().Text()),
		})
		return len(results) < maxResults
	})
	return results, nil
}

// SearchImages runs an image search. The image endpoint needs a vqd
// session token scraped from the regular search page first.
func (s *ServiceImpl) SearchImages(ctx context.Context, query string, maxResults int) ([]ImageResult, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "SearchImages")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query))

	if query == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	vqd, err := s.fetchVQD(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if vqd == "" {
		return nil, nil
	}

	params := url.Values{
		"l":   {"wt-wt"},
		"o":   {"json"},
		"q":   {query},
		"vqd": {vqd},
		"p":   {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ddgBaseURL+"/i.js?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("image search: build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Referer", s.ddgBaseURL+"/")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image search failed")
		return nil, fmt.Errorf("image search: %w", err)
	}
	defer resp.Body.Close()

	if isEmptyResultStatus(resp.StatusCode) {
		s.logger.WarnContext(ctx, "image search rate limited, returning empty results",
			slog.Int("status", resp.StatusCode))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image search: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title     string `json:"title"`
			Image     string `json:"image"`
			Thumbnail string `json:"thumbnail"`
			URL       string `json:"url"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("image search: decode: %w", err)
	}

	results := make([]ImageResult, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, ImageResult{
			Title:        r.Title,
			ImageURL:     r.Image,
			ThumbnailURL: r.Thumbnail,
			SourceURL:    r.URL,
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

var vqdPattern = regexp.MustCompile(`vqd=["']?([\d-]+)["']?`)

func (s *ServiceImpl) fetchVQD(ctx context.Context, query string) (string, error) {
	params := url.Values{"q": {query}, "iax": {"images"}, "ia": {"images"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ddgBaseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("image search: build token request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image search: token fetch: %w", err)
	}
	defer resp.Body.Close()

	if isEmptyResultStatus(resp.StatusCode) {
		return "", nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("image search: read token page: %w", err)
	}
	m := vqdPattern.FindSubmatch(body)
	if m == nil {
		return "", nil
	}
	return string(m[1]), nil
}

// unwrapRedirect resolves the search engine's /l/?uddg= redirect links
// to the destination URL.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if strings.HasSuffix(u.Path, "/l/") || u.Path == "/l" {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return href
}

// TravelGuides aggregates guide search results for a destination.
type TravelGuides struct {
	General     []WebResult `json:"general"`
	Food        []WebResult `json:"food"`
	Attractions []WebResult `json:"attractions"`
}

// SearchTravelGuides fans out guide, food and attraction text searches
// and keeps whatever succeeded.
func (s *ServiceImpl) SearchTravelGuides(ctx context.Context, destination string, preferences []string) (*TravelGuides, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "SearchTravelGuides")
	defer span.End()

	query := strings.TrimSpace(destination + " 旅游攻略 " + strings.Join(preferences, " "))

	guides := &TravelGuides{}
	for _, part := range []struct {
		query string
		dst   *[]WebResult
	}{
		{query, &guides.General},
		{destination + " 美食推荐", &guides.Food},
		{destination + " 景点", &guides.Attractions},
	} {
		results, err := s.SearchWeb(ctx, part.query, 5)
		if err != nil {
			s.logger.WarnContext(ctx, "guide search failed",
				slog.String("query", part.query), slog.Any("error", err))
			continue
		}
		*part.dst = results
	}
	return guides, nil
}
