package search

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
)

const (
	maxImageCandidates  = 5
	maxStaticMapMarkers = 10
	imageSearchBatch    = 20
)

// ResolveImage finds a usable image URL for the query through a strict
// fallback chain: stock photos, then a static map centered on the
// given coordinate, then web image search with filtering and liveness
// verification. Returns "" when every tier comes up empty.
func (s *ServiceImpl) ResolveImage(ctx context.Context, query, centerLocation string, markers []amap.Marker) string {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "ResolveImage")
	defer span.End()
	span.SetAttributes(attribute.String("image.query", query))

	if imageURL, err := s.SearchUnsplash(ctx, query+" travel scenery landscape"); err == nil && imageURL != "" {
		span.SetAttributes(attribute.String("image.tier", "unsplash"))
		return imageURL
	} else if err != nil && !errors.Is(err, ErrNotConfigured) {
		s.logger.WarnContext(ctx, "stock photo search failed", slog.Any("error", err))
	}

	if centerLocation != "" && s.mapper != nil {
		if len(markers) > maxStaticMapMarkers {
			markers = markers[:maxStaticMapMarkers]
		}
		if mapURL := s.mapper.StaticMapURL(centerLocation, markers, nil, "750*500", 12); mapURL != "" {
			span.SetAttributes(attribute.String("image.tier", "staticmap"))
			return mapURL
		}
	}

	if imageURL := s.webImageFallback(ctx, query); imageURL != "" {
		span.SetAttributes(attribute.String("image.tier", "websearch"))
		return imageURL
	}
	return ""
}

// webImageFallback is the last resolver tier: one image search, filter
// the hits, verify up to five survivors in order and keep the first
// live one.
func (s *ServiceImpl) webImageFallback(ctx context.Context, query string) string {
	results, err := s.SearchImages(ctx, query+" travel scenery landscape", imageSearchBatch)
	if err != nil {
		s.logger.WarnContext(ctx, "image search tier failed", slog.Any("error", err))
		return ""
	}

	var candidates []string
	for _, r := range results {
		imageURL := r.ImageURL
		if imageURL == "" {
			imageURL = r.ThumbnailURL
		}
		if !s.acceptImageURL(imageURL) {
			continue
		}
		candidates = append(candidates, imageURL)
		if len(candidates) >= maxImageCandidates {
			break
		}
	}

	for _, candidate := range candidates {
		if s.verifyImage(ctx, candidate) {
			return candidate
		}
	}
	return ""
}

// acceptImageURL applies the hotlinking heuristics: HTTPS only, none
// of the blocked domains, and at least one trusted extension or host
// substring. The lists are configuration data, not code.
func (s *ServiceImpl) acceptImageURL(imageURL string) bool {
	if !strings.HasPrefix(imageURL, "https://") {
		return false
	}
	for _, domain := range s.blockedDomains {
		if strings.Contains(imageURL, domain) {
			return false
		}
	}
	lower := strings.ToLower(imageURL)
	for _, pattern := range s.trustedPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// verifyImage probes the URL with a HEAD request and accepts a 200
// with an image content type.
func (s *ServiceImpl) verifyImage(ctx context.Context, imageURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.verifyClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	return strings.Contains(contentType, "image/") || strings.Contains(contentType, "octet-stream")
}
