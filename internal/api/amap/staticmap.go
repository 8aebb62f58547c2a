package amap

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

const (
	defaultMapSize = "750*400"

	markerColorStart = "0x6366f1"
	markerColorEnd   = "0xef4444"
	markerColorMid   = "0x22c55e"

	// URL-length guards: each routed segment is thinned to at most 20
	// sampled points and the whole path to at most 100.
	maxPointsPerSegment = 20
	maxPathPoints       = 100
)

// StaticMapURL builds a static-map render URL for the given markers and
// path. center, markers and path entries use "lng,lat" coordinates;
// an empty center lets the renderer fit the markers itself.
func (c *ClientImpl) StaticMapURL(center string, markers []Marker, path []string, size string, zoom int) string {
	if c.key == "" {
		return ""
	}
	if size == "" {
		size = defaultMapSize
	}
	params := []string{"key=" + c.key, "size=" + size}
	if center != "" {
		params = append(params, "location="+center)
	}

	if len(markers) > 0 {
		parts := make([]string, 0, len(markers))
		for i, m := range markers {
			label := m.Label
			if label == "" {
				label = markerLabel(i)
			}
			color := m.Color
			if color == "" {
				color = markerColorStart
			}
			parts = append(parts, fmt.Sprintf("mid,%s,%s:%s", color, label, m.Location))
		}
		params = append(params, "markers="+strings.Join(parts, "|"))
	}
	if len(path) > 1 {
		params = append(params, "paths=6,0x3366FF,1,,:"+strings.Join(path, ";"))
	}
	if zoom > 0 {
		params = append(params, fmt.Sprintf("zoom=%d", zoom))
	}
	return c.baseURL + "/staticmap?" + strings.Join(params, "&")
}

// GenerateRouteMap renders the POI sequence as a static map with the
// actual routed path between consecutive stops. Legs that fail to
// route fall back to a straight line between the two stops.
func (c *ClientImpl) GenerateRouteMap(ctx context.Context, pois []types.POI, mode types.TransportMode) (string, error) {
	ctx, span := otel.Tracer("AmapClient").Start(ctx, "GenerateRouteMap")
	defer span.End()

	coords := make([]string, 0, len(pois))
	markers := make([]Marker, 0, len(pois))
	for _, p := range pois {
		if p.Location == "" {
			continue
		}
		coords = append(coords, p.Location)
	}
	if len(coords) < 2 {
		return "", nil
	}
	for i, loc := range coords {
		color := markerColorMid
		switch i {
		case 0:
			color = markerColorStart
		case len(coords) - 1:
			color = markerColorEnd
		}
		markers = append(markers, Marker{Location: loc, Label: markerLabel(i), Color: color})
	}

	// transit routes carry no polyline, render those as walking paths
	routeMode := mode
	if routeMode != types.TransportDriving {
		routeMode = types.TransportWalking
	}

	var path []string
	for i := 0; i < len(coords)-1; i++ {
		route, err := c.Route(ctx, coords[i], coords[i+1], routeMode, "")
		if err != nil {
			c.logger.DebugContext(ctx, "route map leg failed, drawing straight line",
				slog.Int("leg", i), slog.Any("error", err))
			path = append(path, coords[i], coords[i+1])
			continue
		}
		var segment []string
		for _, step := range route.Steps {
			if step.Polyline != "" {
				segment = append(segment, strings.Split(step.Polyline, ";")...)
			}
		}
		path = append(path, samplePoints(segment, maxPointsPerSegment)...)
	}
	if len(path) == 0 {
		path = coords
	}
	path = samplePoints(path, maxPathPoints)

	return c.StaticMapURL("", markers, path, "", 0), nil
}

// DownloadStaticMap fetches a rendered map and returns it as a
// data-URI for direct embedding.
func (c *ClientImpl) DownloadStaticMap(ctx context.Context, mapURL string) (string, error) {
	if mapURL == "" {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mapURL, nil)
	if err != nil {
		return "", fmt.Errorf("static map: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("static map: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("static map: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("static map: read body: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// samplePoints thins coords to at most max entries by stride sampling,
// preserving relative order.
func samplePoints(coords []string, max int) []string {
	if len(coords) <= max {
		return coords
	}
	stride := len(coords) / max
	sampled := make([]string, 0, max+1)
	for i := 0; i < len(coords); i += stride {
		sampled = append(sampled, coords[i])
	}
	return sampled
}

// markerLabel yields A..Z then falls back to 1-based numbers.
func markerLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("%d", i+1)
}
