package amap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wayfarer-labs/wayfarer-api/app/tracer"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

const (
	// infocode returned when the weather endpoint rejects a city code,
	// e.g. Hong Kong / Macau / Taiwan adcodes it has no data for.
	infoCodeUnknownCity = "20003"

	defaultSearchRadius = 3000
)

var _ Client = (*ClientImpl)(nil)

// Client is the map provider contract consumed by the planner.
type Client interface {
	TextSearch(ctx context.Context, keywords, city string) ([]types.POI, error)
	AroundSearch(ctx context.Context, keywords, location string, radiusMeters int) ([]types.POI, error)
	Geocode(ctx context.Context, address, city string) (*GeocodeResult, error)
	Regeocode(ctx context.Context, location string) (string, error)
	Weather(ctx context.Context, city string) (*types.WeatherReport, error)
	Route(ctx context.Context, origin, destination string, mode types.TransportMode, city string) (*RouteResult, error)
	Distance(ctx context.Context, origins, destination string) (*RouteResult, error)
	StaticMapURL(center string, markers []Marker, path []string, size string, zoom int) string
	GenerateRouteMap(ctx context.Context, pois []types.POI, mode types.TransportMode) (string, error)
	DownloadStaticMap(ctx context.Context, mapURL string) (string, error)
}

type ClientImpl struct {
	logger       *slog.Logger
	httpClient   *http.Client
	baseURL      string
	openMeteoURL string
	key          string
	metrics      *tracer.AppMetrics
}

func NewClientImpl(baseURL, openMeteoURL, key string, timeout time.Duration, metrics *tracer.AppMetrics, logger *slog.Logger) *ClientImpl {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ClientImpl{
		logger:       logger,
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		openMeteoURL: openMeteoURL,
		key:          key,
		metrics:      metrics,
	}
}

func (c *ClientImpl) recordCall(ctx context.Context, endpoint string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("endpoint", endpoint))
	c.metrics.ProviderCallsTotal.Add(ctx, 1, attrs)
	c.metrics.ProviderDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		c.metrics.ProviderCallErrorsTotal.Add(ctx, 1, attrs)
	}
}

// get issues one signed request and decodes the envelope into out,
// turning a status "0" payload into an *APIError.
func (c *ClientImpl) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	start := time.Now()
	err := c.doGet(ctx, endpoint, params, out)
	c.recordCall(ctx, endpoint, start, err)
	return err
}

func (c *ClientImpl) doGet(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if c.key == "" {
		return fmt.Errorf("amap: web API key not configured")
	}
	params.Set("key", c.key)

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("amap: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("amap %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("amap %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("amap %s: read body: %w", endpoint, err)
	}

	var env statusEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("amap %s: decode envelope: %w", endpoint, err)
	}
	if env.Status == "0" {
		return &APIError{Info: env.Info, InfoCode: env.InfoCode, Endpoint: endpoint}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("amap %s: decode payload: %w", endpoint, err)
	}
	return nil
}

func toPOIs(wire []wirePOI) []types.POI {
	pois := make([]types.POI, 0, len(wire))
	for _, p := range wire {
		pois = append(pois, types.POI{
			ID:       string(p.ID),
			Name:     string(p.Name),
			Address:  string(p.Address),
			Location: string(p.Location),
			Type:     string(p.Type),
			Tel:      string(p.Tel),
			Rating:   p.BizExt.Rating.Ptr(),
			Cost:     p.BizExt.Cost.Ptr(),
		})
	}
	return pois
}

func (c *ClientImpl) TextSearch(ctx context.Context, keywords, city string) ([]types.POI, error) {
	ctx, span := otel.Tracer("AmapClient").Start(ctx, "TextSearch")
	defer span.End()
	span.SetAttributes(attribute.String("search.keywords", keywords))

	params := url.Values{"keywords": {keywords}}
	if city != "" {
		params.Set("city", city)
	}
	var resp placeSearchResponse
	if err := c.get(ctx, "place/text", params, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "text search failed")
		return nil, err
	}
	return toPOIs(resp.POIs), nil
}

func (c *ClientImpl) AroundSearch(ctx context.Context, keywords, location string, radiusMeters int) ([]types.POI, error) {
	ctx, span := otel.Tracer("AmapClient").Start(ctx, "AroundSearch")
	defer span.End()

	if radiusMeters <= 0 {
		radiusMeters = defaultSearchRadius
	}
	params := url.Values{
		"keywords": {keywords},
		"location": {location},
		"radius":   {fmt.Sprintf("%d", radiusMeters)},
	}
	var resp placeSearchResponse
	if err := c.get(ctx, "place/around", params, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "around search failed")
		return nil, err
	}
	return toPOIs(resp.POIs), nil
}

func (c *ClientImpl) Geocode(ctx context.Context, address, city string) (*GeocodeResult, error) {
	ctx, span := otel.Tracer("AmapClient").Start(ctx, "Geocode")
	defer span.End()

	params := url.Values{"address": {address}}
	if city != "" {
		params.Set("city", city)
	}
	var resp geocodeResponse
	if err := c.get(ctx, "geocode/geo", params, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocode failed")
		return nil, err
	}
	if len(resp.Geocodes) == 0 {
		return nil, fmt.Errorf("amap geocode: no match for %q", address)
	}
	g := resp.Geocodes[0]
	return &GeocodeResult{
		Adcode:           string(g.Adcode),
		Location:         string(g.Location),
		FormattedAddress: string(g.FormattedAddress),
		City:             string(g.City),
		District:         string(g.District),
	}, nil
}

func (c *ClientImpl) Regeocode(ctx context.Context, location string) (string, error) {
	var resp regeoResponse
	if err := c.get(ctx, "geocode/regeo", url.Values{"location": {location}}, &resp); err != nil {
		return "", err
	}
	return string(resp.Regeocode.FormattedAddress), nil
}

// Weather resolves the city to an adcode when needed, then queries the
// live and forecast endpoints. When the provider rejects the city code
// it falls back to open-meteo keyed by the geocoded coordinate.
func (c *ClientImpl) Weather(ctx context.Context, city string) (*types.WeatherReport, error) {
	ctx, span := otel.Tracer("AmapClient").Start(ctx, "Weather")
	defer span.End()
	span.SetAttributes(attribute.String("weather.city", city))

	code := city
	if !isDigits(code) {
		if geo, err := c.Geocode(ctx, city, ""); err == nil && geo.Adcode != "" {
			code = geo.Adcode
		}
	}

	report, err := c.amapWeather(ctx, city, code)
	if err == nil {
		return report, nil
	}
	if !IsInfoCode(err, infoCodeUnknownCity) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weather lookup failed")
		return nil, err
	}

	c.logger.WarnContext(ctx, "weather city code rejected, falling back to open-meteo",
		slog.String("city", city), slog.String("adcode", code))

	geo, geoErr := c.Geocode(ctx, city, "")
	if geoErr != nil || geo.Location == "" {
		span.RecordError(err)
		span.SetStatus(codes.Error, "weather fallback has no coordinate")
		return nil, err
	}
	report, omErr := c.openMeteoWeather(ctx, geo.Location, timezoneFor(city, code))
	if omErr != nil {
		span.RecordError(omErr)
		span.SetStatus(codes.Error, "open-meteo fallback failed")
		return nil, omErr
	}
	report.City = city
	return report, nil
}

func (c *ClientImpl) amapWeather(ctx context.Context, city, code string) (*types.WeatherReport, error) {
	var live weatherResponse
	if err := c.get(ctx, "weather/weatherInfo", url.Values{"city": {code}, "extensions": {"base"}}, &live); err != nil {
		return nil, err
	}
	var all weatherResponse
	if err := c.get(ctx, "weather/weatherInfo", url.Values{"city": {code}, "extensions": {"all"}}, &all); err != nil {
		return nil, err
	}

	report := &types.WeatherReport{Provider: types.WeatherProviderAmap, City: city}
	if len(live.Lives) > 0 {
		l := live.Lives[0]
		report.Live = &types.WeatherLive{
			Weather:       string(l.Weather),
			Temperature:   string(l.Temperature),
			Humidity:      string(l.Humidity),
			WindDirection: string(l.WindDirection),
			WindPower:     string(l.WindPower),
			ReportTime:    string(l.ReportTime),
		}
	}
	if len(all.Forecasts) > 0 {
		for _, cast := range all.Forecasts[0].Casts {
			report.Forecasts = append(report.Forecasts, types.DailyForecast{
				Date:         string(cast.Date),
				DayWeather:   string(cast.DayWeather),
				NightWeather: string(cast.NightWeather),
				DayTemp:      string(cast.DayTemp),
				NightTemp:    string(cast.NightTemp),
				Wind:         string(cast.DayWind) + string(cast.DayPower),
			})
		}
	}
	return report, nil
}

func (c *ClientImpl) Route(ctx context.Context, origin, destination string, mode types.TransportMode, city string) (*RouteResult, error) {
	ctx, span := otel.Tracer("AmapClient").Start(ctx, "Route")
	defer span.End()
	span.SetAttributes(attribute.String("route.mode", string(mode)))

	endpoint := "direction/walking"
	params := url.Values{"origin": {origin}, "destination": {destination}}
	switch mode {
	case types.TransportDriving:
		endpoint = "direction/driving"
	case types.TransportBicycling:
		endpoint = "direction/bicycling"
	case types.TransportTransit:
		endpoint = "direction/transit/integrated"
		if city != "" {
			params.Set("city", city)
		}
	}

	var resp routeResponse
	if err := c.get(ctx, endpoint, params, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "route planning failed")
		return nil, err
	}

	if len(resp.Route.Paths) > 0 {
		p := resp.Route.Paths[0]
		result := &RouteResult{Distance: int(p.Distance), Duration: int(p.Duration)}
		for _, s := range p.Steps {
			result.Steps = append(result.Steps, RouteStep{
				Instruction: string(s.Instruction),
				Polyline:    string(s.Polyline),
			})
		}
		return result, nil
	}
	if len(resp.Route.Transits) > 0 {
		t := resp.Route.Transits[0]
		return &RouteResult{Distance: int(t.Distance), Duration: int(t.Duration)}, nil
	}
	return &RouteResult{}, nil
}

func (c *ClientImpl) Distance(ctx context.Context, origins, destination string) (*RouteResult, error) {
	params := url.Values{
		"origins":     {origins},
		"destination": {destination},
		"type":        {"1"},
	}
	var resp distanceResponse
	if err := c.get(ctx, "distance", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return &RouteResult{}, nil
	}
	return &RouteResult{
		Distance: int(resp.Results[0].Distance),
		Duration: int(resp.Results[0].Duration),
	}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
