package planner

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// ImageResolver is the slice of the search service the enricher needs.
type ImageResolver interface {
	ResolveImage(ctx context.Context, query, centerLocation string, markers []amap.Marker) string
}

// Enricher fills the gaps in a parsed plan: missing POI coordinates,
// missing imagery, and per-leg routes. Every fill is independently
// best-effort; already-complete fields are left alone and trigger no
// lookups.
type Enricher struct {
	logger *slog.Logger
	maps   amap.Client
	images ImageResolver
}

func NewEnricher(maps amap.Client, images ImageResolver, logger *slog.Logger) *Enricher {
	return &Enricher{logger: logger, maps: maps, images: images}
}

// Enrich mutates plan in place and assigns a fresh id and creation
// timestamp, discarding anything the model emitted for those fields.
func (e *Enricher) Enrich(ctx context.Context, plan *types.TripPlan, req types.PlanRequest) {
	ctx, span := otel.Tracer("Planner").Start(ctx, "EnrichPlan")
	defer span.End()

	plan.ID = uuid.NewString()[:8]
	plan.CreatedAt = time.Now().Format(time.RFC3339)

	var totalDistance, totalDuration int
	for di := range plan.DailyPlans {
		day := &plan.DailyPlans[di]
		for pi := range day.POIs {
			e.enrichPOI(ctx, &day.POIs[pi], req.Destination)
		}
		day.Routes = e.computeRoutes(ctx, day.POIs, req)
		for _, r := range day.Routes {
			totalDistance += r.Distance
			totalDuration += r.Duration
		}
	}
	plan.TotalDistance = totalDistance
	plan.TotalDuration = totalDuration
}

func (e *Enricher) enrichPOI(ctx context.Context, poi *types.POI, destination string) {
	if poi.Location == "" {
		results, err := e.maps.TextSearch(ctx, poi.Name, destination)
		if err != nil {
			e.logger.DebugContext(ctx, "POI coordinate lookup failed",
				slog.String("poi", poi.Name), slog.Any("error", err))
		} else if len(results) > 0 {
			poi.Location = results[0].Location
			poi.Address = results[0].Address
			poi.ID = results[0].ID
		}
	}
	if poi.ImageURL == "" && e.images != nil {
		if imageURL := e.images.ResolveImage(ctx, destination+" "+poi.Name, "", nil); imageURL != "" {
			poi.ImageURL = imageURL
		}
	}
}

// computeRoutes builds the leg list for one day. Legs whose endpoints
// lack coordinates, or whose route call fails, are simply absent.
func (e *Enricher) computeRoutes(ctx context.Context, pois []types.POI, req types.PlanRequest) []types.RouteSegment {
	var routes []types.RouteSegment
	for i := 0; i < len(pois)-1; i++ {
		from, to := pois[i], pois[i+1]
		if from.Location == "" || to.Location == "" {
			continue
		}
		route, err := e.maps.Route(ctx, from.Location, to.Location, req.TransportMode, req.Destination)
		if err != nil {
			e.logger.DebugContext(ctx, "route leg failed",
				slog.String("from", from.Name), slog.String("to", to.Name), slog.Any("error", err))
			continue
		}
		routes = append(routes, types.RouteSegment{
			Origin:      from.Name,
			Destination: to.Name,
			Mode:        req.TransportMode,
			Distance:    route.Distance,
			Duration:    route.Duration,
			Polyline:    joinPolylines(route.Steps),
		})
	}
	return routes
}

func joinPolylines(steps []amap.RouteStep) string {
	var parts []string
	for _, s := range steps {
		if s.Polyline != "" {
			parts = append(parts, s.Polyline)
		}
	}
	return strings.Join(parts, ";")
}

// attachSchedule stamps each day with its calendar date and forecast
// when a start date and a forecast window are available.
func attachSchedule(plan *types.TripPlan, weather *types.WeatherReport, startDate string) {
	var start time.Time
	var hasStart bool
	if startDate != "" {
		if t, err := time.Parse("2006-01-02", startDate); err == nil {
			start, hasStart = t, true
		}
	}

	forecastByDate := make(map[string]types.DailyForecast)
	if weather != nil {
		for _, f := range weather.Forecasts {
			forecastByDate[f.Date] = f
		}
	}

	for i := range plan.DailyPlans {
		day := &plan.DailyPlans[i]
		if hasStart && day.Date == "" {
			day.Date = start.AddDate(0, 0, day.Day-1).Format("2006-01-02")
		}
		if day.Weather == nil {
			if f, ok := forecastByDate[day.Date]; ok {
				day.Weather = &f
			}
		}
	}
}
