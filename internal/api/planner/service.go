package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wayfarer-labs/wayfarer-api/app/tracer"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
	generativeAI "github.com/wayfarer-labs/wayfarer-api/internal/api/generative_ai"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

const routeMapAttractions = 5

var _ Service = (*ServiceImpl)(nil)

// Service is the itinerary generation contract.
type Service interface {
	CreatePlan(ctx context.Context, req types.PlanRequest, mode Mode) (*types.PlanResult, error)
}

// ServiceImpl orchestrates the full pipeline: intent extraction,
// context gathering, prompting, generation, parsing and enrichment.
// Only a failing chat call surfaces as an error; everything else
// degrades field by field.
type ServiceImpl struct {
	logger   *slog.Logger
	chat     generativeAI.ChatClient
	maps     amap.Client
	images   ImageResolver
	intents  *IntentExtractor
	gatherer *Gatherer
	prompts  *PromptBuilder
	enricher *Enricher
	metrics  *tracer.AppMetrics
}

func NewServiceImpl(chat generativeAI.ChatClient, maps amap.Client, images ImageResolver, gatherConcurrency int, pick Picker, metrics *tracer.AppMetrics, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		chat:     chat,
		maps:     maps,
		images:   images,
		intents:  NewIntentExtractor(chat, logger),
		gatherer: NewGatherer(maps, gatherConcurrency, logger),
		prompts:  NewPromptBuilder(pick),
		enricher: NewEnricher(maps, images, logger),
		metrics:  metrics,
	}
}

// CreatePlan runs the pipeline for one request.
func (s *ServiceImpl) CreatePlan(ctx context.Context, req types.PlanRequest, mode Mode) (*types.PlanResult, error) {
	ctx, span := otel.Tracer("Planner").Start(ctx, "CreatePlan")
	defer span.End()

	start := time.Now()
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModePlanning
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown plan mode %q", mode)
	}
	span.SetAttributes(
		attribute.String("plan.destination", req.Destination),
		attribute.Int("plan.days", req.Days),
		attribute.String("plan.mode", string(mode)),
	)

	s.logger.InfoContext(ctx, "plan generation started",
		slog.String("destination", req.Destination),
		slog.Int("days", req.Days),
		slog.String("mode", string(mode)))

	intent := s.intents.Extract(ctx, req)
	bundle := s.gatherer.Gather(ctx, req, intent)
	prompt := s.prompts.Build(req, bundle, intent, mode)

	var history []types.ChatMessage
	if bundle.Summary != "" {
		history = append(history, types.ChatMessage{
			Role:    "system",
			Content: "以下是相关信息供参考：\n" + bundle.Summary,
		})
	}

	reply, err := s.chat.Complete(ctx, "", history, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan generation failed")
		s.recordPlan(ctx, start, "error")
		return nil, fmt.Errorf("generate itinerary: %w", err)
	}

	result := &types.PlanResult{
		Reply: reply,
		Context: types.PlanContext{
			Weather:      bundle.Weather,
			TravelIntent: intent,
		},
	}

	plan := ParsePlan(reply)
	s.recordParse(ctx, plan != nil)
	if plan != nil {
		attachSchedule(plan, bundle.Weather, req.StartDate)
		s.enricher.Enrich(ctx, plan, req)
		result.Plan = plan
	} else {
		s.logger.InfoContext(ctx, "reply carried no structured plan, returning narrative only")
	}

	s.attachRouteMap(ctx, result, bundle, req)
	s.attachCover(ctx, result, plan, req)

	s.logger.InfoContext(ctx, "plan generation finished",
		slog.String("destination", req.Destination),
		slog.Bool("structured", plan != nil),
		slog.Duration("elapsed", time.Since(start)))
	s.recordPlan(ctx, start, "ok")
	return result, nil
}

// attachRouteMap renders the first gathered attractions as a static
// route map and inlines it as base64. Best-effort.
func (s *ServiceImpl) attachRouteMap(ctx context.Context, result *types.PlanResult, bundle *types.ContextBundle, req types.PlanRequest) {
	if len(bundle.Attractions) == 0 {
		return
	}
	pois := bundle.Attractions
	if len(pois) > routeMapAttractions {
		pois = pois[:routeMapAttractions]
	}
	mapURL, err := s.maps.GenerateRouteMap(ctx, pois, req.TransportMode)
	if err != nil || mapURL == "" {
		if err != nil {
			s.logger.WarnContext(ctx, "route map generation failed", slog.Any("error", err))
		}
		return
	}
	result.RouteMapURL = mapURL
	encoded, err := s.maps.DownloadStaticMap(ctx, mapURL)
	if err != nil {
		s.logger.WarnContext(ctx, "route map download failed", slog.Any("error", err))
		return
	}
	result.RouteMapBase64 = encoded
}

// attachCover resolves a destination cover image, centering the
// static-map tier on the plan's first located POI when there is one.
func (s *ServiceImpl) attachCover(ctx context.Context, result *types.PlanResult, plan *types.TripPlan, req types.PlanRequest) {
	if s.images == nil {
		return
	}
	var center string
	var markers []amap.Marker
	if plan != nil {
		for _, day := range plan.DailyPlans {
			located := 0
			for _, poi := range day.POIs {
				if poi.Location == "" {
					continue
				}
				if center == "" {
					center = poi.Location
				}
				if located < 3 {
					markers = append(markers, amap.Marker{Location: poi.Location})
					located++
				}
			}
		}
	}
	result.CoverURL = s.images.ResolveImage(ctx, req.Destination, center, markers)
}

func (s *ServiceImpl) recordPlan(ctx context.Context, start time.Time, outcome string) {
	if s.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	s.metrics.PlanRequestsTotal.Add(ctx, 1, attrs)
	s.metrics.PlanDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (s *ServiceImpl) recordParse(ctx context.Context, found bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.StructuredPlanParseTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("structured", found)))
}
