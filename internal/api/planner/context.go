package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/wayfarer-labs/wayfarer-api/internal/api/amap"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// Gather caps. The bundle feeds an LLM prompt, so the lists are kept
// small and stable rather than exhaustive.
const (
	perSpecificPlace     = 2
	maxSearchKeywords    = 3
	perSearchKeyword     = 5
	maxAttractions       = 15
	perMustEat           = 2
	maxLocalFood         = 10
	maxFood              = 15
	maxHotelAreas        = 2
	perHotelArea         = 5
	maxHotels            = 10
	maxPhotoSpots        = 5
	localFoodRadius      = 5000
	localFoodKeywords    = "特色菜|本地菜|老字号"
	defaultGatherWorkers = 4
)

// Gatherer fans out the map-provider queries that build the prompting
// context. Every sub-query is best-effort: a failure degrades its
// field to empty and is logged, never propagated.
type Gatherer struct {
	logger *slog.Logger
	maps   amap.Client
	// sem is the outbound budget shared by all in-flight gathers, so
	// concurrent plan requests cannot multiply the provider load.
	sem *semaphore.Weighted
}

func NewGatherer(maps amap.Client, concurrency int, logger *slog.Logger) *Gatherer {
	if concurrency <= 0 {
		concurrency = defaultGatherWorkers
	}
	return &Gatherer{logger: logger, maps: maps, sem: semaphore.NewWeighted(int64(concurrency))}
}

// attempt runs one best-effort sub-query against the shared outbound
// budget and logs the failure.
func (g *Gatherer) attempt(ctx context.Context, what string, fn func() error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer g.sem.Release(1)
	if err := fn(); err != nil {
		g.logger.WarnContext(ctx, "context gather sub-query failed",
			slog.String("query", what), slog.Any("error", err))
	}
}

// Gather builds the context bundle for one request. Queries run with
// bounded concurrency; results land in preallocated slots so the merge
// order is deterministic regardless of completion order.
func (g *Gatherer) Gather(ctx context.Context, req types.PlanRequest, intent *types.TravelIntent) *types.ContextBundle {
	ctx, span := otel.Tracer("Planner").Start(ctx, "GatherContext")
	defer span.End()

	bundle := &types.ContextBundle{Intent: intent}

	// Phase 1: weather and the city-center coordinate. The coordinate
	// gates the radius food search below, so it runs before the fan-out.
	var cityLocation string
	phase1 := &errgroup.Group{}
	phase1.Go(func() error {
		g.attempt(ctx, "weather", func() error {
			weather, err := g.maps.Weather(ctx, req.Destination)
			if err != nil {
				return err
			}
			bundle.Weather = weather
			return nil
		})
		return nil
	})
	phase1.Go(func() error {
		g.attempt(ctx, "geocode city", func() error {
			geo, err := g.maps.Geocode(ctx, req.Destination, "")
			if err != nil {
				return err
			}
			cityLocation = geo.Location
			return nil
		})
		return nil
	})
	_ = phase1.Wait()

	// Phase 2: bounded fan-out into fixed slots.
	specific := make([][]types.POI, len(intent.SpecificPlaces))
	keywords := intent.SearchKeywords
	if len(keywords) > maxSearchKeywords {
		keywords = keywords[:maxSearchKeywords]
	}
	general := make([][]types.POI, len(keywords))
	mustEat := make([][]types.POI, len(intent.MustEat))
	var localFood []types.POI
	areas := intent.SuggestedAreas
	if len(areas) > maxHotelAreas {
		areas = areas[:maxHotelAreas]
	}
	hotels := make([][]types.POI, len(areas))
	var photoSpots []types.POI

	group := &errgroup.Group{}

	for i, place := range intent.SpecificPlaces {
		group.Go(func() error {
			g.attempt(ctx, "specific place "+place, func() error {
				results, err := g.maps.TextSearch(ctx, req.Destination+" "+place, req.Destination)
				if err != nil {
					return err
				}
				specific[i] = capPOIs(results, perSpecificPlace)
				return nil
			})
			return nil
		})
	}
	for i, keyword := range keywords {
		group.Go(func() error {
			g.attempt(ctx, "keyword "+keyword, func() error {
				results, err := g.maps.TextSearch(ctx, keyword, req.Destination)
				if err != nil {
					return err
				}
				general[i] = capPOIs(results, perSearchKeyword)
				return nil
			})
			return nil
		})
	}
	for i, food := range intent.MustEat {
		group.Go(func() error {
			g.attempt(ctx, "must eat "+food, func() error {
				results, err := g.maps.TextSearch(ctx, req.Destination+" "+food, req.Destination)
				if err != nil {
					return err
				}
				mustEat[i] = capPOIs(results, perMustEat)
				return nil
			})
			return nil
		})
	}
	if cityLocation != "" && (intent.FoodPriority == "高" || intent.FoodPriority == "中") {
		group.Go(func() error {
			g.attempt(ctx, "local food", func() error {
				results, err := g.maps.AroundSearch(ctx, localFoodKeywords, cityLocation, localFoodRadius)
				if err != nil {
					return err
				}
				localFood = capPOIs(results, maxLocalFood)
				return nil
			})
			return nil
		})
	}
	for i, area := range areas {
		group.Go(func() error {
			g.attempt(ctx, "hotels "+area, func() error {
				results, err := g.maps.TextSearch(ctx, area+" 酒店 住宿", req.Destination)
				if err != nil {
					return err
				}
				hotels[i] = capPOIs(results, perHotelArea)
				return nil
			})
			return nil
		})
	}
	if intent.PhotoSpotsNeeded {
		group.Go(func() error {
			g.attempt(ctx, "photo spots", func() error {
				results, err := g.maps.TextSearch(ctx, req.Destination+" 拍照 打卡 网红", req.Destination)
				if err != nil {
					return err
				}
				photoSpots = capPOIs(results, maxPhotoSpots)
				return nil
			})
			return nil
		})
	}
	_ = group.Wait()

	// Deterministic merge: specific-place hits before keyword hits,
	// first occurrence of a name wins.
	bundle.Attractions = capPOIs(dedupeByName(flatten(specific), flatten(general)), maxAttractions)
	bundle.Food = capPOIs(append(flatten(mustEat), localFood...), maxFood)
	bundle.Hotels = capPOIs(flatten(hotels), maxHotels)
	bundle.PhotoSpots = photoSpots
	bundle.Summary = g.buildSummary(bundle)

	span.SetAttributes(
		attribute.Int("gather.attractions", len(bundle.Attractions)),
		attribute.Int("gather.food", len(bundle.Food)),
		attribute.Int("gather.hotels", len(bundle.Hotels)),
	)
	return bundle
}

// buildSummary concatenates the non-empty sections into one-line
// fragments in fixed order: weather, attractions, food, hotels, photo
// spots. The string goes verbatim into the prompt.
func (g *Gatherer) buildSummary(bundle *types.ContextBundle) string {
	var parts []string

	if bundle.Weather != nil {
		if data, err := json.Marshal(bundle.Weather); err == nil {
			parts = append(parts, "天气信息："+string(data))
		}
	}
	if len(bundle.Attractions) > 0 {
		parts = append(parts, "热门景点："+joinNames(bundle.Attractions, 8))
	}
	if len(bundle.Food) > 0 {
		names := make([]string, 0, 5)
		for _, p := range bundle.Food[:min(5, len(bundle.Food))] {
			names = append(names, fmt.Sprintf("%s(%s分)", p.Name, formatRating(p.Rating)))
		}
		parts = append(parts, "美食推荐："+strings.Join(names, ", "))
	}
	if len(bundle.Hotels) > 0 {
		parts = append(parts, "推荐住宿："+joinNames(bundle.Hotels, 3))
	}
	if len(bundle.PhotoSpots) > 0 {
		parts = append(parts, "拍照打卡点："+joinNames(bundle.PhotoSpots, 3))
	}
	return strings.Join(parts, "\n")
}

func capPOIs(pois []types.POI, max int) []types.POI {
	if len(pois) > max {
		return pois[:max]
	}
	return pois
}

func flatten(groups [][]types.POI) []types.POI {
	var out []types.POI
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// dedupeByName merges the lists keeping the first occurrence of each
// name, in order.
func dedupeByName(lists ...[]types.POI) []types.POI {
	seen := make(map[string]struct{})
	var out []types.POI
	for _, list := range lists {
		for _, p := range list {
			if _, ok := seen[p.Name]; ok {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func joinNames(pois []types.POI, max int) string {
	names := make([]string, 0, max)
	for _, p := range pois[:min(max, len(pois))] {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

func formatRating(rating *float64) string {
	if rating == nil {
		return "暂无"
	}
	return fmt.Sprintf("%.1f", *rating)
}
