package types

import "fmt"

// TransportMode is the primary way the traveller moves between POIs.
type TransportMode string

const (
	TransportWalking   TransportMode = "walking"
	TransportDriving   TransportMode = "driving"
	TransportTransit   TransportMode = "transit"
	TransportBicycling TransportMode = "bicycling"
)

func (m TransportMode) Valid() bool {
	switch m {
	case TransportWalking, TransportDriving, TransportTransit, TransportBicycling:
		return true
	}
	return false
}

// PlanRequest is the immutable input to the planning pipeline.
type PlanRequest struct {
	Destination   string        `json:"destination"`
	Days          int           `json:"days"`
	Preferences   []string      `json:"preferences,omitempty"`
	Description   string        `json:"description,omitempty"`
	Budget        *float64      `json:"budget,omitempty"`
	BudgetLevel   string        `json:"budget_level,omitempty"` // low/medium/high
	TravelWith    string        `json:"travel_with,omitempty"`  // solo/couple/family/friends
	StartDate     string        `json:"start_date,omitempty"`
	TransportMode TransportMode `json:"transport_mode,omitempty"`
}

// Normalize applies defaults and validates the request bounds.
func (r *PlanRequest) Normalize() error {
	if r.Destination == "" {
		return fmt.Errorf("destination is required")
	}
	if r.Days < 1 || r.Days > 14 {
		return fmt.Errorf("days must be between 1 and 14, got %d", r.Days)
	}
	if r.TransportMode == "" {
		r.TransportMode = TransportTransit
	}
	if !r.TransportMode.Valid() {
		return fmt.Errorf("unknown transport mode %q", r.TransportMode)
	}
	return nil
}

// TravelIntent is the structured distillation of a free-text travel
// request. It is derived per request and never persisted; extraction
// failures substitute DefaultIntent so downstream stages always see a
// populated intent.
type TravelIntent struct {
	SpecificPlaces    []string `json:"specific_places"`
	MustEat           []string `json:"must_eat"`
	TravelStyle       string   `json:"travel_style"`
	SpecialNeeds      []string `json:"special_needs"`
	BudgetSensitivity string   `json:"budget_sensitivity"` // 高/中/低
	PhotoSpotsNeeded  bool     `json:"photo_spots_needed"`
	LocalExperience   bool     `json:"local_experience"`
	AvoidCrowds       bool     `json:"avoid_crowds"`
	FoodPriority      string   `json:"food_priority"` // 高/中/低
	SuggestedAreas    []string `json:"suggested_areas"`
	SearchKeywords    []string `json:"search_keywords"`
}

// DefaultIntent is the canned fallback used when extraction fails.
func DefaultIntent(destination string) *TravelIntent {
	return &TravelIntent{
		SpecificPlaces:    []string{},
		MustEat:           []string{},
		TravelStyle:       "综合体验",
		SpecialNeeds:      []string{},
		BudgetSensitivity: "中",
		PhotoSpotsNeeded:  true,
		LocalExperience:   true,
		AvoidCrowds:       false,
		FoodPriority:      "中",
		SuggestedAreas:    []string{destination},
		SearchKeywords: []string{
			destination + "必去景点",
			destination + "网红打卡",
		},
	}
}

// POI mirrors the map provider's wire format: Location is "lng,lat"
// as a comma-joined string, not a structured pair.
type POI struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Address  string   `json:"address,omitempty"`
	Location string   `json:"location,omitempty"`
	Type     string   `json:"type,omitempty"`
	Tel      string   `json:"tel,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	Cost     *float64 `json:"cost,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

// RouteSegment connects two consecutive POIs within a day.
type RouteSegment struct {
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Mode        TransportMode `json:"mode"`
	Distance    int           `json:"distance"` // meters
	Duration    int           `json:"duration"` // seconds
	Polyline    string        `json:"polyline,omitempty"`
}

// DayPlan holds one day of the itinerary. Routes has one fewer entry
// than POIs when every consecutive pair could be routed; failed legs
// are simply absent.
type DayPlan struct {
	Day     int            `json:"day"`
	Date    string         `json:"date,omitempty"`
	POIs    []POI          `json:"pois"`
	Routes  []RouteSegment `json:"routes,omitempty"`
	Weather *DailyForecast `json:"weather,omitempty"`
	Tips    []string       `json:"tips,omitempty"`
}

// TripPlanMarker identifies the structured payload the model is asked
// to emit; any other JSON object fails closed in the parser.
const TripPlanMarker = "trip_plan"

// TripPlan is the structured itinerary parsed out of the model's
// narrative. ID and CreatedAt are assigned during enrichment; values
// the model emits for them are discarded.
type TripPlan struct {
	ID            string    `json:"id,omitempty"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Destination   string    `json:"destination"`
	Days          int       `json:"days"`
	Budget        *float64  `json:"budget,omitempty"`
	DailyPlans    []DayPlan `json:"daily_plans"`
	TotalDistance int       `json:"total_distance,omitempty"`
	TotalDuration int       `json:"total_duration,omitempty"`
	EstimatedCost *float64  `json:"estimated_cost,omitempty"`
	CreatedAt     string    `json:"created_at,omitempty"`
}

// ContextBundle aggregates everything gathered for one request before
// prompting. Any field may be empty; Summary concatenates only the
// non-empty sections in a fixed order.
type ContextBundle struct {
	Weather     *WeatherReport `json:"weather,omitempty"`
	Attractions []POI          `json:"attractions,omitempty"`
	Food        []POI          `json:"food,omitempty"`
	Hotels      []POI          `json:"hotels,omitempty"`
	PhotoSpots  []POI          `json:"photo_spots,omitempty"`
	Intent      *TravelIntent  `json:"intent,omitempty"`
	Summary     string         `json:"summary,omitempty"`
}

// PlanContext is the slice of gathered context echoed back to callers.
type PlanContext struct {
	Weather      *WeatherReport `json:"weather,omitempty"`
	TravelIntent *TravelIntent  `json:"travel_intent,omitempty"`
}

// PlanResult is the final pipeline output. Plan, CoverURL and the
// route-map fields are best-effort and frequently absent; their
// absence is not an error.
type PlanResult struct {
	Reply          string      `json:"reply"`
	Plan           *TripPlan   `json:"plan,omitempty"`
	RouteMapURL    string      `json:"route_map_url,omitempty"`
	RouteMapBase64 string      `json:"route_map_base64,omitempty"`
	CoverURL       string      `json:"cover_url,omitempty"`
	Context        PlanContext `json:"context"`
}

// ChatMessage is one turn of provider-agnostic conversation history.
type ChatMessage struct {
	Role    string `json:"role"` // user/assistant/system
	Content string `json:"content"`
}
