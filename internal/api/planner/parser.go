package planner

import (
	"encoding/json"
	"regexp"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// extractJSONBlock returns the contents of the first fenced JSON block
// in raw, or nil when there is none.
func extractJSONBlock(raw string) []byte {
	m := fencedJSONBlock.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return []byte(m[1])
}

// ParsePlan pulls the structured itinerary out of a narrative reply.
// It fails closed: no fenced JSON block, a decode error, or a payload
// without the itinerary marker all yield nil, never an error. The
// narrative is still useful without a plan.
func ParsePlan(raw string) *types.TripPlan {
	block := extractJSONBlock(raw)
	if block == nil {
		return nil
	}
	var plan types.TripPlan
	if err := json.Unmarshal(block, &plan); err != nil {
		return nil
	}
	if plan.Type != types.TripPlanMarker {
		return nil
	}
	return &plan
}
