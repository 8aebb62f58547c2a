package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

func TestExtractIntentFromFencedBlock(t *testing.T) {
	chat := new(MockChatClient)
	chat.On("Complete", mock.Anything, "", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "杭州") && strings.Contains(prompt, "2天")
	})).Return("```json\n"+`{
		"specific_places": ["西湖", "灵隐寺"],
		"must_eat": ["西湖醋鱼"],
		"travel_style": "休闲慢游",
		"special_needs": [],
		"budget_sensitivity": "中",
		"photo_spots_needed": true,
		"local_experience": true,
		"avoid_crowds": false,
		"food_priority": "高",
		"suggested_areas": ["西湖区"],
		"search_keywords": ["杭州必去景点"]
	}`+"\n```", nil)

	extractor := NewIntentExtractor(chat, testLogger())
	intent := extractor.Extract(context.Background(), types.PlanRequest{Destination: "杭州", Days: 2})

	require.NotNil(t, intent)
	assert.Equal(t, []string{"西湖", "灵隐寺"}, intent.SpecificPlaces)
	assert.Equal(t, []string{"西湖醋鱼"}, intent.MustEat)
	assert.Equal(t, "高", intent.FoodPriority)
	assert.True(t, intent.PhotoSpotsNeeded)
	chat.AssertExpectations(t)
}

func TestExtractIntentBareJSONBody(t *testing.T) {
	chat := new(MockChatClient)
	chat.On("Complete", mock.Anything, "", mock.Anything, mock.Anything).
		Return(`{"specific_places": [], "travel_style": "打卡拍照", "search_keywords": ["厦门海边"]}`, nil)

	extractor := NewIntentExtractor(chat, testLogger())
	intent := extractor.Extract(context.Background(), types.PlanRequest{Destination: "厦门", Days: 3})

	assert.Equal(t, "打卡拍照", intent.TravelStyle)
	assert.Equal(t, []string{"厦门海边"}, intent.SearchKeywords)
	// unset fields are backfilled
	assert.Equal(t, "中", intent.BudgetSensitivity)
	assert.Equal(t, []string{"厦门"}, intent.SuggestedAreas)
}

func TestExtractIntentChatFailureGivesDefault(t *testing.T) {
	chat := new(MockChatClient)
	chat.On("Complete", mock.Anything, "", mock.Anything, mock.Anything).
		Return("", errors.New("connect timeout"))

	extractor := NewIntentExtractor(chat, testLogger())
	intent := extractor.Extract(context.Background(), types.PlanRequest{Destination: "成都", Days: 3})

	require.NotNil(t, intent)
	assert.Equal(t, "综合体验", intent.TravelStyle)
	assert.Equal(t, []string{"成都"}, intent.SuggestedAreas)
	assert.Equal(t, []string{"成都必去景点", "成都网红打卡"}, intent.SearchKeywords)
	assert.True(t, intent.PhotoSpotsNeeded)
}

func TestExtractIntentGarbageResponseGivesDefault(t *testing.T) {
	chat := new(MockChatClient)
	chat.On("Complete", mock.Anything, "", mock.Anything, mock.Anything).
		Return("抱歉，我不太明白您的意思。", nil)

	extractor := NewIntentExtractor(chat, testLogger())
	intent := extractor.Extract(context.Background(), types.PlanRequest{Destination: "成都", Days: 3})

	assert.Equal(t, types.DefaultIntent("成都"), intent)
}
