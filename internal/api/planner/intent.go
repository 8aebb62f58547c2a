package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	generativeAI "github.com/wayfarer-labs/wayfarer-api/internal/api/generative_ai"
	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// IntentExtractor distills a free-form plan request into a structured
// travel intent via one chat call.
type IntentExtractor struct {
	logger *slog.Logger
	chat   generativeAI.ChatClient
}

func NewIntentExtractor(chat generativeAI.ChatClient, logger *slog.Logger) *IntentExtractor {
	return &IntentExtractor{logger: logger, chat: chat}
}

// Extract never fails: any chat error, missing JSON block or decode
// failure substitutes the default intent so downstream stages always
// see a populated record.
func (e *IntentExtractor) Extract(ctx context.Context, req types.PlanRequest) *types.TravelIntent {
	ctx, span := otel.Tracer("Planner").Start(ctx, "ExtractIntent")
	defer span.End()
	span.SetAttributes(attribute.String("plan.destination", req.Destination))

	response, err := e.chat.Complete(ctx, "", nil, buildIntentPrompt(req))
	if err != nil {
		e.logger.WarnContext(ctx, "intent extraction chat failed, using default intent",
			slog.Any("error", err))
		return types.DefaultIntent(req.Destination)
	}

	intent, err := decodeIntent(response)
	if err != nil {
		e.logger.WarnContext(ctx, "intent extraction parse failed, using default intent",
			slog.Any("error", err))
		return types.DefaultIntent(req.Destination)
	}
	normalizeIntent(intent, req.Destination)
	return intent
}

// decodeIntent tries a fenced JSON block first, then the whole body.
func decodeIntent(response string) (*types.TravelIntent, error) {
	payload := extractJSONBlock(response)
	if payload == nil {
		payload = []byte(strings.TrimSpace(response))
	}
	var intent types.TravelIntent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	return &intent, nil
}

// normalizeIntent backfills the fields the gather stage depends on so
// a sparse model reply cannot produce an unusable intent.
func normalizeIntent(intent *types.TravelIntent, destination string) {
	if intent.TravelStyle == "" {
		intent.TravelStyle = "综合体验"
	}
	if intent.BudgetSensitivity == "" {
		intent.BudgetSensitivity = "中"
	}
	if intent.FoodPriority == "" {
		intent.FoodPriority = "中"
	}
	if len(intent.SuggestedAreas) == 0 {
		intent.SuggestedAreas = []string{destination}
	}
	if len(intent.SearchKeywords) == 0 {
		intent.SearchKeywords = []string{
			destination + "必去景点",
			destination + "网红打卡",
		}
	}
}

func buildIntentPrompt(req types.PlanRequest) string {
	orDefault := func(s, fallback string) string {
		if s == "" {
			return fallback
		}
		return s
	}
	prefs := "无"
	if len(req.Preferences) > 0 {
		prefs = strings.Join(req.Preferences, ", ")
	}

	return fmt.Sprintf(`请分析以下旅行需求，提取关键信息并返回JSON格式：

**用户输入：**
- 目的地：%s
- 天数：%d天
- 偏好标签：%s
- 详细描述：%s
- 出行方式：%s
- 预算级别：%s
- 出行人群：%s
- 出发日期：%s

**请提取以下信息，返回JSON格式：**
`+"```json"+`
{
    "specific_places": ["用户明确提到想去的具体地点/景点"],
    "must_eat": ["用户明确提到想吃的美食/餐厅"],
    "travel_style": "休闲慢游/紧凑高效/深度体验/打卡拍照",
    "special_needs": ["特殊需求，如带小孩、老人、轮椅、宠物等"],
    "budget_sensitivity": "高/中/低",
    "photo_spots_needed": true/false,
    "local_experience": true/false,
    "avoid_crowds": true/false,
    "food_priority": "高/中/低",
    "suggested_areas": ["建议重点游览的区域"],
    "search_keywords": ["用于搜索景点的关键词列表"]
}
`+"```"+`

只返回JSON，不要其他内容。`,
		req.Destination,
		req.Days,
		prefs,
		orDefault(req.Description, "无"),
		orDefault(string(req.TransportMode), "未指定"),
		orDefault(req.BudgetLevel, "未指定"),
		orDefault(req.TravelWith, "未指定"),
		orDefault(req.StartDate, "未指定"),
	)
}
