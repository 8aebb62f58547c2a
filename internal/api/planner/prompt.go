package planner

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// Mode selects the narrative voice of the generated itinerary.
type Mode string

const (
	// ModePlanning writes a forward-looking guide in second person.
	ModePlanning Mode = "planning"
	// ModeTravelogue writes a first-person retrospective travel diary.
	ModeTravelogue Mode = "travelogue"
)

func (m Mode) Valid() bool {
	return m == ModePlanning || m == ModeTravelogue
}

// Picker chooses an index in [0, n). Injectable so tests can pin the
// travelogue style variation.
type Picker func(n int) int

// PromptBuilder turns request, intent and gathered context into the
// generation prompt. Pure except for the picker.
type PromptBuilder struct {
	pick Picker
}

func NewPromptBuilder(pick Picker) *PromptBuilder {
	if pick == nil {
		pick = rand.IntN
	}
	return &PromptBuilder{pick: pick}
}

// openingStyles and personas vary the travelogue voice. Selection is
// uniform and has no effect on the structured output.
var openingStyles = []string{
	"刚从%[1]s回来！趁着记忆还热乎，赶紧把这%[2]d天的行程整理出来分享给大家～",
	"终于把%[1]s之旅的攻略整理好了！这次%[2]d天的旅程真的太难忘了，必须记录下来！",
	"去了一趟%[1]s，被彻底种草了！%[2]d天玩下来，感觉还没玩够，先把这次的经验分享给你们～",
	"心心念念的%[1]s终于去成了！%[2]d天行程安排得明明白白，现在来交作业啦～",
	"上周刚结束的%[1]s之旅，%[2]d天暴走但超值！来给姐妹们避坑+种草～",
	"这次%[1]s%[2]d日游真的是我今年最满意的一次旅行！忍不住要分享给大家～",
	"作为一个去过%[1]s三次的人，这次%[2]d天的深度游终于让我摸透了这座城市！",
	"原本只是想去%[1]s躺平几天，结果%[2]d天玩得比上班还累（但是很快乐）！",
	"和朋友的%[1]s%[2]d日游圆满结束！这份攻略请收好，亲测有效～",
	"一直想去%[1]s，这次终于成行！%[2]d天的行程安排分享给同样想去的朋友～",
}

var personas = []string{
	"作为一个资深吃货",
	"作为一个摄影爱好者",
	"作为一个喜欢深度游的人",
	"作为一个预算有限的学生党",
	"作为一个带娃出行的宝妈",
	"作为一个喜欢慢节奏的人",
	"作为一个第一次去的小白",
	"作为一个本地朋友带着玩的幸运儿",
}

// planSchemaInstruction tells the model how to append the structured
// payload the parser looks for. Both modes carry it.
const planSchemaInstruction = `

请生成详细的行程内容，最后附上JSON格式的结构化数据（用` + "```json```" + `包裹），格式如下：

` + "```json" + `
{
  "type": "trip_plan",
  "title": "行程标题",
  "destination": "目的地城市",
  "days": 天数,
  "daily_plans": [
    {
      "day": 1,
      "pois": [
        {"name": "景点名称", "type": "景点/美食/住宿", "duration": "建议游玩时长", "cost": 预估花费}
      ],
      "tips": ["当日提示"]
    }
  ],
  "estimated_cost": 总预估花费
}
` + "```"

// Build renders the prompt for the given mode, embedding every
// non-empty context fragment.
func (b *PromptBuilder) Build(req types.PlanRequest, bundle *types.ContextBundle, intent *types.TravelIntent, mode Mode) string {
	prefs := "综合体验"
	if len(req.Preferences) > 0 {
		prefs = strings.Join(req.Preferences, "、")
	}

	foodInfo := b.foodFragment(bundle)
	hotelInfo := b.hotelFragment(bundle)

	if mode == ModeTravelogue {
		return b.buildTraveloguePrompt(req, prefs, foodInfo, hotelInfo)
	}
	return b.buildPlanningPrompt(req, bundle, intent, prefs, foodInfo, hotelInfo)
}

func (b *PromptBuilder) buildPlanningPrompt(req types.PlanRequest, bundle *types.ContextBundle, intent *types.TravelIntent, prefs, foodInfo, hotelInfo string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "你是一位经验丰富、亲切专业的旅行规划师，请为游客规划 %s %d 天的旅行攻略。\n", req.Destination, req.Days)

	if weather := b.weatherFragment(bundle, req.Days); weather != "" {
		sb.WriteString("\n**🌤️ 天气情况与出行建议：**\n")
		sb.WriteString(weather)
		sb.WriteString("\n\n请在攻略开头根据以上天气信息，给出穿衣建议、防晒/防雨提醒、以及是否适合户外活动的建议。\n")
	}

	sb.WriteString("\n**用户需求分析：**\n")
	sb.WriteString(b.intentFragment(intent))

	fmt.Fprintf(&sb, "\n\n**基本信息：**\n- 📍 目的地：%s\n- 📅 天数：%d 天\n- 💝 偏好：%s\n- 🚗 出行方式：%s",
		req.Destination, req.Days, prefs, transportDescription(req.TransportMode))
	if req.BudgetLevel != "" {
		fmt.Fprintf(&sb, "\n- 💰 预算偏好：%s", budgetDescription(req.BudgetLevel))
	}
	if req.StartDate != "" {
		fmt.Fprintf(&sb, "\n- 📅 出发日期：%s", req.StartDate)
	}
	if req.Description != "" {
		fmt.Fprintf(&sb, "\n- 📝 详细需求：%s", req.Description)
	}
	sb.WriteString("\n")

	if len(bundle.Attractions) > 0 {
		fmt.Fprintf(&sb, "\n**已查询到的热门景点（可参考）：**\n%s\n", joinNames(bundle.Attractions, 10))
	}
	sb.WriteString(foodInfo)
	sb.WriteString(hotelInfo)
	if len(bundle.PhotoSpots) > 0 {
		fmt.Fprintf(&sb, "\n**拍照打卡点：**\n%s\n", joinNames(bundle.PhotoSpots, 5))
	}

	sb.WriteString(`
**写作风格要求：**
- 以专业导游的口吻，亲切但不失专业
- 使用"您"称呼游客，给出贴心建议
- 适当使用emoji增加可读性 🎉✨🔥
- 推荐要具体实用，说明景点特色和游玩要点
- 提醒注意事项和避坑指南
- 使用标记符号：
  · 📍 地点  · 💰 费用  · ⭐ 推荐指数
  · 🔥 必去  · 💡 小贴士  · ⚠️ 注意事项
  · 📸 拍照点  · 🍜 美食  · 🏨 住宿  · 🚇 交通
- 标题用【】包裹，如【Day1 ` + req.Destination + `初印象】
- 段落清晰，阅读舒适

**交通信息要求（重要！）：**
每个景点之间必须给出详细的交通指引：
- 🚇 地铁：具体到「X号线」，在「XX站」下车，从「X出口」出
- 🚌 公交：具体到「X路/X路」公交车，在「XX站」上下车
- 🚶 步行：标注大约步行时间，如「步行约10分钟」
- 🚕 打车：标注预估费用和时间，如「打车约15分钟，费用20-30元」
- 示例格式：
  「🚇 交通：乘地铁1号线到龙翔桥站，A出口出站后步行5分钟即到」

**规划要求：**
1. **优先满足用户明确提到的地点和需求**
2. 路线合理，同一区域的景点安排在一起，避免来回折腾
3. 每天安排3-4个主要景点，节奏适中，留有休息时间
4. 每个景点标注：门票价格、建议游玩时长、最佳游玩时间
5. 🍜 推荐当地特色美食和餐厅，标注人均价格和招牌菜
6. 📸 标注拍照打卡点和最佳拍摄时间
7. 💰 每天末尾预估当日花费
8. ⚠️ 提醒注意事项（如提前预约、穿着建议、防晒防雨等）
9. 💡 给出实用的本地tips和省钱攻略

**时间安排：**
- 用大致时间段：「上午」「中午」「下午」「傍晚」「晚上」
- 或自然表达：「早起」「午后」「黄昏」「夜间」`)

	sb.WriteString(planSchemaInstruction)
	return sb.String()
}

func (b *PromptBuilder) buildTraveloguePrompt(req types.PlanRequest, prefs, foodInfo, hotelInfo string) string {
	opening := fmt.Sprintf(openingStyles[b.pick(len(openingStyles))], req.Destination, req.Days)
	persona := personas[b.pick(len(personas))]

	var sb strings.Builder
	fmt.Fprintf(&sb, "你是一个真实的小红书旅行博主，请以第一人称写一篇%s%d天游记风格的攻略。\n", req.Destination, req.Days)
	sb.WriteString("\n**重要：这是一篇\"已经发生\"的旅行分享，不是未来规划！**\n")
	fmt.Fprintf(&sb, "\n**开头请使用这个风格（可以稍作修改）：**\n\"%s\"\n", opening)
	fmt.Fprintf(&sb, "\n**写作人设：**\n%s，分享自己真实的旅行体验。\n", persona)

	sb.WriteString(`
**写作风格要求（小红书风格）：**
- 用第一人称"我"来写，像是在跟闺蜜/好友聊天分享
- 大量使用emoji表情符号 🎉✨🔥💯😍🥰
- 使用小红书常见的标记符号：
  · 📍 标注地点
  · 💰 标注价格/费用
  · ⭐ 标注推荐指数（⭐⭐⭐⭐⭐）
  · 🔥 标注热门/必去
  · 💡 标注小贴士
  · ⚠️ 标注避坑提醒
  · 📸 标注拍照点
  · 🍜 标注美食
- 用「」『』等符号突出重点
- 标题用【】包裹，如【Day1】【必吃美食】
- 适当使用分割线 ———— 或 ·····
- 要有真实感，可以说"我们当时..."、"到了才发现..."、"幸好提前..."
- 分享真实的感受，比如"比想象中更美"、"有点失望"、"意外惊喜"
- 可以吐槽一些小问题，增加真实感
- 推荐的店要说"我吃了xxx，味道..."而不是"推荐xxx"
- 每个景点之间顺带说清交通方式，如「我们坐地铁X号线过去的」

**时间描述要求：**
- 不要写精确到分钟的时间如"9:00"、"14:30"
- 用大致时间段，如"上午"、"中午"、"下午"、"傍晚"、"晚上"等等
- 或用自然表达如"早起"、"午后"、"黄昏"、"睡前"等等
`)

	fmt.Fprintf(&sb, "\n**旅行信息：**\n- 📍 目的地：%s\n- 📅 天数：%d 天\n- 💝 主题偏好：%s\n",
		req.Destination, req.Days, prefs)
	sb.WriteString(foodInfo)
	sb.WriteString(hotelInfo)

	sb.WriteString(`
**内容结构：**
1. 开头引入（用上面的风格）+ 行程概览
2. 💡 行前准备小tips
3. 每天的详细行程（【Day1】【Day2】...）
4. 🍜 美食推荐（要说自己吃了什么，标注人均💰）
5. ⚠️ 踩坑提醒（真实遇到的问题）
6. ✨ 总结和建议`)

	sb.WriteString(planSchemaInstruction)
	return sb.String()
}

func (b *PromptBuilder) intentFragment(intent *types.TravelIntent) string {
	var parts []string
	if len(intent.SpecificPlaces) > 0 {
		parts = append(parts, "用户明确想去："+strings.Join(intent.SpecificPlaces, ", "))
	}
	if len(intent.MustEat) > 0 {
		parts = append(parts, "用户想吃："+strings.Join(intent.MustEat, ", "))
	}
	if intent.TravelStyle != "" {
		parts = append(parts, "旅行风格："+intent.TravelStyle)
	}
	if len(intent.SpecialNeeds) > 0 {
		parts = append(parts, "特殊需求："+strings.Join(intent.SpecialNeeds, ", "))
	}
	if intent.AvoidCrowds {
		parts = append(parts, "用户希望避开人多的地方")
	}
	if len(parts) == 0 {
		return "无特殊要求"
	}
	return strings.Join(parts, "\n")
}

func (b *PromptBuilder) weatherFragment(bundle *types.ContextBundle, days int) string {
	if bundle.Weather == nil {
		return ""
	}
	var parts []string
	if live := bundle.Weather.Live; live != nil {
		parts = append(parts, fmt.Sprintf("当前天气：%s，温度：%s℃，湿度：%s%%，风向：%s风",
			orUnknown(live.Weather), orUnknown(live.Temperature), orUnknown(live.Humidity), orUnknown(live.WindDirection)))
	}
	if len(bundle.Weather.Forecasts) > 0 {
		forecasts := bundle.Weather.Forecasts
		if len(forecasts) > days {
			forecasts = forecasts[:days]
		}
		lines := make([]string, 0, len(forecasts))
		for _, f := range forecasts {
			lines = append(lines, fmt.Sprintf("%s %s %s~%s℃", f.Date, f.DayWeather, f.NightTemp, f.DayTemp))
		}
		parts = append(parts, "未来天气预报："+strings.Join(lines, "；"))
	}
	return strings.Join(parts, "\n")
}

func (b *PromptBuilder) foodFragment(bundle *types.ContextBundle) string {
	if len(bundle.Food) == 0 {
		return ""
	}
	names := make([]string, 0, 8)
	for _, f := range bundle.Food[:min(8, len(bundle.Food))] {
		names = append(names, fmt.Sprintf("%s(%s分)", f.Name, formatRating(f.Rating)))
	}
	return fmt.Sprintf("\n**当地热门餐厅（可参考）：**\n%s\n", strings.Join(names, ", "))
}

func (b *PromptBuilder) hotelFragment(bundle *types.ContextBundle) string {
	if len(bundle.Hotels) == 0 {
		return ""
	}
	return fmt.Sprintf("\n**推荐住宿区域/酒店：**\n%s\n", joinNames(bundle.Hotels, 5))
}

func transportDescription(mode types.TransportMode) string {
	switch mode {
	case types.TransportWalking:
		return "步行为主"
	case types.TransportDriving:
		return "自驾出行"
	case types.TransportTransit:
		return "公共交通"
	case types.TransportBicycling:
		return "骑行为主"
	}
	return "灵活安排"
}

func budgetDescription(level string) string {
	switch level {
	case "low":
		return "穷游省钱"
	case "medium":
		return "舒适性价比"
	case "high":
		return "轻奢品质"
	}
	return level
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}
