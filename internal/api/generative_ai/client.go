package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

// ErrUnauthorized marks auth and quota rejections from the chat
// backend. These are terminal for the whole pipeline, unlike transient
// network failures.
var ErrUnauthorized = errors.New("chat provider rejected credentials or quota")

// DefaultSystemPrompt is the assistant persona used when the caller
// does not supply its own system prompt.
const DefaultSystemPrompt = `你是「旅行路算子」，一个专业的智能旅行规划助手。你的核心能力是：

1. **懂攻略**：能够根据用户需求，推荐合适的景点、美食、住宿
2. **懂路线**：基于真实地理位置，规划最优路线，避免"时空跳跃"
3. **懂天气**：根据天气预报，动态调整户外行程
4. **懂预算**：估算行程花费，帮助用户控制预算
5. **懂应变**：提供备选方案，应对突发情况

## 注意事项

- 保持友好、专业的语气
- 给出具体、可执行的建议
- 考虑季节、天气等因素
- 路线安排要合理，避免来回奔波
- 如果信息不足，主动询问用户`

// StreamChunk is one increment of a streaming completion. A non-nil
// Err terminates the stream.
type StreamChunk struct {
	Content string
	Err     error
}

// ChatClient is the chat-completion contract consumed by the planner.
// Complete blocks until the full reply is available; CompleteStream
// yields increments on the returned channel and closes it when done.
type ChatClient interface {
	Complete(ctx context.Context, system string, history []types.ChatMessage, message string) (string, error)
	CompleteStream(ctx context.Context, system string, history []types.ChatMessage, message string) (<-chan StreamChunk, error)
}

// Options configures a chat backend. CallTimeout bounds every
// completion call end to end; zero leaves the HTTP client unbounded.
type Options struct {
	Backend     string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	MaxTokens   int
	CallTimeout time.Duration
}

// NewChatClient builds the configured backend. DeepSeek speaks the
// OpenAI-compatible wire protocol, so both share an implementation.
func NewChatClient(ctx context.Context, opts Options, logger *slog.Logger) (ChatClient, error) {
	switch strings.ToLower(opts.Backend) {
	case "deepseek", "openai":
		return newOpenAIClient(opts, logger), nil
	case "gemini":
		return newGeminiClient(ctx, opts, logger)
	}
	return nil, fmt.Errorf("unsupported chat backend: %s", opts.Backend)
}
