package generativeAI

import (
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

func newTestGeminiClient() *geminiClient {
	return &geminiClient{
		logger:      slog.New(slog.DiscardHandler),
		model:       "gemini-2.0-flash",
		temperature: 0.7,
		maxTokens:   4096,
	}
}

func contentText(t *testing.T, c *genai.Content) string {
	t.Helper()
	require.NotEmpty(t, c.Parts)
	return c.Parts[0].Text
}

func TestGeminiBuildRequestMapsRoles(t *testing.T) {
	client := newTestGeminiClient()
	history := []types.ChatMessage{
		{Role: "user", Content: "你好"},
		{Role: "assistant", Content: "你好，想去哪里玩？"},
	}

	contents, config := client.buildRequest("custom system", history, "帮我规划杭州两日游")

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, "帮我规划杭州两日游", contentText(t, contents[2]))

	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, "custom system", contentText(t, config.SystemInstruction))
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.7, float64(*config.Temperature), 0.001)
	assert.Equal(t, int32(4096), config.MaxOutputTokens)
}

func TestGeminiBuildRequestDefaultsSystemPrompt(t *testing.T) {
	client := newTestGeminiClient()
	client.maxTokens = 0

	contents, config := client.buildRequest("", nil, "hi")

	require.Len(t, contents, 1)
	assert.Equal(t, DefaultSystemPrompt, contentText(t, config.SystemInstruction))
	assert.Zero(t, config.MaxOutputTokens)
}

func TestClassifyGeminiError(t *testing.T) {
	unauthorized := genai.APIError{Code: http.StatusUnauthorized, Message: "API key not valid"}
	assert.ErrorIs(t, classifyGeminiError(unauthorized), ErrUnauthorized)

	forbidden := genai.APIError{Code: http.StatusForbidden, Message: "permission denied"}
	assert.ErrorIs(t, classifyGeminiError(forbidden), ErrUnauthorized)

	transient := genai.APIError{Code: http.StatusServiceUnavailable, Message: "overloaded"}
	assert.NotErrorIs(t, classifyGeminiError(transient), ErrUnauthorized)

	plain := errors.New("connection reset")
	assert.Equal(t, plain, classifyGeminiError(plain))
}
