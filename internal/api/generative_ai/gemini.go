package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"github.com/wayfarer-labs/wayfarer-api/internal/types"
)

var _ ChatClient = (*geminiClient)(nil)

type geminiClient struct {
	logger      *slog.Logger
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newGeminiClient(ctx context.Context, opts Options, logger *slog.Logger) (*geminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.CallTimeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: opts.CallTimeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &geminiClient{
		logger:      logger,
		client:      client,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
	}, nil
}

func (c *geminiClient) buildRequest(system string, history []types.ChatMessage, message string) ([]*genai.Content, *genai.GenerateContentConfig) {
	if system == "" {
		system = DefaultSystemPrompt
	}
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" {
			role = genai.Role(genai.RoleModel)
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = int32(c.maxTokens)
	}
	return contents, config
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return err
}

func (c *geminiClient) Complete(ctx context.Context, system string, history []types.ChatMessage, message string) (string, error) {
	ctx, span := otel.Tracer("ChatClient").Start(ctx, "Complete")
	defer span.End()

	contents, config := c.buildRequest(system, history, message)
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gemini completion failed")
		return "", classifyGeminiError(err)
	}
	return result.Text(), nil
}

func (c *geminiClient) CompleteStream(ctx context.Context, system string, history []types.ChatMessage, message string) (<-chan StreamChunk, error) {
	contents, config := c.buildRequest(system, history, message)

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
			if err != nil {
				select {
				case out <- StreamChunk{Err: classifyGeminiError(err)}:
				case <-ctx.Done():
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- StreamChunk{Content: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
