package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"audioscribe/internal/model"

	"github.com/sashabaranov/go-openai"
)

// TransformRequest is one stage transformation over a whole text.
type TransformRequest struct {
	Source string
	Kind   model.StageKind
	Model  string
	Prompt string
	APIKey string
}

// Transformer rewrites text for a stage.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (string, error)
}

// OpenAITransformer runs stage transforms through chat completions.
type OpenAITransformer struct {
	baseURL string
	catalog *Catalog
	logger  *slog.Logger
}

// NewOpenAITransformer creates a transformer. An empty baseURL uses api.openai.com.
func NewOpenAITransformer(baseURL string, catalog *Catalog, logger *slog.Logger) *OpenAITransformer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAITransformer{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		catalog: catalog,
		logger:  logger.With("component", "ai.openai"),
	}
}

type transformResult struct {
	Text string `json:"text"`
}

// Transform sends the whole source in one request.
func (t *OpenAITransformer) Transform(ctx context.Context, req TransformRequest) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("openai transform: api key is empty")
	}
	systemPrompt, userPrompt, err := t.catalog.BuildPrompt(req.Kind, req.Source, req.Prompt)
	if err != nil {
		return "", err
	}

	cfg := openai.DefaultConfig(req.APIKey)
	if t.baseURL != "" {
		cfg.BaseURL = t.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: t.catalog.Temperature(req.Kind),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error (%s): %w", req.Model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	content := resp.Choices[0].Message.Content
	t.logger.Debug("stage transformed",
		"kind", req.Kind,
		"model", req.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start))

	return decodeText(content), nil
}

// decodeText pulls "text" out of a JSON reply. Replies that are not JSON are
// used as plain text once fences are stripped.
func decodeText(content string) string {
	stripped := stripCodeFences(content)
	var result transformResult
	if err := json.Unmarshal([]byte(stripped), &result); err == nil {
		return strings.TrimSpace(result.Text)
	}
	return stripped
}

// stripCodeFences removes a surrounding ```lang ... ``` block.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 && !strings.ContainsAny(content[:nl], " {") {
		content = content[nl+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
