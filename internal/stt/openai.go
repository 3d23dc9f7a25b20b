package stt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider transcribes through an OpenAI-compatible audio endpoint.
type OpenAIProvider struct {
	baseURL string
	logger  *slog.Logger
}

// NewOpenAIProvider creates the provider. An empty baseURL uses api.openai.com.
func NewOpenAIProvider(baseURL string, logger *slog.Logger) *OpenAIProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIProvider{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		logger:  logger.With("component", "stt.openai"),
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Transcribe uploads one chunk. The key is taken per call so credential
// updates apply to the next chunk.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	if req.APIKey == "" {
		return "", fmt.Errorf("openai transcription: api key is empty")
	}
	start := time.Now()

	cfg := openai.DefaultConfig(req.APIKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    req.Model,
		FilePath: chunkFileName(req.MimeType),
		Reader:   bytes.NewReader(req.Audio),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription (%s): %w", req.Model, err)
	}

	text := strings.TrimSpace(resp.Text)
	p.logger.Debug("chunk transcribed",
		"model", req.Model,
		"bytes", len(req.Audio),
		"chars", len(text),
		"duration", time.Since(start))
	return text, nil
}

func chunkFileName(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav":
		return "chunk.wav"
	case "audio/ogg":
		return "chunk.ogg"
	default:
		return "chunk.mp3"
	}
}
