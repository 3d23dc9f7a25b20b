package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// FPTProvider implements STT using FPT.AI Speech-to-Text API
type FPTProvider struct {
	apiKey string
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewFPTProvider creates a new FPT STT provider
func NewFPTProvider(apiKey, url string, logger *slog.Logger) *FPTProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FPTProvider{
		apiKey: apiKey,
		url:    url,
		client: &http.Client{Timeout: 90 * time.Second},
		logger: logger.With("component", "stt.fpt"),
	}
}

// Name returns the provider name
func (p *FPTProvider) Name() string {
	return "fpt"
}

// FPTSTTResponse represents FPT.AI STT API response
type FPTSTTResponse struct {
	Hypotheses []struct {
		Utterance  string  `json:"utterance"`
		Confidence float64 `json:"confidence"`
	} `json:"hypotheses"`
	ErrorCode int    `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Transcribe posts the chunk bytes. FPT has a single model, so req.Model is
// only used for logging.
func (p *FPTProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(req.Audio))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "text/plain")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request to FPT.AI: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("api error", "status", resp.StatusCode, "body", preview(body))
		return "", fmt.Errorf("FPT.AI API returned status %d: %s", resp.StatusCode, preview(body))
	}

	var sttResp FPTSTTResponse
	if err := json.Unmarshal(body, &sttResp); err != nil {
		return "", fmt.Errorf("failed to parse FPT.AI response: %w", err)
	}
	if sttResp.ErrorCode != 0 {
		return "", fmt.Errorf("FPT.AI API error %d: %s", sttResp.ErrorCode, sttResp.Message)
	}

	// No hypotheses means silence.
	if len(sttResp.Hypotheses) == 0 {
		p.logger.Debug("no hypotheses returned", "model", req.Model)
		return "", nil
	}

	hyp := sttResp.Hypotheses[0]
	transcript := strings.TrimSpace(hyp.Utterance)
	p.logger.Debug("chunk transcribed",
		"confidence", hyp.Confidence,
		"chars", len(transcript),
		"duration", time.Since(start))
	return transcript, nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
