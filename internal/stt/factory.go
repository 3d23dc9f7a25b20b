package stt

import (
	"fmt"
	"log/slog"
	"strings"
)

const defaultFPTURL = "https://api.fpt.ai/hmi/asr/v1"

// Options selects and configures a provider.
type Options struct {
	Provider  string
	BaseURL   string
	FPTAPIKey string
	FPTURL    string
}

// CreateProvider creates an STT provider based on configuration
func CreateProvider(opts Options, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name := strings.ToLower(strings.TrimSpace(opts.Provider))
	if name == "" {
		name = "openai"
		logger.Info("STT_PROVIDER not set, defaulting to openai")
	}

	switch name {
	case "openai":
		return NewOpenAIProvider(opts.BaseURL, logger), nil
	case "fpt":
		return createFPTProvider(opts, logger)
	default:
		return nil, fmt.Errorf("unsupported STT provider: %s. Supported: openai, fpt", name)
	}
}

func createFPTProvider(opts Options, logger *slog.Logger) (Provider, error) {
	if opts.FPTAPIKey == "" {
		return nil, fmt.Errorf("FPT_AI_API_KEY is not set")
	}
	url := opts.FPTURL
	if url == "" {
		url = defaultFPTURL
		logger.Info("FPT_AI_STT_URL not set, using default", "url", url)
	}
	return NewFPTProvider(opts.FPTAPIKey, url, logger), nil
}
