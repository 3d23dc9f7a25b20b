package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// DefaultFile is read when AUDIOSCRIBE_CONFIG is not set. A missing file is fine.
const DefaultFile = "audioscribe.ini"

type Config struct {
	Port string

	OpenAIKey     string
	OpenAIBaseURL string
	STTProvider   string
	FPTApiKey     string
	FPTSTTURL     string

	TranscribeModels []string
	TextModels       []string

	DatabaseURL    string
	DatabaseDriver string

	UploadDir   string
	LibraryDir  string
	FFmpegPath  string
	FFprobePath string

	ProbeURL      string
	ProbeInterval time.Duration

	AutoSaveInterval time.Duration
	AutoSaveMinGap   time.Duration

	LogLevel slog.Level
}

// Lookup reads one variable. os.LookupEnv in production.
type Lookup func(key string) (string, bool)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds the config from lookup, with the INI file beneath it.
func LoadFrom(lookup Lookup) (*Config, error) {
	file := DefaultFile
	if v, ok := lookup("AUDIOSCRIBE_CONFIG"); ok && v != "" {
		file = v
	}
	defaults, err := readFile(file)
	if err != nil {
		return nil, err
	}

	getEnv := func(key, fallback string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v, ok := defaults[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		STTProvider:      strings.ToLower(getEnv("STT_PROVIDER", "openai")),
		FPTApiKey:        getEnv("FPT_AI_API_KEY", ""),
		FPTSTTURL:        getEnv("FPT_AI_STT_URL", "https://api.fpt.ai/hmi/asr/v1"),
		TranscribeModels: splitList(getEnv("TRANSCRIBE_MODELS", "whisper-1,gpt-4o-mini-transcribe")),
		TextModels:       splitList(getEnv("TEXT_MODELS", "gpt-4o-mini,gpt-4o")),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseDriver:   getEnv("DATABASE_DRIVER", "pgx"),
		UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
		LibraryDir:       getEnv("LIBRARY_DIR", ""),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
		ProbeURL:         getEnv("CONNECTIVITY_PROBE_URL", "https://api.openai.com/v1/models"),
	}

	var errs []error
	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"CONNECTIVITY_PROBE_INTERVAL", "15s", &cfg.ProbeInterval},
		{"AUTOSAVE_INTERVAL", "10s", &cfg.AutoSaveInterval},
		{"AUTOSAVE_MIN_GAP", "30s", &cfg.AutoSaveMinGap},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", d.key, getEnv(d.key, d.fallback)))
			continue
		}
		*d.dst = v
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	switch cfg.STTProvider {
	case "openai":
	case "fpt":
		if cfg.FPTApiKey == "" {
			errs = append(errs, errors.New("FPT_AI_API_KEY is required when STT_PROVIDER=fpt"))
		}
	default:
		errs = append(errs, fmt.Errorf("STT_PROVIDER must be openai or fpt, got %q", cfg.STTProvider))
	}
	if len(cfg.TranscribeModels) == 0 {
		errs = append(errs, errors.New("TRANSCRIBE_MODELS must name at least one model"))
	}
	if len(cfg.TextModels) == 0 {
		errs = append(errs, errors.New("TEXT_MODELS must name at least one model"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	// OpenAI key is optional at startup; it can be supplied at runtime.
	return cfg, nil
}

// readFile flattens every section of an INI file into KEY=value pairs.
// Keys are upper-cased so `port = 9090` matches PORT.
func readFile(path string) (map[string]string, error) {
	out := map[string]string{}
	f, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	for _, section := range f.Sections() {
		for _, key := range section.Keys() {
			out[strings.ToUpper(key.Name())] = strings.TrimSpace(key.String())
		}
	}
	return out, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
