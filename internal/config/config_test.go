package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func mapLookup(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.ini")
}

// TestLoadDefaults verifies fallbacks when nothing is configured.
func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{"AUDIOSCRIBE_CONFIG": missingFile(t)}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.STTProvider != "openai" || cfg.DatabaseDriver != "pgx" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.TranscribeModels) != 2 || cfg.TranscribeModels[0] != "whisper-1" {
		t.Fatalf("TranscribeModels = %v", cfg.TranscribeModels)
	}
	if cfg.AutoSaveInterval != 10*time.Second || cfg.AutoSaveMinGap != 30*time.Second || cfg.ProbeInterval != 15*time.Second {
		t.Fatalf("durations = %v %v %v", cfg.AutoSaveInterval, cfg.AutoSaveMinGap, cfg.ProbeInterval)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v, want info", cfg.LogLevel)
	}
}

// TestEnvironmentOverridesFile verifies the INI layer sits beneath the environment.
func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audioscribe.ini")
	content := "port = 9090\n\n[models]\ntext_models = gpt-x , gpt-y\n\n[storage]\nupload_dir = /srv/up\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}

	cfg, err := LoadFrom(mapLookup(map[string]string{
		"AUDIOSCRIBE_CONFIG": path,
		"PORT":               "7070",
		"LOG_LEVEL":          "debug",
		"TRANSCRIBE_MODELS":  "m1,,m2",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("Port = %q, want env value", cfg.Port)
	}
	if cfg.UploadDir != "/srv/up" {
		t.Fatalf("UploadDir = %q, want file value", cfg.UploadDir)
	}
	if len(cfg.TextModels) != 2 || cfg.TextModels[1] != "gpt-y" {
		t.Fatalf("TextModels = %v", cfg.TextModels)
	}
	if len(cfg.TranscribeModels) != 2 || cfg.TranscribeModels[1] != "m2" {
		t.Fatalf("TranscribeModels = %v", cfg.TranscribeModels)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

// TestLoadRejectsBadValues verifies validation errors are joined.
func TestLoadRejectsBadValues(t *testing.T) {
	_, err := LoadFrom(mapLookup(map[string]string{
		"AUDIOSCRIBE_CONFIG": missingFile(t),
		"STT_PROVIDER":       "fpt",
		"AUTOSAVE_INTERVAL":  "soon",
	}))
	if err == nil {
		t.Fatal("LoadFrom() error = nil, want validation error")
	}
	for _, want := range []string{"FPT_AI_API_KEY", "AUTOSAVE_INTERVAL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}

	if _, err := LoadFrom(mapLookup(map[string]string{
		"AUDIOSCRIBE_CONFIG": missingFile(t),
		"STT_PROVIDER":       "google",
	})); err == nil {
		t.Fatal("unknown provider accepted")
	}
}
