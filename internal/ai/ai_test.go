package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"audioscribe/internal/model"
)

// TestDefaultCatalogCoversStages verifies every non-RAW stage has a prompt.
func TestDefaultCatalogCoversStages(t *testing.T) {
	c := DefaultCatalog()
	for _, kind := range model.StageKinds {
		if kind == model.StageRaw {
			continue
		}
		if _, ok := c.Stages[kind]; !ok {
			t.Fatalf("missing prompt for %s", kind)
		}
	}
}

// TestParseCatalogRejectsUnknownStage verifies catalog validation.
func TestParseCatalogRejectsUnknownStage(t *testing.T) {
	_, err := ParseCatalog([]byte("system: x\nstages:\n  SUMMARY:\n    instruction: y\n"))
	if err == nil {
		t.Fatal("ParseCatalog() accepted unknown stage")
	}
	if _, err := ParseCatalog([]byte("stages: {}\n")); err == nil {
		t.Fatal("ParseCatalog() accepted empty system prompt")
	}
}

// TestBuildPromptCustom verifies the custom instruction is substituted.
func TestBuildPromptCustom(t *testing.T) {
	c := DefaultCatalog()
	_, user, err := c.BuildPrompt(model.StageCustom, "source text", "translate to French")
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !strings.Contains(user, "translate to French") || strings.Contains(user, "{prompt}") {
		t.Fatalf("user prompt = %q", user)
	}
	if !strings.Contains(user, "source text") {
		t.Fatalf("user prompt lacks source: %q", user)
	}
	if _, _, err := c.BuildPrompt(model.StageCustom, "x", "  "); err == nil {
		t.Fatal("BuildPrompt() accepted empty custom prompt")
	}
	if _, _, err := c.BuildPrompt(model.StageRaw, "x", ""); err == nil {
		t.Fatal("BuildPrompt() accepted RAW")
	}
}

// TestDecodeText verifies fence stripping and JSON fallback.
func TestDecodeText(t *testing.T) {
	cases := map[string]string{
		`{"text":"hello"}`:                     "hello",
		"```json\n{\"text\":\"fenced\"}\n```": "fenced",
		"```\nplain body\n```":                 "plain body",
		"just text":                            "just text",
	}
	for in, want := range cases {
		if got := decodeText(in); got != want {
			t.Fatalf("decodeText(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestOpenAITransform verifies the chat request and reply decoding.
func TestOpenAITransform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "gpt-4o-mini" || len(body.Messages) != 2 {
			t.Errorf("request = %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"text\":\"## Intro\\nhello\"}"}}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAITransformer(srv.URL+"/v1", nil, nil)
	out, err := tr.Transform(context.Background(), TransformRequest{
		Source: "hello",
		Kind:   model.StageTitles,
		Model:  "gpt-4o-mini",
		APIKey: "sk-test",
	})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if out != "## Intro\nhello" {
		t.Fatalf("out = %q", out)
	}
}
