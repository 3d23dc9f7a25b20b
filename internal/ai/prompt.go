package ai

import (
	_ "embed"
	"fmt"
	"strings"

	"audioscribe/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// StagePrompt is the instruction template for one stage kind.
type StagePrompt struct {
	Temperature float32 `yaml:"temperature"`
	Instruction string  `yaml:"instruction"`
}

// Catalog holds the system prompt and per-stage instructions.
type Catalog struct {
	System string                          `yaml:"system"`
	Stages map[model.StageKind]StagePrompt `yaml:"stages"`
}

// ParseCatalog decodes a YAML prompt catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if strings.TrimSpace(c.System) == "" {
		return nil, fmt.Errorf("parse prompt catalog: system prompt is empty")
	}
	for kind := range c.Stages {
		if !kind.Valid() || kind == model.StageRaw {
			return nil, fmt.Errorf("parse prompt catalog: unexpected stage %q", kind)
		}
	}
	return &c, nil
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(promptsYAML)
	if err != nil {
		panic(err)
	}
	return c
}

// BuildPrompt builds the system and user messages for a stage run.
func (c *Catalog) BuildPrompt(kind model.StageKind, source, custom string) (string, string, error) {
	sp, ok := c.Stages[kind]
	if !ok {
		return "", "", fmt.Errorf("no prompt for stage %s", kind)
	}
	instruction := strings.TrimSpace(sp.Instruction)
	if kind == model.StageCustom {
		if strings.TrimSpace(custom) == "" {
			return "", "", fmt.Errorf("custom stage requires a prompt")
		}
		instruction = strings.ReplaceAll(instruction, "{prompt}", strings.TrimSpace(custom))
	}

	user := fmt.Sprintf("%s\n\nText:\n\"\"\"\n%s\n\"\"\"", instruction, source)
	return strings.TrimSpace(c.System), user, nil
}

// Temperature returns the sampling temperature for kind.
func (c *Catalog) Temperature(kind model.StageKind) float32 {
	return c.Stages[kind].Temperature
}
