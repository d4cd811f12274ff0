// Package prompt builds translation request bodies for the Bedrock
// Nova Pro model from the items of a map batch.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

// Default inference parameters for translation prompts.
const (
	MaxTokens   = 500
	TopP        = 0.9
	TopK        = 20
	Temperature = 0.7
)

// Example is a translation-memory segment rendered into the prompt's
// Examples section.
type Example struct {
	SourceText string
	TargetText string
}

// MemoryLookup finds translation-memory segments similar to a source
// text. Implementations live in the tmstore package.
type MemoryLookup interface {
	Similar(ctx context.Context, sourceLang, targetLang, sourceText string) ([]Example, error)
}

// Generator turns translation items into Bedrock prompt records.
type Generator struct {
	memory MemoryLookup // nil disables translation-memory context
	log    *zap.Logger
}

// New creates a Generator. memory may be nil.
func New(memory MemoryLookup, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{memory: memory, log: log}
}

// Handle builds one prompt record per well-formed item. Items missing
// source text or a language code are skipped, not fatal.
func (g *Generator) Handle(ctx context.Context, event pipeline.MapEvent) ([]pipeline.PromptRecord, error) {
	records := make([]pipeline.PromptRecord, 0, len(event.Items))
	for _, wrapped := range event.Items {
		item, err := decodeItem(wrapped)
		if err != nil {
			g.log.Error("skipping undecodable item", zap.Error(err))
			continue
		}
		if item.SourceText == "" || item.SourceLang == "" || item.TargetLang == "" {
			g.log.Error("skipping item with missing required parameters",
				zap.String("recordId", item.RecordID))
			continue
		}
		records = append(records, g.buildRecord(ctx, item))
	}
	return records, nil
}

func decodeItem(wrapped pipeline.MapItem) (pipeline.Item, error) {
	var item pipeline.Item
	if err := json.Unmarshal(wrapped.Item, &item); err != nil {
		return pipeline.Item{}, fmt.Errorf("failed to decode map item: %w", err)
	}
	return item, nil
}

func (g *Generator) buildRecord(ctx context.Context, item pipeline.Item) pipeline.PromptRecord {
	system, user := g.buildPrompt(ctx, item)
	return pipeline.PromptRecord{
		RecordID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		ModelInput: pipeline.ModelInput{
			SchemaVersion: "messages-v1",
			Messages: []pipeline.Message{
				{Role: "user", Content: []pipeline.ContentBlock{{Text: user}}},
			},
			System: []string{system},
			InferenceConfig: pipeline.InferenceConfig{
				MaxTokens:   MaxTokens,
				TopP:        TopP,
				TopK:        TopK,
				Temperature: Temperature,
			},
		},
	}
}

// buildPrompt renders the system and user prompts. Translation-memory
// examples are best effort; a lookup failure produces a prompt without
// context rather than a failed record.
func (g *Generator) buildPrompt(ctx context.Context, item pipeline.Item) (system, user string) {
	system = fmt.Sprintf("You are a professional translator with expertise in %s and %s.",
		item.SourceLang, item.TargetLang)

	memory := "None"
	if g.memory != nil {
		examples, err := g.memory.Similar(ctx, item.SourceLang, item.TargetLang, item.SourceText)
		if err != nil {
			g.log.Warn("translation memory lookup failed", zap.Error(err))
		} else if len(examples) > 0 {
			var b strings.Builder
			for _, ex := range examples {
				fmt.Fprintf(&b, "%s:%s ==> %s:%s\n",
					item.SourceLang, ex.SourceText, item.TargetLang, ex.TargetText)
			}
			memory = b.String()
		}
	}

	user = fmt.Sprintf(`Task:
Translate the provided source text from %[1]s to %[2]s.

Source text (in %[1]s):
%[3]s

Context information:
    Examples:
    %[4]s

    Terminology:
    None

Model Instructions and Guidelines:
1. Maintain the original meaning, tone, and nuance
2. Preserve formatting, including paragraph breaks and bullet points
3. Keep any proper nouns, technical terms, or brand names as they appear in the original text unless there's a standard translation
4. ONLY translate the source text. DO NOT Translate the context information
5. Use the examples provided in Examples section to influence the translation output's tone and vocabulary.
6. Use the custom terms in the Terminology section as strict translation guidelines.
7. For ambiguous terms, choose the most appropriate translation based on context
8. Ensure cultural appropriateness and localization where necessary
9. Return only the translated text without explanations or notes

Translation (%[2]s):
`, item.SourceLang, item.TargetLang, item.SourceText, memory)
	return system, user
}
