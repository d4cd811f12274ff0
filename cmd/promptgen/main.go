// Package main is the entry point for the prompt generator. A
// distributed map hands it batches of translation items; it returns
// one Bedrock prompt record per item, enriched with translation-memory
// examples when the store is configured.
package main

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/config"
	"github.com/mtworks/translation-pipeline/internal/logging"
	"github.com/mtworks/translation-pipeline/internal/pipeline"
	"github.com/mtworks/translation-pipeline/internal/prompt"
	"github.com/mtworks/translation-pipeline/internal/tmstore"
)

var (
	storeOnce sync.Once
	store     *tmstore.Store
)

// memoryAdapter exposes the translation-memory store through the
// generator's lookup interface.
type memoryAdapter struct {
	store *tmstore.Store
}

func (m memoryAdapter) Similar(ctx context.Context, sourceLang, targetLang, sourceText string) ([]prompt.Example, error) {
	segments, err := m.store.Similar(ctx, sourceLang, targetLang, sourceText)
	if err != nil {
		return nil, err
	}
	examples := make([]prompt.Example, len(segments))
	for i, seg := range segments {
		examples[i] = prompt.Example{SourceText: seg.SourceText, TargetText: seg.TargetText}
	}
	return examples, nil
}

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event pipeline.MapEvent) ([]pipeline.PromptRecord, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	env := config.Load()
	log := logging.New()

	// Best effort: a missing or unreachable store means prompts go out
	// without examples, not that the batch fails.
	var memory prompt.MemoryLookup
	if env.DatabaseURL != "" {
		storeOnce.Do(func() {
			embedder := tmstore.NewEmbedder(bedrockruntime.NewFromConfig(cfg), env.EmbeddingModelID)
			s, openErr := tmstore.Open(ctx, env.DatabaseURL, embedder)
			if openErr != nil {
				log.Warn("translation memory unavailable", zap.Error(openErr))
				return
			}
			store = s
		})
		if store != nil {
			memory = memoryAdapter{store: store}
		}
	}

	return prompt.New(memory, log).Handle(ctx, event)
}
