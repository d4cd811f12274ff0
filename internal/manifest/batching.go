package manifest

import "github.com/mtworks/translation-pipeline/internal/pipeline"

// DefaultMaxTokens is the default token budget per prompt batch handed
// to a single inference invocation.
const DefaultMaxTokens = 3000

// EstimateTokens estimates the token count of a prompt record. Uses a
// simple heuristic: ~4 characters per token for Latin languages.
func EstimateTokens(rec pipeline.PromptRecord) int {
	chars := 0
	for _, msg := range rec.ModelInput.Messages {
		for _, block := range msg.Content {
			chars += len(block.Text)
		}
	}
	for _, sys := range rec.ModelInput.System {
		chars += len(sys)
	}
	tokens := chars / 4
	if tokens == 0 && chars > 0 {
		tokens = 1
	}
	return tokens
}

// BatchByTokens splits prompt records into batches that don't exceed
// maxTokens. Each record is kept whole; a record that alone exceeds
// the budget gets its own batch.
func BatchByTokens(records []pipeline.PromptRecord, maxTokens int) [][]pipeline.PromptRecord {
	if len(records) == 0 {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var batches [][]pipeline.PromptRecord
	var current []pipeline.PromptRecord
	currentTokens := 0

	for _, rec := range records {
		recTokens := EstimateTokens(rec)

		if recTokens > maxTokens {
			if len(current) > 0 {
				batches = append(batches, current)
				current = nil
				currentTokens = 0
			}
			batches = append(batches, []pipeline.PromptRecord{rec})
			continue
		}

		if currentTokens+recTokens > maxTokens && len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}

		current = append(current, rec)
		currentTokens += recTokens
	}

	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
