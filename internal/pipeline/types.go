// Package pipeline contains the types shared across the pipeline's
// Lambda functions: the distributed-map event envelope, the Bedrock
// messages-v1 prompt shapes, and JSONL helpers.
package pipeline

import "encoding/json"

// Item is one translation unit moving through the map states.
type Item struct {
	RecordID       string   `json:"recordId,omitempty"`
	SourceText     string   `json:"source_text,omitempty"`
	SourceLang     string   `json:"source_lang,omitempty"`
	TargetLang     string   `json:"target_lang,omitempty"`
	TranslatedText string   `json:"translated_text,omitempty"`
	Score          *float64 `json:"score,omitempty"`
}

// MapEvent is the Step Functions distributed-map batch envelope.
type MapEvent struct {
	Items []MapItem `json:"Items"`
}

// MapItem wraps one element of a map batch. The payload shape differs
// per state, so it stays raw until the owning handler decodes it.
type MapItem struct {
	Item json.RawMessage `json:"item"`
}

// Message is a Bedrock messages-v1 conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a single text block inside a message.
type ContentBlock struct {
	Text string `json:"text"`
}

// InferenceConfig carries the sampling parameters in the prompt-record
// field names. The runtime request uses different names; see the
// inference package.
type InferenceConfig struct {
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	TopK        int     `json:"topK,omitempty"`
	Temperature float64 `json:"temperature"`
}

// ModelInput is the model request stored in a prompt record.
type ModelInput struct {
	SchemaVersion   string          `json:"schemaVersion,omitempty"`
	Messages        []Message       `json:"messages"`
	System          []string        `json:"system"`
	InferenceConfig InferenceConfig `json:"inferenceConfig"`
}

// PromptRecord is one line of the prompts JSONL file consumed by batch
// inference jobs.
type PromptRecord struct {
	RecordID   string     `json:"recordId"`
	ModelInput ModelInput `json:"modelInput"`
}
