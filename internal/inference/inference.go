// Package inference runs on-demand translation inferences: one Bedrock
// model invocation per prompt record of a map batch.
package inference

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

// Record statuses attached to each processed item.
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// ModelInvoker is the subset of the Bedrock runtime client used here.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Invoker translates prompt records through a Bedrock model.
type Invoker struct {
	client  ModelInvoker
	modelID string
	log     *zap.Logger
}

// New creates an Invoker for the given model id.
func New(client ModelInvoker, modelID string, log *zap.Logger) *Invoker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{client: client, modelID: modelID, log: log}
}

// Handle processes every item of the batch. Each output record is the
// input record plus modelOutput and inferenceStatus; a failed record
// carries the error text and ERROR status instead of failing the batch.
func (iv *Invoker) Handle(ctx context.Context, event pipeline.MapEvent) ([]map[string]any, error) {
	outputs := make([]map[string]any, 0, len(event.Items))
	for _, wrapped := range event.Items {
		var record map[string]any
		if err := json.Unmarshal(wrapped.Item, &record); err != nil {
			iv.log.Error("skipping undecodable item", zap.Error(err))
			continue
		}

		text, status := iv.processRecord(ctx, wrapped.Item)
		record["modelOutput"] = text
		record["inferenceStatus"] = status
		outputs = append(outputs, record)
	}
	return outputs, nil
}

func (iv *Invoker) processRecord(ctx context.Context, raw json.RawMessage) (text, status string) {
	out, err := iv.invoke(ctx, raw)
	if err != nil {
		iv.log.Error("record inference failed",
			zap.String("recordId", gjson.GetBytes(raw, "recordId").String()),
			zap.Error(err))
		return fmt.Sprintf("Error: %v", err), StatusError
	}
	return out, StatusSuccess
}

// invoke rewrites the stored prompt into the runtime request shape
// (max_new_tokens and friends, system blocks instead of bare strings)
// and extracts the generated text.
func (iv *Invoker) invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	input := gjson.GetBytes(raw, "modelInput")
	if !input.Exists() {
		return "", fmt.Errorf("record has no modelInput")
	}

	request := map[string]any{
		"messages": json.RawMessage(input.Get("messages").Raw),
		"system": []map[string]string{
			{"text": input.Get("system.0").String()},
		},
		"inferenceConfig": map[string]any{
			"max_new_tokens": input.Get("inferenceConfig.maxTokens").Int(),
			"top_p":          input.Get("inferenceConfig.topP").Float(),
			"top_k":          input.Get("inferenceConfig.topK").Int(),
			"temperature":    input.Get("inferenceConfig.temperature").Float(),
		},
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal runtime request: %w", err)
	}

	out, err := iv.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId: aws.String(iv.modelID),
		Body:    payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke %s: %w", iv.modelID, err)
	}

	result := gjson.GetBytes(out.Body, "output.message.content.0.text")
	if !result.Exists() {
		return "", fmt.Errorf("unexpected response shape from %s", iv.modelID)
	}
	return result.String(), nil
}
