package tmstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// ModelInvoker is the subset of the Bedrock runtime client used for
// embedding generation.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Embedder produces text embeddings with a Titan embedding model.
type Embedder struct {
	client  ModelInvoker
	modelID string
}

// NewEmbedder creates an Embedder for the given model id
// (amazon.titan-embed-text-v2:0 in the deployed pipeline).
func NewEmbedder(client ModelInvoker, modelID string) *Embedder {
	return &Embedder{client: client, modelID: modelID}
}

// Embed returns the embedding vector for a text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	payload, err := json.Marshal(map[string]string{"inputText": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke %s: %w", e.modelID, err)
	}

	var resp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding model %s returned an empty vector", e.modelID)
	}
	return resp.Embedding, nil
}
