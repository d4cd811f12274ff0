// Package estimator invokes the translation-quality estimation
// endpoint. Two implementations exist: a self-hosted asynchronous
// SageMaker endpoint and a marketplace real-time endpoint.
package estimator

import (
	"context"
	"strings"
)

// Estimation modes selected through QUALITY_ESTIMATION_MODE.
const (
	ModeOpenSourceSelfHosted  = "OPEN_SOURCE_SELF_HOSTED"
	ModeMarketplaceSelfHosted = "MARKETPLACE_SELF_HOSTED"
)

// Request describes one estimation run over a JSONL file in S3.
type Request struct {
	ExecutionID string `json:"executionId"`
	InputBucket string `json:"input_bucket"`
	InputFile   string `json:"input_file"`
	TaskToken   string `json:"taskToken"`
}

// Result is the Lambda-visible outcome of an estimation invocation.
type Result struct {
	StatusCode     int    `json:"statusCode"`
	ExecutionID    string `json:"executionId,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
	OutputLocation string `json:"outputLocation,omitempty"`
	Message        string `json:"message"`
	RequestToken   string `json:"requestToken,omitempty"`
}

// Estimator invokes the quality-estimation endpoint for one input file.
type Estimator interface {
	InvokeEndpoint(ctx context.Context, req Request) (Result, error)
}

// Select picks the estimator for the configured mode. Anything other
// than the marketplace mode falls back to the async endpoint.
func Select(mode string, async *AsyncEndpoint, marketplace *MarketplaceEndpoint) Estimator {
	if strings.ToUpper(mode) == ModeMarketplaceSelfHosted {
		return marketplace
	}
	return async
}
