// Package main is the entry point for the on-demand inference worker.
// Each map batch of prompt records is translated synchronously through
// Bedrock.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/mtworks/translation-pipeline/internal/config"
	"github.com/mtworks/translation-pipeline/internal/inference"
	"github.com/mtworks/translation-pipeline/internal/logging"
	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event pipeline.MapEvent) ([]map[string]any, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	env := config.Load()
	iv := inference.New(bedrockruntime.NewFromConfig(cfg), env.ModelID, logging.New())
	return iv.Handle(ctx, event)
}
