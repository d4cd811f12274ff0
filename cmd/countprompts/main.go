// Package main is the entry point for the prompt counter. It resolves
// a distributed-map result manifest and reports how many prompt
// records the run produced, so the workflow can pick between on-demand
// and batch inference.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mtworks/translation-pipeline/internal/logging"
	"github.com/mtworks/translation-pipeline/internal/manifest"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event manifest.MapRunEvent) (manifest.CountOutput, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return manifest.CountOutput{}, err
	}

	svc := manifest.NewService(s3.NewFromConfig(cfg), logging.New())
	return svc.CountPrompts(ctx, event)
}
