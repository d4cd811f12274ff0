// Package main is the entry point for the inference result
// transformer. It rewrites a distributed-map inference result into the
// line format the quality stages consume.
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

func handleRequest(ctx context.Context, event manifest.MapRunEvent) (manifest.TransformOutput, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return manifest.TransformOutput{}, err
	}

	svc := manifest.NewService(s3.NewFromConfig(cfg), logging.New())
	return svc.TransformInferences(ctx, event)
}
