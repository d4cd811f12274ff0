// Package main is the entry point for the batch inference starter.
// Large prompt runs skip the on-demand path; this function resolves
// the prompt file from the map manifest and submits it as a Bedrock
// batch job.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mtworks/translation-pipeline/internal/batch"
	"github.com/mtworks/translation-pipeline/internal/config"
	"github.com/mtworks/translation-pipeline/internal/logging"
	"github.com/mtworks/translation-pipeline/internal/manifest"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event manifest.MapRunEvent) (batch.Output, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return batch.Output{}, err
	}

	env := config.Load()
	log := logging.New()

	loc, err := manifest.NewService(s3.NewFromConfig(cfg), log).ResolveResult(ctx, event)
	if err != nil {
		return batch.Output{}, err
	}

	starter := batch.NewStarter(bedrock.NewFromConfig(cfg), env.BatchRoleARN, env.ModelID, log)
	return starter.Start(ctx, loc)
}
