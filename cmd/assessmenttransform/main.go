// Package main is the entry point for the assessment result
// transformer. It rewrites a judge batch output file into the final
// assessed-translations file.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mtworks/translation-pipeline/internal/assess"
	"github.com/mtworks/translation-pipeline/internal/logging"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, req assess.TransformRequest) (assess.TransformOutput, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return assess.TransformOutput{}, err
	}

	tr := assess.NewTransformer(s3.NewFromConfig(cfg), logging.New())
	return tr.Transform(ctx, req)
}
