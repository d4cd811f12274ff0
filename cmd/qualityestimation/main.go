// Package main is the entry point for the quality-estimation starter.
// Depending on the configured mode it either submits the translations
// to a self-hosted asynchronous SageMaker endpoint or scores them
// through a marketplace real-time endpoint.
package main

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/mtworks/translation-pipeline/internal/config"
	"github.com/mtworks/translation-pipeline/internal/estimator"
	"github.com/mtworks/translation-pipeline/internal/logging"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, req estimator.Request) (estimator.Result, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return estimator.Result{}, err
	}

	env := config.Load()
	log := logging.New()
	runtime := sagemakerruntime.NewFromConfig(cfg)

	var est estimator.Estimator
	if strings.ToUpper(env.EstimationMode) == estimator.ModeMarketplaceSelfHosted {
		est, err = estimator.NewMarketplaceEndpoint(
			runtime, s3.NewFromConfig(cfg), sfn.NewFromConfig(cfg),
			env.MarketplaceEndpointName, log)
	} else {
		est, err = estimator.NewAsyncEndpoint(runtime, env.SageMakerEndpointName, log)
	}
	if err != nil {
		return estimator.Result{}, err
	}

	return est.InvokeEndpoint(ctx, req)
}
