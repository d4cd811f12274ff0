// Package main is the entry point for the quality-estimation
// completion handler. SageMaker async inference publishes success and
// error notifications to SNS; this function relays them to the waiting
// Step Functions task.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/mtworks/translation-pipeline/internal/logging"
	"github.com/mtworks/translation-pipeline/internal/notify"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event events.SNSEvent) (notify.Response, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return notify.Response{}, err
	}

	h := notify.NewHandler(sfn.NewFromConfig(cfg), logging.New())
	return h.Handle(ctx, event)
}
