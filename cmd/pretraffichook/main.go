// Package main is the entry point for the pre-traffic deployment
// validation hook. CodeDeploy runs it before shifting traffic to a new
// function version.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/mtworks/translation-pipeline/internal/config"
	"github.com/mtworks/translation-pipeline/internal/hook"
	"github.com/mtworks/translation-pipeline/internal/logging"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event hook.Event) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}

	env := config.Load()
	r := hook.NewRunner(
		lambdasdk.NewFromConfig(cfg),
		codedeploy.NewFromConfig(cfg),
		env.DeploymentPrefix,
		env.FunctionPrefix,
		hook.PreTrafficPayload,
		logging.New(),
	)
	return r.Run(ctx, event)
}
