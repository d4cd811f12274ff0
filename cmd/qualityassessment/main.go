// Package main is the entry point for the translation quality
// assessor. Map batches are graded on demand with an LLM judge; batch
// inference results are resubmitted as a Bedrock judge batch job.
package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/tidwall/gjson"

	"github.com/mtworks/translation-pipeline/internal/assess"
	"github.com/mtworks/translation-pipeline/internal/config"
	"github.com/mtworks/translation-pipeline/internal/logging"
	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

func main() {
	lambda.Start(handleRequest)
}

func handleRequest(ctx context.Context, event json.RawMessage) (any, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	env := config.Load()
	log := logging.New()
	params := assess.Params{
		MaxNewTokens: env.MaxNewTokens,
		TopP:         env.TopP,
		Temperature:  env.Temperature,
	}

	if gjson.GetBytes(event, "inferenceMethod").String() == "batch" {
		var req assess.BatchRequest
		if err := json.Unmarshal(event, &req); err != nil {
			return nil, err
		}
		runner := assess.NewBatchRunner(
			s3.NewFromConfig(cfg), bedrock.NewFromConfig(cfg),
			ssm.NewFromConfig(cfg), sfn.NewFromConfig(cfg),
			env.BatchRoleARN, env.ModelID, params, log)
		return runner.Start(ctx, req)
	}

	var mapEvent pipeline.MapEvent
	if err := json.Unmarshal(event, &mapEvent); err != nil {
		return nil, err
	}
	assessor := assess.New(bedrockruntime.NewFromConfig(cfg), env.ModelID, params, log)
	return assessor.HandleOnDemand(ctx, mapEvent)
}
