// Package batch starts Bedrock batch inference jobs over the prompt
// files a distributed map produced.
package batch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bdtypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/manifest"
)

// JobStarter is the subset of the Bedrock control-plane client used
// here.
type JobStarter interface {
	CreateModelInvocationJob(ctx context.Context, params *bedrock.CreateModelInvocationJobInput, optFns ...func(*bedrock.Options)) (*bedrock.CreateModelInvocationJobOutput, error)
}

// Output reports the started job.
type Output struct {
	StatusCode int    `json:"statusCode"`
	JobArn     string `json:"batchInferenceJobArn"`
}

// Starter launches translation batch jobs.
type Starter struct {
	client  JobStarter
	roleARN string
	modelID string
	log     *zap.Logger
}

// NewStarter creates a Starter. roleARN is the execution role Bedrock
// assumes to read and write the job's S3 data.
func NewStarter(client JobStarter, roleARN, modelID string, log *zap.Logger) *Starter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Starter{client: client, roleARN: roleARN, modelID: modelID, log: log}
}

// Start creates a model invocation job reading the resolved prompt
// file and writing under inferences/<executionId>/ in the same bucket.
func (st *Starter) Start(ctx context.Context, loc manifest.ResultLocation) (Output, error) {
	if st.roleARN == "" {
		return Output{}, fmt.Errorf("batch role ARN is not configured")
	}

	out, err := st.client.CreateModelInvocationJob(ctx, &bedrock.CreateModelInvocationJobInput{
		JobName: aws.String(fmt.Sprintf("MachineTranslationJob-%s", loc.ExecutionID)),
		RoleArn: aws.String(st.roleARN),
		ModelId: aws.String(st.modelID),
		InputDataConfig: &bdtypes.ModelInvocationJobInputDataConfigMemberS3InputDataConfig{
			Value: bdtypes.ModelInvocationJobS3InputDataConfig{
				S3Uri: aws.String(fmt.Sprintf("s3://%s/%s", loc.Bucket, loc.Key)),
			},
		},
		OutputDataConfig: &bdtypes.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig{
			Value: bdtypes.ModelInvocationJobS3OutputDataConfig{
				S3Uri: aws.String(fmt.Sprintf("s3://%s/inferences/%s/", loc.Bucket, loc.ExecutionID)),
			},
		},
	})
	if err != nil {
		return Output{}, fmt.Errorf("failed to create model invocation job: %w", err)
	}

	jobArn := aws.ToString(out.JobArn)
	st.log.Info("started batch inference job", zap.String("jobArn", jobArn))
	return Output{StatusCode: 200, JobArn: jobArn}, nil
}
