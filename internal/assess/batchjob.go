package assess

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bdtypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/batch"
	"github.com/mtworks/translation-pipeline/internal/estimator"
	"github.com/mtworks/translation-pipeline/internal/manifest"
	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

// BatchRequest starts an assessment batch over an inference output
// file.
type BatchRequest struct {
	ExecutionID     string `json:"executionId"`
	InputBucket     string `json:"input_bucket"`
	InputFile       string `json:"input_file"`
	TaskToken       string `json:"taskToken"`
	InferenceMethod string `json:"inferenceMethod"`
}

// BatchOutput reports the started assessment job.
type BatchOutput struct {
	StatusCode         int    `json:"statusCode"`
	JobArn             string `json:"jobArn"`
	JobName            string `json:"jobName"`
	OutputLocation     string `json:"outputLocation"`
	TaskTokenParameter string `json:"taskTokenParameter"`
}

// ParameterPutter is the subset of the SSM client used to stash the
// task token for the job-completion handler.
type ParameterPutter interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// BatchRunner prepares judge prompts and launches Bedrock batch
// assessment jobs.
type BatchRunner struct {
	store    manifest.ObjectStore
	jobs     batch.JobStarter
	params   ParameterPutter
	notifier estimator.TaskNotifier

	roleARN string
	modelID string
	judge   Params
	log     *zap.Logger
}

// NewBatchRunner creates a BatchRunner.
func NewBatchRunner(store manifest.ObjectStore, jobs batch.JobStarter, params ParameterPutter, notifier estimator.TaskNotifier, roleARN, modelID string, judge Params, log *zap.Logger) *BatchRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchRunner{
		store:    store,
		jobs:     jobs,
		params:   params,
		notifier: notifier,
		roleARN:  roleARN,
		modelID:  modelID,
		judge:    judge,
		log:      log,
	}
}

// Start launches the batch assessment. On failure it sends a task
// failure before returning, so the waiting execution gets a terminal
// signal either way.
func (b *BatchRunner) Start(ctx context.Context, req BatchRequest) (BatchOutput, error) {
	out, err := b.start(ctx, req)
	if err != nil {
		b.log.Error("failed to start batch assessment job", zap.Error(err))
		if req.TaskToken != "" {
			if _, failErr := b.notifier.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
				TaskToken: aws.String(req.TaskToken),
				Error:     aws.String("BatchAssessmentJobStartError"),
				Cause:     aws.String(err.Error()),
			}); failErr != nil {
				b.log.Error("failed to send task failure", zap.Error(failErr))
			}
		}
		return BatchOutput{}, err
	}
	return out, nil
}

func (b *BatchRunner) start(ctx context.Context, req BatchRequest) (BatchOutput, error) {
	if b.roleARN == "" {
		return BatchOutput{}, fmt.Errorf("batch role ARN is not configured")
	}

	// Callers sometimes pass the key with the bucket prepended.
	inputKey := req.InputFile
	if req.InputBucket != "" && strings.Contains(inputKey, req.InputBucket+"/") {
		inputKey = strings.SplitN(inputKey, req.InputBucket+"/", 2)[1]
	}
	prefix, _, _ := strings.Cut(inputKey, "pipeline")

	promptsKey, err := b.prepareJudgePrompts(ctx, req.InputBucket, inputKey, prefix)
	if err != nil {
		return BatchOutput{}, err
	}

	jobName := fmt.Sprintf("assessment-job-%s", req.ExecutionID)
	outputLocation := fmt.Sprintf("s3://%s/%spipeline/quality_control/%s/", req.InputBucket, prefix, req.ExecutionID)

	job, err := b.jobs.CreateModelInvocationJob(ctx, &bedrock.CreateModelInvocationJobInput{
		JobName: aws.String(jobName),
		RoleArn: aws.String(b.roleARN),
		ModelId: aws.String(b.modelID),
		InputDataConfig: &bdtypes.ModelInvocationJobInputDataConfigMemberS3InputDataConfig{
			Value: bdtypes.ModelInvocationJobS3InputDataConfig{
				S3Uri: aws.String(fmt.Sprintf("s3://%s/%s", req.InputBucket, promptsKey)),
			},
		},
		OutputDataConfig: &bdtypes.ModelInvocationJobOutputDataConfigMemberS3OutputDataConfig{
			Value: bdtypes.ModelInvocationJobS3OutputDataConfig{
				S3Uri: aws.String(outputLocation),
			},
		},
	})
	if err != nil {
		return BatchOutput{}, fmt.Errorf("failed to create assessment job: %w", err)
	}
	jobArn := aws.ToString(job.JobArn)
	b.log.Info("started batch assessment job", zap.String("jobArn", jobArn))

	// The completion handler recovers the token from Parameter Store.
	paramName := fmt.Sprintf("/bedrock/batch-jobs/%s/assessment-task-token", req.ExecutionID)
	if _, err := b.params.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(paramName),
		Value:     aws.String(req.TaskToken),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	}); err != nil {
		return BatchOutput{}, fmt.Errorf("failed to store task token parameter: %w", err)
	}

	return BatchOutput{
		StatusCode:         200,
		JobArn:             jobArn,
		JobName:            jobName,
		OutputLocation:     outputLocation,
		TaskTokenParameter: paramName,
	}, nil
}

// judgePrompt is one line of the uploaded assessment prompts file.
type judgePrompt struct {
	RecordID   string          `json:"recordId"`
	ModelInput judgeModelInput `json:"modelInput"`
}

type judgeModelInput struct {
	Messages        []pipeline.Message      `json:"messages"`
	System          []pipeline.ContentBlock `json:"system"`
	InferenceConfig map[string]any          `json:"inferenceConfig"`
}

// prepareJudgePrompts turns the inference batch output into judge
// prompts and uploads them. Records the prompt builder cannot handle
// are skipped.
func (b *BatchRunner) prepareJudgePrompts(ctx context.Context, bucket, inputKey, prefix string) (string, error) {
	obj, err := b.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(inputKey),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read batch output: %w", err)
	}
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read batch output: %w", err)
	}

	var prompts []judgePrompt
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		prompt, ok := b.buildJudgePrompt(line)
		if !ok {
			continue
		}
		prompts = append(prompts, prompt)
	}

	body, err := pipeline.EncodeJSONL(prompts)
	if err != nil {
		return "", fmt.Errorf("failed to encode judge prompts: %w", err)
	}

	promptsKey := prefix + "pipeline/assessment_prompts/prompts.jsonl"
	if _, err := b.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(promptsKey),
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String("application/jsonl"),
	}); err != nil {
		return "", fmt.Errorf("failed to upload judge prompts: %w", err)
	}

	b.log.Info("created assessment prompts file",
		zap.String("bucket", bucket), zap.String("key", promptsKey),
		zap.Int("prompts", len(prompts)))
	return promptsKey, nil
}

func (b *BatchRunner) buildJudgePrompt(line string) (judgePrompt, bool) {
	recordID := gjson.Get(line, "recordId").String()
	inputText := gjson.Get(line, "modelInput.messages.0.content.0.text").String()
	translated := gjson.Get(line, "modelOutput.output.message.content.0.text").String()
	if inputText == "" || translated == "" {
		b.log.Error("skipping record without prompt or output",
			zap.String("recordId", recordID))
		return judgePrompt{}, false
	}

	sourceLang := firstMatch(sourceLangRe, inputText, "unknown")
	targetLang := firstMatch(targetLangRe, inputText, "unknown")
	sourceText := strings.TrimSpace(firstMatch(sourceTextRe, inputText, ""))

	return judgePrompt{
		RecordID: recordID,
		ModelInput: judgeModelInput{
			Messages: []pipeline.Message{
				{Role: "user", Content: []pipeline.ContentBlock{
					{Text: RenderTaskPrompt(sourceLang, targetLang, sourceText, strings.TrimSpace(translated))},
				}},
			},
			System: []pipeline.ContentBlock{
				{Text: RenderSystemPrompt(sourceLang, targetLang)},
			},
			InferenceConfig: map[string]any{
				"maxTokens":   b.judge.MaxNewTokens,
				"topP":        b.judge.TopP,
				"temperature": b.judge.Temperature,
			},
		},
	}, true
}
