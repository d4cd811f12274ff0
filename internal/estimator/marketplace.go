package estimator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/manifest"
	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

// RealtimeInvoker is the subset of the SageMaker runtime client the
// marketplace estimator uses.
type RealtimeInvoker interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// TaskNotifier is the subset of the Step Functions client used to
// resume the waiting execution.
type TaskNotifier interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
	SendTaskFailure(ctx context.Context, params *sfn.SendTaskFailureInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error)
}

// MarketplaceEndpoint estimates quality through a real-time
// marketplace endpoint: it reads the input records from S3, scores
// them in one call, writes a SCORED- file next to the input, and
// resumes the Step Functions execution directly.
type MarketplaceEndpoint struct {
	sagemaker    RealtimeInvoker
	store        manifest.ObjectStore
	notifier     TaskNotifier
	endpointName string
	log          *zap.Logger
}

// NewMarketplaceEndpoint creates a MarketplaceEndpoint.
func NewMarketplaceEndpoint(sagemaker RealtimeInvoker, store manifest.ObjectStore, notifier TaskNotifier, endpointName string, log *zap.Logger) (*MarketplaceEndpoint, error) {
	if endpointName == "" {
		return nil, fmt.Errorf("missing required configuration: MARKETPLACE_ENDPOINT_NAME")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MarketplaceEndpoint{
		sagemaker:    sagemaker,
		store:        store,
		notifier:     notifier,
		endpointName: endpointName,
		log:          log,
	}, nil
}

// cometInput is one scoring item in the endpoint's request format.
type cometInput struct {
	Src string `json:"src"`
	MT  string `json:"mt"`
}

// InvokeEndpoint runs the full synchronous estimation round trip. On
// failure the task failure is sent before the error is returned, so
// the execution never hangs on the callback.
func (m *MarketplaceEndpoint) InvokeEndpoint(ctx context.Context, req Request) (Result, error) {
	result, err := m.estimate(ctx, req)
	if err != nil {
		m.log.Error("marketplace estimation failed", zap.Error(err))
		if _, failErr := m.notifier.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
			TaskToken: aws.String(req.TaskToken),
			Error:     aws.String("EndpointInvocationError"),
			Cause:     aws.String(err.Error()),
		}); failErr != nil {
			m.log.Error("failed to send task failure", zap.Error(failErr))
		}
		return Result{}, err
	}
	return result, nil
}

func (m *MarketplaceEndpoint) estimate(ctx context.Context, req Request) (Result, error) {
	obj, err := m.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(req.InputBucket),
		Key:    aws.String(req.InputFile),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to read input file: %w", err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read input file: %w", err)
	}

	records, err := pipeline.DecodeJSONL[map[string]any](data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse input records: %w", err)
	}

	// Records without a source text (error records upstream) cannot be
	// scored and are dropped.
	var inputs []cometInput
	var valid []map[string]any
	for _, rec := range records {
		src, ok := rec["source_text"].(string)
		if !ok {
			continue
		}
		mt, _ := rec["translated_text"].(string)
		inputs = append(inputs, cometInput{Src: src, MT: mt})
		valid = append(valid, rec)
	}

	payload, err := json.Marshal(map[string]any{"data": inputs})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal endpoint request: %w", err)
	}

	out, err := m.sagemaker.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(m.endpointName),
		ContentType:  aws.String("application/json"),
		Body:         payload,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to invoke endpoint %s: %w", m.endpointName, err)
	}

	var scored struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(out.Body, &scored); err != nil {
		return Result{}, fmt.Errorf("failed to parse endpoint response: %w", err)
	}
	if len(scored.Scores) != len(valid) {
		return Result{}, fmt.Errorf("endpoint returned %d scores for %d records", len(scored.Scores), len(valid))
	}
	for i, score := range scored.Scores {
		valid[i]["score"] = score
	}

	outputKey := scoredKey(req.InputFile)
	body, err := pipeline.EncodeJSONL(valid)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode scored records: %w", err)
	}
	if _, err := m.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(req.InputBucket),
		Key:         aws.String(outputKey),
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String("application/jsonl"),
	}); err != nil {
		return Result{}, fmt.Errorf("failed to store scored records: %w", err)
	}

	outputPath := fmt.Sprintf("s3://%s/%s", req.InputBucket, outputKey)
	callback, err := json.Marshal(map[string]string{
		"status":     "SUCCESS",
		"outputPath": outputPath,
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal task output: %w", err)
	}
	if _, err := m.notifier.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(req.TaskToken),
		Output:    aws.String(string(callback)),
	}); err != nil {
		return Result{}, fmt.Errorf("failed to send task success: %w", err)
	}

	m.log.Info("completed real-time estimation",
		zap.String("endpoint", m.endpointName),
		zap.String("outputPath", outputPath))

	return Result{
		StatusCode:     200,
		Message:        "Successfully completed real-time inference",
		OutputLocation: outputPath,
		RequestToken:   req.TaskToken,
	}, nil
}

// scoredKey puts a SCORED- prefix on the file name, keeping the
// directory.
func scoredKey(key string) string {
	dir, name := path.Split(key)
	return dir + "SCORED-" + name
}
