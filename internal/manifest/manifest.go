// Package manifest handles the S3 plumbing between the pipeline's map
// states: resolving distributed-map result-writer manifests, counting
// prompt records, and reshaping inference output for downstream
// quality estimation.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

// ObjectStore is the subset of the S3 client this package uses.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// MapRunEvent is what Step Functions hands the Lambdas that follow a
// distributed map with a result writer.
type MapRunEvent struct {
	MapRunArn           string              `json:"MapRunArn"`
	ResultWriterDetails ResultWriterDetails `json:"ResultWriterDetails"`
}

// ResultWriterDetails points at the manifest the result writer wrote.
type ResultWriterDetails struct {
	Bucket string `json:"Bucket"`
	Key    string `json:"Key"`
}

// ResultLocation is the resolved location of the first succeeded
// result file, plus the execution id carried in the map-run ARN.
type ResultLocation struct {
	Bucket      string
	Key         string
	ExecutionID string
}

// CountOutput annotates the inbound event with the resolved result
// file, its record count, and how many token-budgeted batches the
// records split into.
type CountOutput struct {
	MapRunArn           string              `json:"MapRunArn"`
	ResultWriterDetails ResultWriterDetails `json:"ResultWriterDetails"`
	InputFile           string              `json:"input_file"`
	InputBucket         string              `json:"input_bucket"`
	RecordCount         int                 `json:"record_count"`
	BatchCount          int                 `json:"batch_count"`
}

// TransformOutput reports where the reshaped inference results landed.
type TransformOutput struct {
	ResultFile   string `json:"resultFile"`
	ResultBucket string `json:"resultBucket"`
	RecordCount  int    `json:"recordCount"`
}

// Legacy inference record shapes expected by the quality stages.
type LegacyRecord struct {
	ModelInput  LegacyInput  `json:"modelInput"`
	ModelOutput LegacyOutput `json:"modelOutput"`
	RecordID    string       `json:"recordId"`
}

type LegacyInput struct {
	InputText string `json:"inputText"`
}

type LegacyOutput struct {
	Results []LegacyResult `json:"results"`
}

type LegacyResult struct {
	OutputText       string `json:"outputText"`
	CompletionReason string `json:"completionReason"`
}

// Service implements the manifest-driven plumbing Lambdas.
type Service struct {
	store ObjectStore
	log   *zap.Logger
}

// NewService creates a Service.
func NewService(store ObjectStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// ResolveResult loads the manifest named by the event and locates the
// first succeeded result file.
func (s *Service) ResolveResult(ctx context.Context, event MapRunEvent) (ResultLocation, error) {
	data, err := s.getObject(ctx, event.ResultWriterDetails.Bucket, event.ResultWriterDetails.Key)
	if err != nil {
		return ResultLocation{}, fmt.Errorf("failed to load manifest: %w", err)
	}

	var m struct {
		DestinationBucket string `json:"DestinationBucket"`
		ResultFiles       struct {
			Succeeded []struct {
				Key string `json:"Key"`
			} `json:"SUCCEEDED"`
		} `json:"ResultFiles"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return ResultLocation{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.ResultFiles.Succeeded) == 0 {
		return ResultLocation{}, fmt.Errorf("manifest has no succeeded result files")
	}

	parts := strings.Split(event.MapRunArn, ":")
	return ResultLocation{
		Bucket:      m.DestinationBucket,
		Key:         m.ResultFiles.Succeeded[0].Key,
		ExecutionID: parts[len(parts)-1],
	}, nil
}

// CountPrompts resolves the result file, counts its JSONL records, and
// sizes the token-budgeted batches the downstream inference states work
// through. The workflow picks on-demand vs. batch inference from these
// numbers.
func (s *Service) CountPrompts(ctx context.Context, event MapRunEvent) (CountOutput, error) {
	loc, err := s.ResolveResult(ctx, event)
	if err != nil {
		return CountOutput{}, err
	}

	data, err := s.getObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return CountOutput{}, fmt.Errorf("failed to load result file: %w", err)
	}

	records, err := pipeline.DecodeJSONL[pipeline.PromptRecord](data)
	if err != nil {
		return CountOutput{}, fmt.Errorf("failed to parse prompt records: %w", err)
	}

	return CountOutput{
		MapRunArn:           event.MapRunArn,
		ResultWriterDetails: event.ResultWriterDetails,
		InputFile:           loc.Key,
		InputBucket:         loc.Bucket,
		RecordCount:         pipeline.CountLines(data),
		BatchCount:          len(BatchByTokens(records, DefaultMaxTokens)),
	}, nil
}

// TransformInferences reshapes a map-state inference result (a JSON
// array of records with modelOutput/inferenceStatus) into the legacy
// inputText/outputText JSONL the quality stages consume, stored next
// to the input as <name>.final.jsonl.
func (s *Service) TransformInferences(ctx context.Context, event MapRunEvent) (TransformOutput, error) {
	loc, err := s.ResolveResult(ctx, event)
	if err != nil {
		return TransformOutput{}, err
	}

	data, err := s.getObject(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return TransformOutput{}, fmt.Errorf("failed to load result file: %w", err)
	}

	var inferences []struct {
		RecordID        string              `json:"recordId"`
		ModelOutput     string              `json:"modelOutput"`
		InferenceStatus string              `json:"inferenceStatus"`
		ModelInput      pipeline.ModelInput `json:"modelInput"`
	}
	if err := json.Unmarshal(data, &inferences); err != nil {
		return TransformOutput{}, fmt.Errorf("failed to parse inference results: %w", err)
	}

	results := make([]LegacyRecord, 0, len(inferences))
	for _, inf := range inferences {
		inputText := ""
		if len(inf.ModelInput.Messages) > 0 && len(inf.ModelInput.Messages[0].Content) > 0 {
			inputText = inf.ModelInput.Messages[0].Content[0].Text
		}
		results = append(results, LegacyRecord{
			RecordID:   inf.RecordID,
			ModelInput: LegacyInput{InputText: inputText},
			ModelOutput: LegacyOutput{Results: []LegacyResult{{
				OutputText:       inf.ModelOutput,
				CompletionReason: inf.InferenceStatus,
			}}},
		})
	}

	resultKey := trimExtension(loc.Key) + ".final.jsonl"
	body, err := pipeline.EncodeJSONL(results)
	if err != nil {
		return TransformOutput{}, fmt.Errorf("failed to encode results: %w", err)
	}

	s.log.Info("storing transformed inference results",
		zap.String("bucket", loc.Bucket), zap.String("key", resultKey))
	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(resultKey),
		Body:   strings.NewReader(string(body)),
	})
	if err != nil {
		return TransformOutput{}, fmt.Errorf("failed to store results: %w", err)
	}

	return TransformOutput{
		ResultFile:   resultKey,
		ResultBucket: loc.Bucket,
		RecordCount:  len(results),
	}, nil
}

func (s *Service) getObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func trimExtension(key string) string {
	if idx := strings.LastIndex(key, "."); idx > strings.LastIndex(key, "/") {
		return key[:idx]
	}
	return key
}
