package assess

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/manifest"
	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

// TransformRequest points at an assessment batch output file.
type TransformRequest struct {
	InputBucket string `json:"input_bucket"`
	InputKey    string `json:"input_key"`
}

// TransformOutput reports the rewritten results file.
type TransformOutput struct {
	StatusCode     int    `json:"statusCode"`
	InputBucket    string `json:"input_bucket"`
	InputFile      string `json:"input_file"`
	TotalProcessed int    `json:"totalProcessed"`
}

var (
	taggedSourceRe      = regexp.MustCompile(`(?s)<SOURCE_TEXT>\n(.*?)\n</SOURCE_TEXT>`)
	taggedTranslationRe = regexp.MustCompile(`(?s)<TRANSLATION>\n(.*?)\n</TRANSLATION>`)
)

// Transformer rewrites assessment batch output into the final results
// file consumed downstream.
type Transformer struct {
	store manifest.ObjectStore
	log   *zap.Logger
}

// NewTransformer creates a Transformer.
func NewTransformer(store manifest.ObjectStore, log *zap.Logger) *Transformer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transformer{store: store, log: log}
}

// Transform reads the batch output, extracts one ItemResult per
// parseable record and writes them next to the input as
// <name>_final.jsonl.
func (t *Transformer) Transform(ctx context.Context, req TransformRequest) (TransformOutput, error) {
	inputKey := req.InputKey
	if req.InputBucket != "" && strings.Contains(inputKey, req.InputBucket+"/") {
		inputKey = strings.SplitN(inputKey, req.InputBucket+"/", 2)[1]
	}

	obj, err := t.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(req.InputBucket),
		Key:    aws.String(inputKey),
	})
	if err != nil {
		return TransformOutput{}, fmt.Errorf("failed to read assessment output: %w", err)
	}
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return TransformOutput{}, fmt.Errorf("failed to read assessment output: %w", err)
	}

	var results []ItemResult
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		result, ok := t.extractResult(line)
		if !ok {
			continue
		}
		results = append(results, result)
	}

	body, err := pipeline.EncodeJSONL(results)
	if err != nil {
		return TransformOutput{}, fmt.Errorf("failed to encode assessment results: %w", err)
	}

	outputKey := strings.SplitN(inputKey, ".", 2)[0] + "_final.jsonl"
	if _, err := t.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(req.InputBucket),
		Key:         aws.String(outputKey),
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String("application/jsonl"),
	}); err != nil {
		return TransformOutput{}, fmt.Errorf("failed to write assessment results: %w", err)
	}

	t.log.Info("wrote assessment results",
		zap.String("bucket", req.InputBucket), zap.String("key", outputKey),
		zap.Int("results", len(results)))

	return TransformOutput{
		StatusCode:     200,
		InputBucket:    req.InputBucket,
		InputFile:      outputKey,
		TotalProcessed: len(results),
	}, nil
}

// extractResult rebuilds the translation context from the judge prompt
// and parses the verdict. Records without a prompt or a verdict are
// dropped.
func (t *Transformer) extractResult(line string) (ItemResult, bool) {
	recordID := gjson.Get(line, "recordId").String()
	promptText := gjson.Get(line, "modelInput.messages.0.content.0.text").String()
	systemText := gjson.Get(line, "modelInput.system.0.text").String()
	verdictText := gjson.Get(line, "modelOutput.output.message.content.0.text").String()
	if promptText == "" || verdictText == "" {
		t.log.Error("skipping record without prompt or verdict",
			zap.String("recordId", recordID))
		return ItemResult{}, false
	}

	return ItemResult{
		SourceLanguage: firstMatch(sourceLangRe, systemText, "unknown"),
		TargetLanguage: firstMatch(targetLangRe, systemText, "unknown"),
		SourceText:     strings.TrimSpace(firstMatch(taggedSourceRe, promptText, "")),
		TranslatedText: strings.TrimSpace(firstMatch(taggedTranslationRe, promptText, "")),
		Assessment:     ParseAssessment(verdictText),
		RecordID:       recordID,
	}, true
}
