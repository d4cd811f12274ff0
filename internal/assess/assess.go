// Package assess grades translations with an LLM judge. Translations
// arrive either as map items (on-demand) or as a Bedrock batch output
// file in S3 (batch mode).
package assess

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/manifest"
	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

//go:embed templates/task_prompt.txt
var taskPromptTemplate string

//go:embed templates/system_prompt.txt
var systemPromptTemplate string

// Assessment statuses.
const (
	StatusMeetsRequirements = "MEETS_REQUIREMENTS"
	StatusNeedsAttention    = "NEEDS_ATTENTION"
	StatusNotAssessed       = "NOT_ASSESSED"
	StatusError             = "ERROR"
)

var dimensionNames = []string{"accuracy", "fluency", "style", "terminology"}

// Dimension is one graded aspect of a translation.
type Dimension struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// Assessment is the judge's verdict for one translation.
type Assessment struct {
	OverallStatus string               `json:"overall_status"`
	Dimensions    map[string]Dimension `json:"dimensions"`
}

// ItemResult is the assessed translation returned per record.
type ItemResult struct {
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	SourceText     string     `json:"source_text"`
	TranslatedText string     `json:"translated_text"`
	Assessment     Assessment `json:"assessment"`
	RecordID       string     `json:"recordId"`
}

// Params are the judge's sampling parameters.
type Params struct {
	MaxNewTokens int
	TopP         float64
	Temperature  float64
}

// ModelInvoker is the subset of the Bedrock runtime client the judge
// uses.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Assessor runs judge prompts against a Bedrock model.
type Assessor struct {
	client  ModelInvoker
	modelID string
	params  Params
	log     *zap.Logger
}

// New creates an Assessor.
func New(client ModelInvoker, modelID string, params Params, log *zap.Logger) *Assessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assessor{client: client, modelID: modelID, params: params, log: log}
}

// Regexes for recovering the translation context from the stored
// prompt and output texts.
var (
	sourceLangRe = regexp.MustCompile(`from\s+(\w+)\s+to`)
	targetLangRe = regexp.MustCompile(`to\s+(\w+)`)
	sourceTextRe = regexp.MustCompile(`(?s)Source text \(.*?\):(.*?)(?:Context information:|Translation \()`)
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// HandleOnDemand assesses every item of a map batch.
func (a *Assessor) HandleOnDemand(ctx context.Context, event pipeline.MapEvent) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(event.Items))
	for _, wrapped := range event.Items {
		var item manifest.LegacyRecord
		if err := json.Unmarshal(wrapped.Item, &item); err != nil {
			return nil, fmt.Errorf("failed to decode map item: %w", err)
		}
		results = append(results, a.AssessItem(ctx, item))
	}
	return results, nil
}

// AssessItem grades one translation. Judge failures degrade to a
// NEEDS_ATTENTION assessment rather than failing the record.
func (a *Assessor) AssessItem(ctx context.Context, item manifest.LegacyRecord) ItemResult {
	inputText := item.ModelInput.InputText
	outputText := ""
	reason := ""
	if len(item.ModelOutput.Results) > 0 {
		outputText = item.ModelOutput.Results[0].OutputText
		reason = item.ModelOutput.Results[0].CompletionReason
	}

	sourceLang := firstMatch(sourceLangRe, inputText, "unknown")
	targetLang := firstMatch(targetLangRe, inputText, "unknown")
	sourceText := strings.TrimSpace(firstMatch(sourceTextRe, inputText, ""))
	translatedText := strings.TrimSpace(outputText)

	result := ItemResult{
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		SourceText:     sourceText,
		TranslatedText: translatedText,
		RecordID:       item.RecordID,
	}

	// Upstream inference errors are not graded.
	if reason == StatusError {
		result.Assessment = notAssessed()
		return result
	}

	text, err := a.invokeJudge(ctx, sourceLang, targetLang, sourceText, translatedText)
	if err != nil {
		a.log.Error("judge invocation failed",
			zap.String("recordId", item.RecordID), zap.Error(err))
		result.Assessment = degraded(fmt.Sprintf("Error invoking Bedrock: %v", err))
		return result
	}

	result.Assessment = ParseAssessment(text)
	return result
}

// invokeJudge fills the prompt templates and calls the model.
func (a *Assessor) invokeJudge(ctx context.Context, sourceLang, targetLang, sourceText, translatedText string) (string, error) {
	prompt := RenderTaskPrompt(sourceLang, targetLang, sourceText, translatedText)
	system := RenderSystemPrompt(sourceLang, targetLang)

	request := map[string]any{
		"messages": []map[string]any{
			{"role": "user", "content": []map[string]string{{"text": prompt}}},
		},
		"system": []map[string]string{{"text": system}},
		"inferenceConfig": map[string]any{
			"max_new_tokens": a.params.MaxNewTokens,
			"top_p":          a.params.TopP,
			"temperature":    a.params.Temperature,
		},
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal judge request: %w", err)
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke %s: %w", a.modelID, err)
	}

	text := gjson.GetBytes(out.Body, "output.message.content.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("unexpected response shape from %s", a.modelID)
	}
	return text.String(), nil
}

// ParseAssessment extracts the assessment JSON object from the judge's
// response text. Unparseable responses degrade to NEEDS_ATTENTION with
// the raw response preserved in the accuracy comment.
func ParseAssessment(text string) Assessment {
	match := jsonObjectRe.FindString(text)
	if match == "" {
		return degraded("Failed to parse model response properly. Raw response: " + text)
	}
	var assessment Assessment
	if err := json.Unmarshal([]byte(match), &assessment); err != nil {
		return degraded(fmt.Sprintf("Error parsing assessment: %v. Raw response: %s", err, text))
	}
	return assessment
}

// RenderTaskPrompt fills the judge task template.
func RenderTaskPrompt(sourceLang, targetLang, sourceText, translatedText string) string {
	r := strings.NewReplacer(
		"{{source_lang}}", sourceLang,
		"{{target_lang}}", targetLang,
		"{{source_text}}", sourceText,
		"{{translated_text}}", translatedText,
	)
	return r.Replace(taskPromptTemplate)
}

// RenderSystemPrompt fills the judge system template.
func RenderSystemPrompt(sourceLang, targetLang string) string {
	r := strings.NewReplacer(
		"{{source_lang}}", sourceLang,
		"{{target_lang}}", targetLang,
	)
	return r.Replace(systemPromptTemplate)
}

func firstMatch(re *regexp.Regexp, text, fallback string) string {
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return fallback
}

func notAssessed() Assessment {
	dims := make(map[string]Dimension, len(dimensionNames))
	for _, name := range dimensionNames {
		dims[name] = Dimension{Status: StatusNotAssessed}
	}
	return Assessment{OverallStatus: StatusError, Dimensions: dims}
}

// degraded builds the fallback assessment used when the judge cannot
// produce a verdict: accuracy flags the problem, everything else
// passes.
func degraded(comment string) Assessment {
	dims := make(map[string]Dimension, len(dimensionNames))
	for _, name := range dimensionNames {
		dims[name] = Dimension{Status: StatusMeetsRequirements}
	}
	dims["accuracy"] = Dimension{Status: StatusNeedsAttention, Comment: comment}
	return Assessment{OverallStatus: StatusNeedsAttention, Dimensions: dims}
}
