package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mtworks/translation-pipeline/internal/pipeline"
)

type fakeModel struct {
	gotBodies [][]byte
	response  []byte
	err       error
}

func (f *fakeModel) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.gotBodies = append(f.gotBodies, params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.response}, nil
}

const promptItem = `{
	"recordId": "rec-1",
	"source_text": "Reprise de la session",
	"modelInput": {
		"schemaVersion": "messages-v1",
		"messages": [{"role": "user", "content": [{"text": "translate this"}]}],
		"system": ["You are a professional translator."],
		"inferenceConfig": {"maxTokens": 500, "topP": 0.9, "topK": 20, "temperature": 0.7}
	}
}`

func event(items ...string) pipeline.MapEvent {
	var ev pipeline.MapEvent
	for _, item := range items {
		ev.Items = append(ev.Items, pipeline.MapItem{Item: json.RawMessage(item)})
	}
	return ev
}

func TestHandle_Success(t *testing.T) {
	model := &fakeModel{response: []byte(`{"output":{"message":{"content":[{"text":"Wiederaufnahme der Sitzung"}]}}}`)}
	iv := New(model, "us.amazon.nova-pro-v1:0", nil)

	outputs, err := iv.Handle(context.Background(), event(promptItem))
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	rec := outputs[0]
	require.Equal(t, "Wiederaufnahme der Sitzung", rec["modelOutput"])
	require.Equal(t, StatusSuccess, rec["inferenceStatus"])
	// Input fields ride along untouched.
	require.Equal(t, "rec-1", rec["recordId"])
	require.Equal(t, "Reprise de la session", rec["source_text"])

	// The runtime request uses the runtime parameter names.
	require.Len(t, model.gotBodies, 1)
	body := model.gotBodies[0]
	require.EqualValues(t, 500, gjson.GetBytes(body, "inferenceConfig.max_new_tokens").Int())
	require.EqualValues(t, 0.9, gjson.GetBytes(body, "inferenceConfig.top_p").Float())
	require.EqualValues(t, 20, gjson.GetBytes(body, "inferenceConfig.top_k").Int())
	require.Equal(t, "You are a professional translator.", gjson.GetBytes(body, "system.0.text").String())
	require.Equal(t, "translate this", gjson.GetBytes(body, "messages.0.content.0.text").String())
}

func TestHandle_ErrorRecordDoesNotFailBatch(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("model throttled")}
	iv := New(model, "us.amazon.nova-pro-v1:0", nil)

	outputs, err := iv.Handle(context.Background(), event(promptItem, promptItem))
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	for _, rec := range outputs {
		require.Equal(t, StatusError, rec["inferenceStatus"])
		require.Contains(t, rec["modelOutput"], "model throttled")
	}
}

func TestHandle_RecordWithoutModelInput(t *testing.T) {
	model := &fakeModel{}
	iv := New(model, "us.amazon.nova-pro-v1:0", nil)

	outputs, err := iv.Handle(context.Background(), event(`{"recordId":"rec-2"}`))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.Equal(t, StatusError, outputs[0]["inferenceStatus"])
	require.Empty(t, model.gotBodies)
}

func TestHandle_UnexpectedResponseShape(t *testing.T) {
	model := &fakeModel{response: []byte(`{"surprise":true}`)}
	iv := New(model, "us.amazon.nova-pro-v1:0", nil)

	outputs, err := iv.Handle(context.Background(), event(promptItem))
	require.NoError(t, err)
	require.Equal(t, StatusError, outputs[0]["inferenceStatus"])
}
