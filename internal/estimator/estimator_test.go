package estimator

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestTaskAttributesRoundTrip(t *testing.T) {
	token := "AAAAKgAAAAIAAAAAAAAAA-example-token"
	attrs := EncodeTaskAttributes(token)
	require.Equal(t, "TaskToken="+base64.StdEncoding.EncodeToString([]byte(token)), attrs)

	got, err := ParseTaskAttributes(attrs)
	require.NoError(t, err)
	require.Equal(t, token, got)
}

func TestParseTaskAttributes(t *testing.T) {
	token := base64.StdEncoding.EncodeToString([]byte("tok"))

	tests := []struct {
		name      string
		attrs     string
		want      string
		expectErr bool
	}{
		{"single attribute", "TaskToken=" + token, "tok", false},
		{"among other attributes", "Trace=1; TaskToken=" + token + ";Other=x", "tok", false},
		{"missing", "Trace=1;Other=x", "", true},
		{"not base64", "TaskToken=%%%", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTaskAttributes(tt.attrs)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

type fakeAsyncInvoker struct {
	got *sagemakerruntime.InvokeEndpointAsyncInput
	err error
}

func (f *fakeAsyncInvoker) InvokeEndpointAsync(_ context.Context, params *sagemakerruntime.InvokeEndpointAsyncInput, _ ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointAsyncOutput, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerruntime.InvokeEndpointAsyncOutput{
		InferenceId:    aws.String("inf-1"),
		OutputLocation: aws.String("s3://out/result.jsonl.out"),
	}, nil
}

func TestAsyncEndpoint_Invoke(t *testing.T) {
	inv := &fakeAsyncInvoker{}
	a, err := NewAsyncEndpoint(inv, "qe-endpoint", nil)
	require.NoError(t, err)

	res, err := a.InvokeEndpoint(context.Background(), Request{
		ExecutionID: "exec-1",
		InputBucket: "bucket",
		InputFile:   "pipeline/qe/input.jsonl",
		TaskToken:   "tok",
	})
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "inf-1", res.RequestID)
	require.Equal(t, "s3://out/result.jsonl.out", res.OutputLocation)
	require.Equal(t, "tok", res.RequestToken)

	require.Equal(t, "qe-endpoint", aws.ToString(inv.got.EndpointName))
	require.Equal(t, "s3://bucket/pipeline/qe/input.jsonl", aws.ToString(inv.got.InputLocation))
	require.Equal(t, "application/jsonl", aws.ToString(inv.got.ContentType))
	require.EqualValues(t, 900, aws.ToInt32(inv.got.InvocationTimeoutSeconds))
	require.EqualValues(t, 3600, aws.ToInt32(inv.got.RequestTTLSeconds))

	token, err := ParseTaskAttributes(aws.ToString(inv.got.CustomAttributes))
	require.NoError(t, err)
	require.Equal(t, "tok", token)
}

func TestNewAsyncEndpoint_RequiresName(t *testing.T) {
	_, err := NewAsyncEndpoint(&fakeAsyncInvoker{}, "", nil)
	require.Error(t, err)
}

type fakeRealtime struct {
	gotBody  []byte
	response []byte
	err      error
}

func (f *fakeRealtime) InvokeEndpoint(_ context.Context, params *sagemakerruntime.InvokeEndpointInput, _ ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	f.gotBody = params.Body
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: f.response}, nil
}

type fakeObjectStore struct {
	objects map[string]string
	puts    map[string]string
}

func (f *fakeObjectStore) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	data, _ := io.ReadAll(params.Body)
	f.puts[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

type fakeNotifier struct {
	successes []*sfn.SendTaskSuccessInput
	failures  []*sfn.SendTaskFailureInput
}

func (f *fakeNotifier) SendTaskSuccess(_ context.Context, params *sfn.SendTaskSuccessInput, _ ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error) {
	f.successes = append(f.successes, params)
	return &sfn.SendTaskSuccessOutput{}, nil
}

func (f *fakeNotifier) SendTaskFailure(_ context.Context, params *sfn.SendTaskFailureInput, _ ...func(*sfn.Options)) (*sfn.SendTaskFailureOutput, error) {
	f.failures = append(f.failures, params)
	return &sfn.SendTaskFailureOutput{}, nil
}

func marketplaceFixture(t *testing.T, rt *fakeRealtime) (*MarketplaceEndpoint, *fakeObjectStore, *fakeNotifier) {
	t.Helper()
	store := &fakeObjectStore{objects: map[string]string{
		"bucket/qe/input.jsonl": `{"recordId":"a","source_text":"hello","translated_text":"hallo"}` + "\n" +
			`{"recordId":"b","inferenceStatus":"ERROR"}` + "\n" +
			`{"recordId":"c","source_text":"world","translated_text":"welt"}`,
	}}
	notifier := &fakeNotifier{}
	m, err := NewMarketplaceEndpoint(rt, store, notifier, "comet-endpoint", nil)
	require.NoError(t, err)
	return m, store, notifier
}

func TestMarketplaceEndpoint_Success(t *testing.T) {
	rt := &fakeRealtime{response: []byte(`{"scores":[0.91,0.42]}`)}
	m, store, notifier := marketplaceFixture(t, rt)

	res, err := m.InvokeEndpoint(context.Background(), Request{
		InputBucket: "bucket",
		InputFile:   "qe/input.jsonl",
		TaskToken:   "tok",
	})
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, "s3://bucket/qe/SCORED-input.jsonl", res.OutputLocation)

	// Only the two scoreable records went to the endpoint.
	require.EqualValues(t, 2, gjson.GetBytes(rt.gotBody, "data.#").Int())
	require.Equal(t, "hello", gjson.GetBytes(rt.gotBody, "data.0.src").String())
	require.Equal(t, "hallo", gjson.GetBytes(rt.gotBody, "data.0.mt").String())

	scored := store.puts["bucket/qe/SCORED-input.jsonl"]
	require.NotEmpty(t, scored)
	lines := strings.Split(scored, "\n")
	require.Len(t, lines, 2)
	require.EqualValues(t, 0.91, gjson.Get(lines[0], "score").Float())
	require.EqualValues(t, 0.42, gjson.Get(lines[1], "score").Float())

	require.Len(t, notifier.successes, 1)
	output := aws.ToString(notifier.successes[0].Output)
	require.Equal(t, "SUCCESS", gjson.Get(output, "status").String())
	require.Equal(t, "s3://bucket/qe/SCORED-input.jsonl", gjson.Get(output, "outputPath").String())
	require.Empty(t, notifier.failures)
}

func TestMarketplaceEndpoint_FailureSendsTaskFailure(t *testing.T) {
	rt := &fakeRealtime{err: fmt.Errorf("endpoint unavailable")}
	m, _, notifier := marketplaceFixture(t, rt)

	_, err := m.InvokeEndpoint(context.Background(), Request{
		InputBucket: "bucket",
		InputFile:   "qe/input.jsonl",
		TaskToken:   "tok",
	})
	require.Error(t, err)
	require.Len(t, notifier.failures, 1)
	require.Equal(t, "EndpointInvocationError", aws.ToString(notifier.failures[0].Error))
	require.Empty(t, notifier.successes)
}

func TestMarketplaceEndpoint_ScoreCountMismatch(t *testing.T) {
	rt := &fakeRealtime{response: []byte(`{"scores":[0.5]}`)}
	m, _, notifier := marketplaceFixture(t, rt)

	_, err := m.InvokeEndpoint(context.Background(), Request{
		InputBucket: "bucket",
		InputFile:   "qe/input.jsonl",
		TaskToken:   "tok",
	})
	require.Error(t, err)
	require.Len(t, notifier.failures, 1)
}

func TestSelect(t *testing.T) {
	async := &AsyncEndpoint{}
	marketplace := &MarketplaceEndpoint{}

	tests := []struct {
		mode string
		want Estimator
	}{
		{"MARKETPLACE_SELF_HOSTED", marketplace},
		{"marketplace_self_hosted", marketplace},
		{"OPEN_SOURCE_SELF_HOSTED", async},
		{"", async},
		{"anything-else", async},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			require.Same(t, tt.want, Select(tt.mode, async, marketplace))
		})
	}
}
