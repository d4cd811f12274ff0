package estimator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"go.uber.org/zap"
)

// Async invocation limits for the self-hosted endpoint.
const (
	asyncInvocationTimeoutSeconds = 900  // 15 minutes
	asyncRequestTTLSeconds        = 3600 // request valid for 1 hour
)

// AsyncInvoker is the subset of the SageMaker runtime client the async
// estimator uses.
type AsyncInvoker interface {
	InvokeEndpointAsync(ctx context.Context, params *sagemakerruntime.InvokeEndpointAsyncInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointAsyncOutput, error)
}

// AsyncEndpoint estimates quality through a self-hosted asynchronous
// SageMaker endpoint. Completion is signaled out-of-band via SNS; the
// task token travels in the request's custom attributes.
type AsyncEndpoint struct {
	client       AsyncInvoker
	endpointName string
	log          *zap.Logger
}

// NewAsyncEndpoint creates an AsyncEndpoint.
func NewAsyncEndpoint(client AsyncInvoker, endpointName string, log *zap.Logger) (*AsyncEndpoint, error) {
	if endpointName == "" {
		return nil, fmt.Errorf("missing required configuration: SAGEMAKER_ENDPOINT_NAME")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AsyncEndpoint{client: client, endpointName: endpointName, log: log}, nil
}

// InvokeEndpoint starts the asynchronous estimation over the input
// file and returns the inference id and output location.
func (a *AsyncEndpoint) InvokeEndpoint(ctx context.Context, req Request) (Result, error) {
	out, err := a.client.InvokeEndpointAsync(ctx, &sagemakerruntime.InvokeEndpointAsyncInput{
		EndpointName:             aws.String(a.endpointName),
		InputLocation:            aws.String(fmt.Sprintf("s3://%s/%s", req.InputBucket, req.InputFile)),
		ContentType:              aws.String("application/jsonl"),
		InvocationTimeoutSeconds: aws.Int32(asyncInvocationTimeoutSeconds),
		RequestTTLSeconds:        aws.Int32(asyncRequestTTLSeconds),
		CustomAttributes:         aws.String(EncodeTaskAttributes(req.TaskToken)),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to invoke async endpoint %s: %w", a.endpointName, err)
	}

	a.log.Info("invoked async estimation endpoint",
		zap.String("endpoint", a.endpointName),
		zap.String("inferenceId", aws.ToString(out.InferenceId)))

	return Result{
		StatusCode:     200,
		ExecutionID:    req.ExecutionID,
		RequestID:      aws.ToString(out.InferenceId),
		OutputLocation: aws.ToString(out.OutputLocation),
		Message:        "Successfully initiated asynchronous inference",
		RequestToken:   req.TaskToken,
	}, nil
}
