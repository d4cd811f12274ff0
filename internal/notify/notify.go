// Package notify resumes Step Functions executions when the async
// quality-estimation endpoint publishes its completion notification
// to SNS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/estimator"
)

// Notification is the SageMaker async inference notification payload
// carried in the SNS message.
type Notification struct {
	InvocationStatus  string `json:"invocationStatus"`
	FailureReason     string `json:"failureReason"`
	RequestParameters struct {
		CustomAttributes string `json:"customAttributes"`
	} `json:"requestParameters"`
	ResponseParameters struct {
		OutputLocation string `json:"outputLocation"`
	} `json:"responseParameters"`
}

// Response is the Lambda-visible outcome. The handler never returns an
// error: a notification that cannot be processed is reported in the
// response and logged, nothing retries it.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error,omitempty"`
}

// Handler forwards estimation outcomes to Step Functions.
type Handler struct {
	notifier estimator.TaskNotifier
	log      *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(notifier estimator.TaskNotifier, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{notifier: notifier, log: log}
}

// Handle processes one SNS event.
func (h *Handler) Handle(ctx context.Context, event events.SNSEvent) (Response, error) {
	if err := h.process(ctx, event); err != nil {
		h.log.Error("failed to process SNS notification", zap.Error(err))
		return Response{
			StatusCode: 500,
			Message:    "Error processing SNS notification",
			Error:      err.Error(),
		}, nil
	}
	return Response{StatusCode: 200, Message: "Successfully processed SNS notification"}, nil
}

func (h *Handler) process(ctx context.Context, event events.SNSEvent) error {
	if len(event.Records) == 0 {
		return fmt.Errorf("event has no SNS records")
	}

	var note Notification
	if err := json.Unmarshal([]byte(event.Records[0].SNS.Message), &note); err != nil {
		return fmt.Errorf("failed to parse SNS message: %w", err)
	}

	taskToken, err := estimator.ParseTaskAttributes(note.RequestParameters.CustomAttributes)
	if err != nil {
		return fmt.Errorf("failed to extract task token: %w", err)
	}

	if note.ResponseParameters.OutputLocation == "" {
		return fmt.Errorf("output path not found in SNS message")
	}

	if note.InvocationStatus == "Completed" {
		output, err := json.Marshal(map[string]string{
			"status":     "SUCCESS",
			"outputPath": note.ResponseParameters.OutputLocation,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal task output: %w", err)
		}
		if _, err := h.notifier.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
			TaskToken: aws.String(taskToken),
			Output:    aws.String(string(output)),
		}); err != nil {
			return fmt.Errorf("failed to send task success: %w", err)
		}
		h.log.Info("sent task success",
			zap.String("outputPath", note.ResponseParameters.OutputLocation))
		return nil
	}

	cause := note.FailureReason
	if cause == "" {
		cause = "Unknown error"
	}
	if _, err := h.notifier.SendTaskFailure(ctx, &sfn.SendTaskFailureInput{
		TaskToken: aws.String(taskToken),
		Error:     aws.String("SageMakerJobFailed"),
		Cause:     aws.String(cause),
	}); err != nil {
		return fmt.Errorf("failed to send task failure: %w", err)
	}
	h.log.Info("sent task failure", zap.String("cause", cause))
	return nil
}
