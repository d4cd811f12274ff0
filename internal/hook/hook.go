// Package hook implements the CodeDeploy lifecycle validation hooks
// that gate traffic shifting to a newly deployed Lambda version.
package hook

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	cdtypes "github.com/aws/aws-sdk-go-v2/service/codedeploy/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"go.uber.org/zap"
)

// Stage payloads sent to the function under test. Pre-traffic runs the
// basic smoke test, post-traffic runs the integration test.
var (
	PreTrafficPayload  = []byte(`{"test":true}`)
	PostTrafficPayload = []byte(`{"integrationTest":true}`)
)

// Event is the inbound lifecycle event from CodeDeploy.
type Event struct {
	DeploymentID                  string `json:"DeploymentId"`
	LifecycleEventHookExecutionID string `json:"LifecycleEventHookExecutionId"`
}

// FunctionInvoker is the subset of the Lambda client the hook uses.
type FunctionInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// StatusReporter is the subset of the CodeDeploy client the hook uses.
type StatusReporter interface {
	PutLifecycleEventHookExecutionStatus(ctx context.Context, params *codedeploy.PutLifecycleEventHookExecutionStatusInput, optFns ...func(*codedeploy.Options)) (*codedeploy.PutLifecycleEventHookExecutionStatusOutput, error)
}

// Runner invokes the function under test and reports the outcome back
// to CodeDeploy. Exactly one status is reported per event, whether the
// invocation succeeds or fails.
type Runner struct {
	invoker  FunctionInvoker
	reporter StatusReporter

	// The function under test is the deployment id with deploymentPrefix
	// swapped for functionPrefix (d-ABC123 -> f-ABC123).
	deploymentPrefix string
	functionPrefix   string

	payload []byte
	log     *zap.Logger
}

// NewRunner builds a Runner for one lifecycle stage.
func NewRunner(invoker FunctionInvoker, reporter StatusReporter, deploymentPrefix, functionPrefix string, payload []byte, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		invoker:          invoker,
		reporter:         reporter,
		deploymentPrefix: deploymentPrefix,
		functionPrefix:   functionPrefix,
		payload:          payload,
		log:              log,
	}
}

// TargetFunction derives the name of the function under test from the
// deployment id.
func (r *Runner) TargetFunction(deploymentID string) (string, error) {
	if !strings.HasPrefix(deploymentID, r.deploymentPrefix) {
		return "", fmt.Errorf("deployment id %q does not start with %q", deploymentID, r.deploymentPrefix)
	}
	return r.functionPrefix + strings.TrimPrefix(deploymentID, r.deploymentPrefix), nil
}

// Run executes one validation: invoke the target with the stage
// payload, then report Succeeded or Failed. Invocation failures are
// logged and mapped to a Failed report; they never propagate. The only
// error Run returns is a failure of the status report itself, which
// would leave the deployment without a terminal signal.
func (r *Runner) Run(ctx context.Context, event Event) (string, error) {
	if event.DeploymentID == "" || event.LifecycleEventHookExecutionID == "" {
		return "", fmt.Errorf("event is missing DeploymentId or LifecycleEventHookExecutionId")
	}

	status := cdtypes.LifecycleEventStatusSucceeded
	if err := r.validate(ctx, event.DeploymentID); err != nil {
		r.log.Error("validation invocation failed",
			zap.String("deploymentId", event.DeploymentID),
			zap.Error(err))
		status = cdtypes.LifecycleEventStatusFailed
	}

	_, err := r.reporter.PutLifecycleEventHookExecutionStatus(ctx, &codedeploy.PutLifecycleEventHookExecutionStatusInput{
		DeploymentId:                  aws.String(event.DeploymentID),
		LifecycleEventHookExecutionId: aws.String(event.LifecycleEventHookExecutionID),
		Status:                        status,
	})
	if err != nil {
		return "", fmt.Errorf("failed to report lifecycle status for %s: %w", event.DeploymentID, err)
	}

	r.log.Info("reported lifecycle status",
		zap.String("deploymentId", event.DeploymentID),
		zap.String("status", string(status)))
	return fmt.Sprintf("validation %s for deployment %s", strings.ToLower(string(status)), event.DeploymentID), nil
}

// validate performs the single invocation attempt against the function
// under test. All downstream causes collapse into one error.
func (r *Runner) validate(ctx context.Context, deploymentID string) error {
	name, err := r.TargetFunction(deploymentID)
	if err != nil {
		return err
	}

	out, err := r.invoker.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(name),
		Payload:      r.payload,
	})
	if err != nil {
		return fmt.Errorf("failed to invoke %s: %w", name, err)
	}
	if out.FunctionError != nil {
		return fmt.Errorf("function error from %s: %s", name, *out.FunctionError)
	}
	return nil
}
