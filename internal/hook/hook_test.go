package hook

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codedeploy"
	cdtypes "github.com/aws/aws-sdk-go-v2/service/codedeploy/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

type fakeInvoker struct {
	invoked       []string
	payloads      [][]byte
	err           error
	functionError *string
}

func (f *fakeInvoker) Invoke(_ context.Context, params *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.invoked = append(f.invoked, aws.ToString(params.FunctionName))
	f.payloads = append(f.payloads, params.Payload)
	if f.err != nil {
		return nil, f.err
	}
	return &lambda.InvokeOutput{FunctionError: f.functionError}, nil
}

type fakeReporter struct {
	reports []*codedeploy.PutLifecycleEventHookExecutionStatusInput
	err     error
}

func (f *fakeReporter) PutLifecycleEventHookExecutionStatus(_ context.Context, params *codedeploy.PutLifecycleEventHookExecutionStatusInput, _ ...func(*codedeploy.Options)) (*codedeploy.PutLifecycleEventHookExecutionStatusOutput, error) {
	f.reports = append(f.reports, params)
	if f.err != nil {
		return nil, f.err
	}
	return &codedeploy.PutLifecycleEventHookExecutionStatusOutput{}, nil
}

func TestTargetFunction(t *testing.T) {
	r := NewRunner(nil, nil, "d-", "f-", PreTrafficPayload, nil)

	tests := []struct {
		deploymentID string
		want         string
		expectError  bool
	}{
		{"d-ABC123", "f-ABC123", false},
		{"d-1", "f-1", false},
		{"x-ABC123", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.deploymentID, func(t *testing.T) {
			got, err := r.TargetFunction(tt.deploymentID)
			if tt.expectError {
				if err == nil {
					t.Errorf("TargetFunction(%q) should have returned error", tt.deploymentID)
				}
				return
			}
			if err != nil {
				t.Fatalf("TargetFunction(%q) unexpected error: %v", tt.deploymentID, err)
			}
			if got != tt.want {
				t.Errorf("TargetFunction(%q) = %q, want %q", tt.deploymentID, got, tt.want)
			}
		})
	}
}

func TestRun_Success(t *testing.T) {
	inv := &fakeInvoker{}
	rep := &fakeReporter{}
	r := NewRunner(inv, rep, "d-", "f-", PreTrafficPayload, nil)

	_, err := r.Run(context.Background(), Event{
		DeploymentID:                  "d-1",
		LifecycleEventHookExecutionID: "h-1",
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	if len(inv.invoked) != 1 || inv.invoked[0] != "f-1" {
		t.Errorf("invoked = %v, want [f-1]", inv.invoked)
	}
	if string(inv.payloads[0]) != `{"test":true}` {
		t.Errorf("payload = %s, want {\"test\":true}", inv.payloads[0])
	}
	if len(rep.reports) != 1 {
		t.Fatalf("got %d status reports, want exactly 1", len(rep.reports))
	}
	report := rep.reports[0]
	if aws.ToString(report.DeploymentId) != "d-1" {
		t.Errorf("reported deploymentId = %q, want d-1", aws.ToString(report.DeploymentId))
	}
	if aws.ToString(report.LifecycleEventHookExecutionId) != "h-1" {
		t.Errorf("reported hook execution id = %q, want h-1", aws.ToString(report.LifecycleEventHookExecutionId))
	}
	if report.Status != cdtypes.LifecycleEventStatusSucceeded {
		t.Errorf("reported status = %q, want Succeeded", report.Status)
	}
}

func TestRun_InvocationFailuresReportFailed(t *testing.T) {
	boom := fmt.Errorf("throttled")
	handlerError := "Unhandled"

	tests := []struct {
		name string
		inv  *fakeInvoker
	}{
		{"transport error", &fakeInvoker{err: boom}},
		{"function error", &fakeInvoker{functionError: &handlerError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &fakeReporter{}
			r := NewRunner(tt.inv, rep, "d-", "f-", PostTrafficPayload, nil)

			_, err := r.Run(context.Background(), Event{
				DeploymentID:                  "d-1",
				LifecycleEventHookExecutionID: "h-1",
			})
			if err != nil {
				t.Fatalf("Run() must not propagate invocation failures, got: %v", err)
			}
			if len(rep.reports) != 1 {
				t.Fatalf("got %d status reports, want exactly 1", len(rep.reports))
			}
			if rep.reports[0].Status != cdtypes.LifecycleEventStatusFailed {
				t.Errorf("reported status = %q, want Failed", rep.reports[0].Status)
			}
		})
	}
}

func TestRun_BadDeploymentPrefixReportsFailed(t *testing.T) {
	inv := &fakeInvoker{}
	rep := &fakeReporter{}
	r := NewRunner(inv, rep, "d-", "f-", PreTrafficPayload, nil)

	_, err := r.Run(context.Background(), Event{
		DeploymentID:                  "weird-1",
		LifecycleEventHookExecutionID: "h-1",
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if len(inv.invoked) != 0 {
		t.Errorf("no invocation expected for underivable target, got %v", inv.invoked)
	}
	if len(rep.reports) != 1 || rep.reports[0].Status != cdtypes.LifecycleEventStatusFailed {
		t.Errorf("want exactly one Failed report, got %+v", rep.reports)
	}
}

func TestRun_MissingIdentifiers(t *testing.T) {
	rep := &fakeReporter{}
	r := NewRunner(&fakeInvoker{}, rep, "d-", "f-", PreTrafficPayload, nil)

	_, err := r.Run(context.Background(), Event{DeploymentID: "d-1"})
	if err == nil {
		t.Error("Run() should fail when the hook execution id is missing")
	}
	if len(rep.reports) != 0 {
		t.Errorf("no report can be sent without both identifiers, got %d", len(rep.reports))
	}
}

func TestRun_ReportFailurePropagates(t *testing.T) {
	rep := &fakeReporter{err: fmt.Errorf("access denied")}
	r := NewRunner(&fakeInvoker{}, rep, "d-", "f-", PreTrafficPayload, nil)

	_, err := r.Run(context.Background(), Event{
		DeploymentID:                  "d-1",
		LifecycleEventHookExecutionID: "h-1",
	})
	if err == nil {
		t.Error("Run() should surface a failed status report")
	}
}
