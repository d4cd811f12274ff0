package serving

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Supervisor runs the model process alongside the front server.
type Supervisor struct {
	command string
	log     *zap.Logger

	cmd *exec.Cmd
}

// NewSupervisor creates a Supervisor for the given command line. An
// empty command means the model process is managed elsewhere.
func NewSupervisor(command string, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{command: command, log: log}
}

// Start launches the model process with its output attached to ours.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.command == "" {
		s.log.Info("no model process configured, serving front end only")
		return nil
	}

	fields := strings.Fields(s.command)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start model process: %w", err)
	}
	s.cmd = cmd
	s.log.Info("started model process",
		zap.String("command", s.command), zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Wait blocks until the model process exits. If no process was
// started it blocks until the context is done, so the front server
// keeps running.
func (s *Supervisor) Wait(ctx context.Context) error {
	if s.cmd == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("model process exited: %w", err)
	}
	return fmt.Errorf("model process exited")
}
