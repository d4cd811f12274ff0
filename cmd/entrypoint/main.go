// Command entrypoint is the model container's init process. The
// single argument "serve" starts the quality-estimation endpoint; any
// other argument vector replaces this process verbatim, so the
// container can be reused as a plain command runner.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mtworks/translation-pipeline/internal/config"
	"github.com/mtworks/translation-pipeline/internal/logging"
	"github.com/mtworks/translation-pipeline/internal/serving"
)

func main() {
	root := &cobra.Command{
		Use:                "entrypoint [command...]",
		Short:              "Model container entrypoint",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(_ *cobra.Command, args []string) error {
			return execCommand(args)
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the quality-estimation endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execCommand replaces this process with the given command, so the
// container inherits its exit code directly.
func execCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given")
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve command %q: %w", args[0], err)
	}
	return syscall.Exec(path, args, os.Environ())
}

func serve(ctx context.Context) error {
	// Optional container-local overrides.
	_ = godotenv.Load()

	log := logging.New()
	defer log.Sync()
	cfg := config.Load()

	supervisor := serving.NewSupervisor(cfg.BackendCmd, log)
	if err := supervisor.Start(ctx); err != nil {
		return err
	}

	backend := serving.NewBackend(cfg.BackendURL)
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if backend.Ready(ctx) {
					log.Info("model process ready")
					return
				}
			}
		}
	}()

	server := serving.NewServer(backend, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServePort),
		Handler: server.Router(),
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting endpoint server", zap.Int("port", cfg.ServePort))
		errCh <- httpServer.ListenAndServe()
	}()
	go func() {
		errCh <- supervisor.Wait(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("serving failed", zap.Error(err))
		httpServer.Close()
		return err
	}
	return httpServer.Close()
}
