package rerankd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rerankd/rerankd"
	"github.com/rerankd/rerankd/pkg/config"
	"github.com/rerankd/rerankd/pkg/device"
	"github.com/rerankd/rerankd/pkg/logger"
	"github.com/rerankd/rerankd/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the reranking HTTP server",
	Long: `Start the HTTP server exposing the reranking API.

The server provides endpoints for:
- Ranking documents against a question (POST /rank)
- Health checks with device inventory (GET /health)
- Unloading the model to reclaim memory (POST /unload)
- A built-in end-to-end self test (GET /selftest)

Configuration can be provided through environment variables or command-line flags.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "", "Server host (default from RERANK_HOST or 0.0.0.0)")
	serverCmd.Flags().Int("port", 0, "Server port (default from RERANK_PORT or 8000)")
	serverCmd.Flags().String("mode", "", "Server mode (debug, release, test)")

	serverCmd.Flags().String("provider", "", "Scoring backend (onnx, jina, llm, mock)")
	serverCmd.Flags().String("model", "", "Model identifier")
	serverCmd.Flags().String("cache-dir", "", "Local directory for downloaded weights")
	serverCmd.Flags().Int("device", -1, "Accelerator device index override")
	serverCmd.Flags().Bool("debug", false, "Enable verbose diagnostics")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	if cfg.Debug {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	rt := device.NewORTRuntime(cfg.Model.LibraryPath)
	svc := rerankd.New(cfg, rt, nil, log)

	srv := server.New(cfg, svc, log)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}
	return nil
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("provider") {
		cfg.Model.Provider, _ = cmd.Flags().GetString("provider")
	}
	if cmd.Flags().Changed("model") {
		cfg.Model.Name, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.Model.CacheDir, _ = cmd.Flags().GetString("cache-dir")
	}
	if cmd.Flags().Changed("device") {
		cfg.Model.DeviceIndex, _ = cmd.Flags().GetInt("device")
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug, _ = cmd.Flags().GetBool("debug")
	}
}
