package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tailot/taylored-orchestrator/pkg/api"
	"github.com/tailot/taylored-orchestrator/pkg/health"
	"github.com/tailot/taylored-orchestrator/pkg/log"
	"github.com/tailot/taylored-orchestrator/pkg/orchestrator"
	"github.com/tailot/taylored-orchestrator/pkg/registry"
	"github.com/tailot/taylored-orchestrator/pkg/runtime"
	"github.com/tailot/taylored-orchestrator/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

const (
	defaultImage            = "runner-image"
	defaultContainerPort    = 3000
	defaultSweepInterval    = 30 * time.Second
	defaultInactivityPeriod = 60 * time.Second
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "orchestrator",
	Short:   "Taylored orchestrator - session-scoped runner container control plane",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("orchestrator version %s\nCommit: %s\n", Version, Commit))

	rootCmd.Flags().Int("port", envInt("PORT", 3001), "HTTP listen port")
	rootCmd.Flags().Int("inactivity-timeout-seconds", envInt("INACTIVITY_TIMEOUT_SECONDS", 60), "Runner inactivity timeout in seconds")
	rootCmd.Flags().Int("readiness-timeout-seconds", envInt("READINESS_TIMEOUT_SECONDS", 10), "How long to poll a freshly started runner's port before giving up (0 disables the probe)")
	rootCmd.Flags().Bool("reuse-runner-mode", envBool("REUSE_RUNNER_MODE", false), "Share one singleton runner across all sessions")
	rootCmd.Flags().String("runners-host", envString("RUNNERS_HOST", "localhost"), "Hostname reported in provisioned endpoints")
	rootCmd.Flags().String("docker-host", os.Getenv("DOCKER_HOST"), "Docker daemon endpoint (empty uses the default socket)")
	rootCmd.Flags().String("data-dir", envString("DATA_DIR", ""), "Directory for the runner bookkeeping store (disabled if empty)")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.Flags().GetString("log-level")
	logJSON, _ := rootCmd.Flags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func run(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	inactivityTimeoutSeconds, _ := cmd.Flags().GetInt("inactivity-timeout-seconds")
	readinessTimeoutSeconds, _ := cmd.Flags().GetInt("readiness-timeout-seconds")
	reuseMode, _ := cmd.Flags().GetBool("reuse-runner-mode")
	runnersHost, _ := cmd.Flags().GetString("runners-host")
	dockerHost, _ := cmd.Flags().GetString("docker-host")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	production := os.Getenv("NODE_ENV") == "production"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := runtime.NewDockerDriver(ctx, dockerHost)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer driver.Close()

	mode := registry.PerSession
	if reuseMode {
		mode = registry.Reuse
	}
	reg := registry.New(mode)

	var store *storage.BoltStore
	if dataDir != "" {
		store, err = storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("open runner store: %w", err)
		}
		defer store.Close()
	}

	svc := orchestrator.New(orchestrator.Config{
		Registry:         reg,
		Driver:           driver,
		Image:            defaultImage,
		ContainerPort:    defaultContainerPort,
		Store:            store,
		ReadinessTimeout: time.Duration(readinessTimeoutSeconds) * time.Second,
	})

	reaper := orchestrator.NewReaper(orchestrator.ReaperConfig{
		Registry:          reg,
		Driver:            driver,
		Store:             store,
		SweepInterval:     defaultSweepInterval,
		InactivityTimeout: time.Duration(inactivityTimeoutSeconds) * time.Second,
	})
	if err := reaper.Reconcile(ctx); err != nil {
		log.Errorf("startup reconciliation failed", err)
	}
	reaper.Start(ctx)
	defer reaper.Stop()

	server := api.NewServer(svc, runnersHost, production, health.NewDriverChecker(driver))
	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      server.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("orchestrator listening on :" + strconv.Itoa(port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envString(key, fallback string) string {
	if raw := os.Getenv(key); raw != "" {
		return raw
	}
	return fallback
}
