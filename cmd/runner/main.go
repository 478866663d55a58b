package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tailot/taylored-orchestrator/pkg/agent"
	"github.com/tailot/taylored-orchestrator/pkg/health"
	"github.com/tailot/taylored-orchestrator/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "runner",
	Short:   "Taylored runner - sandboxed snippet execution agent",
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("runner version %s\nCommit: %s\n", Version, Commit))

	rootCmd.Flags().Int("port", envInt("PORT", 3000), "Event channel listen port")
	rootCmd.Flags().String("container-root", envString("CONTAINER_ROOT", "/"), "Root directory filesystem accessors are bound to")
	rootCmd.Flags().StringSlice("runner-tool", []string{"taylored", "--automatic", "xml", "main"}, "External tool invoked for every tayloredRun")
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
	containerRoot, _ := cmd.Flags().GetString("container-root")
	runnerTool, _ := cmd.Flags().GetStringSlice("runner-tool")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(runnerTool) > 0 {
		toolCheck := health.NewExecChecker([]string{runnerTool[0], "--version"})
		if result := toolCheck.Check(ctx); !result.Healthy {
			return fmt.Errorf("runner tool %q failed its startup check: %s", runnerTool[0], result.Message)
		}
	}

	a := agent.New(agent.Config{
		ListenAddr:    ":" + strconv.Itoa(port),
		ContainerRoot: containerRoot,
		RunnerTool:    runnerTool,
	})

	return a.ListenAndServe(ctx)
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
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
