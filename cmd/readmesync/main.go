package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	repoPath   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "readmesync",
	Short: "Keep README.md generated from README.py",
	Long: `readmesync keeps a generated README.md in step with the README.py that
renders it.

In CI it regenerates README.md whenever README.py changes and pushes an
auto-sync commit, and it fails the build when README.md was edited directly.
Locally it runs the pre-commit checks (ruff, ruff format, pyright) together
with the same direct-edit guard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <repo>/.readmesync.yaml)")
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", ".", "Repository directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
