package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/readmesync/readmesync/internal/workflow"
)

var (
	initForce       bool
	initInstallHook bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold readmesync into the current repository",
	Long: `Write the files that wire readmesync into a repository:

  - .readmesync.yaml (configuration)
  - .pre-commit-config.yaml (readme guard, ruff, ruff format, pyright)
  - .github/workflows/readme-sync.yml (push-triggered sync)

Existing files are kept unless --force is given.

Example:
  cd ~/myproject
  readmesync init
  readmesync init --install-hook   # also install the git pre-commit hook`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, repoPath, configPath, false)
		if err != nil {
			return err
		}
		defer a.Close()

		files, err := workflow.Scaffold(a.repo, a.cfg, initForce)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "\n%s Initialized readmesync\n\n", green("✓"))
		for _, f := range files {
			if f.Written {
				fmt.Fprintf(out, "  %s %s\n", green("✓"), cyan(f.Path))
			} else {
				fmt.Fprintf(out, "  %s %s %s\n", gray("-"), f.Path, gray("(kept existing)"))
			}
		}

		if initInstallHook {
			path, err := installHook(ctx, a, initForce)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s %s\n", green("✓"), cyan(path))
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s\n", gray("Edit README.py, never README.md. CI regenerates README.md on push."))
		fmt.Fprintf(out, "%s\n", gray("Run 'readmesync doctor' to verify the setup."))
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initInstallHook, "install-hook", false, "Also install the git pre-commit hook")
	rootCmd.AddCommand(initCmd)
}
